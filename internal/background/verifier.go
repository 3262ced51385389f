package background

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/prompts"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// UnavailablePrefix starts the flag attached when no source data exists.
const UnavailablePrefix = "verification data unavailable"

// Verifier runs the background verification stage.
type Verifier struct {
	client llm.Client
	source Source
	policy llm.RetryPolicy
	logger *zap.Logger
}

// NewVerifier creates a Verifier. A nil logger discards output.
func NewVerifier(client llm.Client, source Source, policy llm.RetryPolicy, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{client: client, source: source, policy: policy, logger: logger}
}

type verifyInput struct {
	Candidate types.Candidate `json:"candidate"`
	Public    *SourceRecord   `json:"publicRecord"`
}

type verifyResponse struct {
	Results []types.BackgroundResult `json:"results"`
}

// Run returns one result per candidate it could judge. Candidates without
// source data get IsMatch=false and an explanatory flag without a model call.
// The returned slice is never empty.
func (v *Verifier) Run(ctx context.Context, requirement string, candidates []types.Candidate) []types.BackgroundResult {
	if len(candidates) == 0 {
		return []types.BackgroundResult{{
			Fingerprint: types.FallbackNoCandidate,
			Flagged:     []string{"no candidates to verify"},
			Summary:     "No candidates were supplied for background verification.",
		}}
	}

	var results []types.BackgroundResult
	var inputs []verifyInput
	for _, c := range candidates {
		record, err := v.lookup(ctx, c)
		if err != nil {
			reason := err.Error()
			var unavailable *UnavailableError
			if errors.As(err, &unavailable) {
				reason = unavailable.Reason
			}
			v.logger.Info("verification data unavailable",
				zap.String("fingerprint", c.Fingerprint), zap.Error(err))
			results = append(results, Unavailable(c.Fingerprint, reason))
			continue
		}
		inputs = append(inputs, verifyInput{Candidate: c.WithoutDerived(), Public: record})
	}
	if len(inputs) == 0 {
		return results
	}

	judged, err := v.judge(ctx, requirement, inputs)
	if err != nil {
		v.logger.Warn("background verification failed, using fallback record", zap.Error(err))
		return append(results, types.BackgroundResult{
			Fingerprint: types.FallbackErrorCase,
			Flagged:     []string{"verification failed"},
			Summary:     "Background verification could not be completed.",
			Error:       err.Error(),
		})
	}
	return append(results, judged...)
}

func (v *Verifier) lookup(ctx context.Context, c types.Candidate) (*SourceRecord, error) {
	if v.source == nil {
		return nil, &UnavailableError{Reason: "no verification source configured"}
	}
	return v.source.Lookup(ctx, c)
}

func (v *Verifier) judge(ctx context.Context, requirement string, inputs []verifyInput) ([]types.BackgroundResult, error) {
	payload, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}
	prompt := prompts.Render(prompts.VerifyBackground, map[string]string{
		"Requirement": requirement,
		"Candidates":  string(payload),
	})

	var resp verifyResponse
	if err := llm.GenerateStructured(ctx, v.client, v.policy, llm.Request{
		Prompt: prompt,
		Tier:   llm.TierAdvanced,
		Schema: schemas.Verification,
	}, &resp); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		known[in.Candidate.Fingerprint] = true
	}

	var out []types.BackgroundResult
	for _, r := range resp.Results {
		r.Fingerprint = strings.TrimSpace(r.Fingerprint)
		if !known[r.Fingerprint] {
			v.logger.Warn("verification returned unknown fingerprint", zap.String("fingerprint", r.Fingerprint))
			continue
		}
		if r.Flagged == nil {
			r.Flagged = []string{}
		}
		r.Error = ""
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.New("verification returned no usable results")
	}
	return out, nil
}

// Unavailable builds the result for a candidate with no source data.
func Unavailable(fingerprint, reason string) types.BackgroundResult {
	return types.BackgroundResult{
		Fingerprint: fingerprint,
		IsMatch:     false,
		Flagged:     []string{UnavailablePrefix + ": " + reason},
		Summary:     "Claims could not be checked against a public source.",
	}
}
