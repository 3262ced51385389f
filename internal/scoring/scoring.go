// Package scoring rates each candidate's suitability for a requirement.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/prompts"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Score bounds.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Scorer runs the evaluation stage.
type Scorer struct {
	client llm.Client
	policy llm.RetryPolicy
	logger *zap.Logger
}

// NewScorer creates a Scorer. A nil logger discards output.
func NewScorer(client llm.Client, policy llm.RetryPolicy, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{client: client, policy: policy, logger: logger}
}

type scoreResponse struct {
	Results []types.ScoringResult `json:"results"`
}

// Run scores candidates with one model call. The returned slice is never
// empty: no input yields a "no_candidate" record and a failed or empty model
// response yields a single "error_case" record.
func (s *Scorer) Run(ctx context.Context, requirement string, candidates []types.Candidate) []types.ScoringResult {
	if len(candidates) == 0 {
		return []types.ScoringResult{{
			Fingerprint: types.FallbackNoCandidate,
			Rationale:   "No candidates were supplied for evaluation.",
		}}
	}

	results, err := s.score(ctx, requirement, candidates)
	if err != nil {
		s.logger.Warn("evaluation failed, using fallback record", zap.Error(err))
		return []types.ScoringResult{{
			Fingerprint: types.FallbackErrorCase,
			Rationale:   "Evaluation could not be completed.",
			Error:       err.Error(),
		}}
	}
	return results
}

func (s *Scorer) score(ctx context.Context, requirement string, candidates []types.Candidate) ([]types.ScoringResult, error) {
	profiles := make([]types.Candidate, len(candidates))
	known := make(map[string]bool, len(candidates))
	for i, c := range candidates {
		profiles[i] = c.WithoutDerived()
		known[c.Fingerprint] = true
	}
	payload, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}

	prompt := prompts.Render(prompts.ScoreCandidates, map[string]string{
		"Requirement": requirement,
		"Candidates":  string(payload),
	})

	var resp scoreResponse
	if err := llm.GenerateStructured(ctx, s.client, s.policy, llm.Request{
		Prompt: prompt,
		Tier:   llm.TierStandard,
		Schema: schemas.Scoring,
	}, &resp); err != nil {
		return nil, err
	}

	var out []types.ScoringResult
	for _, r := range resp.Results {
		r.Fingerprint = strings.TrimSpace(r.Fingerprint)
		switch {
		case !known[r.Fingerprint]:
			s.logger.Warn("evaluation returned unknown fingerprint", zap.String("fingerprint", r.Fingerprint))
			continue
		case !ValidScore(r.Score):
			s.logger.Warn("evaluation returned score out of range",
				zap.String("fingerprint", r.Fingerprint), zap.Float64("score", r.Score))
			continue
		}
		r.Error = ""
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.New("evaluation returned no usable scores")
	}
	return out, nil
}

// ValidScore reports whether v is a finite score within [MinScore, MaxScore].
func ValidScore(v float64) bool {
	return !math.IsNaN(v) && v >= MinScore && v <= MaxScore
}
