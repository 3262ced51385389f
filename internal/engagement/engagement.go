// Package engagement writes prescreening questions and an outreach message
// for each candidate.
package engagement

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

// FallbackQuestions are used for a candidate whose engagement output is missing.
var FallbackQuestions = [types.PrescreenQuestionCount]string{
	"Can you walk us through your most recent role and responsibilities?",
	"Which of your past projects is most relevant to this position, and why?",
	"What technologies or tools are you most comfortable working with today?",
	"What are you looking for in your next role?",
	"What is your availability and notice period?",
}

// FallbackOutreach builds a generic first-contact message.
func FallbackOutreach(c types.Candidate) string {
	name := c.FirstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s, we came across your profile and think your background could be a great fit for a role we are hiring for. Would you be open to a short conversation?", name)
}

// Engager runs the engagement stage.
type Engager struct {
	client llm.Client
	policy llm.RetryPolicy
	logger *zap.Logger
}

// NewEngager creates an Engager. A nil logger discards output.
func NewEngager(client llm.Client, policy llm.RetryPolicy, logger *zap.Logger) *Engager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engager{client: client, policy: policy, logger: logger}
}

type engageResponse struct {
	Results []types.EngagementResult `json:"results"`
}

// Run generates engagement output with one model call. Records without exactly
// five questions or with an empty outreach message are rejected. The returned
// slice is never empty.
func (e *Engager) Run(ctx context.Context, requirement string, candidates []types.Candidate) []types.EngagementResult {
	if len(candidates) == 0 {
		return []types.EngagementResult{{
			Fingerprint: types.FallbackNoCandidate,
			Questions:   FallbackQuestions[:],
		}}
	}

	results, err := e.engage(ctx, requirement, candidates)
	if err != nil {
		e.logger.Warn("engagement failed, using fallback record", zap.Error(err))
		return []types.EngagementResult{{
			Fingerprint: types.FallbackErrorCase,
			Questions:   FallbackQuestions[:],
			Error:       err.Error(),
		}}
	}
	return results
}

func (e *Engager) engage(ctx context.Context, requirement string, candidates []types.Candidate) ([]types.EngagementResult, error) {
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

	prompt := prompts.Render(prompts.EngageCandidates, map[string]string{
		"Requirement": requirement,
		"Candidates":  string(payload),
	})

	var resp engageResponse
	if err := llm.GenerateStructured(ctx, e.client, e.policy, llm.Request{
		Prompt: prompt,
		Tier:   llm.TierAdvanced,
		Schema: schemas.Engagement,
	}, &resp); err != nil {
		return nil, err
	}

	var out []types.EngagementResult
	for _, r := range resp.Results {
		r.Fingerprint = strings.TrimSpace(r.Fingerprint)
		r.Questions = trimQuestions(r.Questions)
		r.Outreach = strings.TrimSpace(r.Outreach)
		switch {
		case !known[r.Fingerprint]:
			e.logger.Warn("engagement returned unknown fingerprint", zap.String("fingerprint", r.Fingerprint))
			continue
		case len(r.Questions) != types.PrescreenQuestionCount:
			e.logger.Warn("engagement returned wrong question count",
				zap.String("fingerprint", r.Fingerprint), zap.Int("questions", len(r.Questions)))
			continue
		case r.Outreach == "":
			e.logger.Warn("engagement returned empty outreach", zap.String("fingerprint", r.Fingerprint))
			continue
		}
		r.Error = ""
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, errors.New("engagement returned no usable results")
	}
	return out, nil
}

// trimQuestions drops blank entries.
func trimQuestions(questions []string) []string {
	out := questions[:0]
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}
