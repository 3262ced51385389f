// Package structuring normalizes heterogeneous enrichment output into the
// canonical candidate schema.
package structuring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/enrichment"
	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/prompts"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Structurer maps raw profiles to types.Candidate with one model call.
type Structurer struct {
	client llm.Client
	policy llm.RetryPolicy
	logger *zap.Logger
}

// NewStructurer creates a Structurer. A nil logger discards output.
func NewStructurer(client llm.Client, policy llm.RetryPolicy, logger *zap.Logger) *Structurer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Structurer{client: client, policy: policy, logger: logger}
}

type structureResponse struct {
	Candidates []types.Candidate `json:"candidates"`
}

// Structure returns one candidate per usable raw profile. Records without a
// public identifier and first and last name are dropped. A count mismatch
// between input and output is logged but not fatal.
func (s *Structurer) Structure(ctx context.Context, raws []types.RawProfile) ([]types.Candidate, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	payload, err := json.MarshalIndent(raws, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw profiles: %w", err)
	}
	prompt := prompts.Render(prompts.StructureProfiles, map[string]string{
		"Profiles": string(payload),
	})

	var resp structureResponse
	if err := llm.GenerateStructured(ctx, s.client, s.policy, llm.Request{
		Prompt: prompt,
		Tier:   llm.TierStandard,
		Schema: schemas.StructuredProfiles,
	}, &resp); err != nil {
		return nil, fmt.Errorf("profile structuring failed: %w", err)
	}

	if len(resp.Candidates) != len(raws) {
		s.logger.Warn("structured profile count mismatch",
			zap.Int("input", len(raws)),
			zap.Int("output", len(resp.Candidates)))
	}

	candidates := make([]types.Candidate, 0, len(resp.Candidates))
	for i, c := range resp.Candidates {
		normalize(&c)
		if c.LinkedInURL == "" && len(resp.Candidates) == len(raws) && raws[i].URL != "" {
			c.LinkedInURL = raws[i].URL
		}
		if c.PublicIdentifier == "" && c.LinkedInURL != "" {
			c.PublicIdentifier = slugFromURL(c.LinkedInURL)
		}
		if !c.HasMinimalIdentity() {
			s.logger.Warn("dropping structured profile without minimal identity",
				zap.Int("index", i),
				zap.String("public_identifier", c.PublicIdentifier),
				zap.String("linkedin_url", c.LinkedInURL))
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// normalize trims identity fields and clears values the model must not set.
func normalize(c *types.Candidate) {
	c.PublicIdentifier = strings.TrimSpace(c.PublicIdentifier)
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.FullName = strings.TrimSpace(c.FullName)
	c.LinkedInURL = strings.TrimSpace(c.LinkedInURL)
	c.GitHubURL = strings.TrimSpace(c.GitHubURL)
	if c.Email != nil {
		email := strings.TrimSpace(*c.Email)
		if email == "" {
			c.Email = nil
		} else {
			c.Email = &email
		}
	}
	if c.FullName == "" && c.FirstName != "" && c.LastName != "" {
		c.FullName = c.FirstName + " " + c.LastName
	}

	// Identity and derived outputs are assigned later in the pipeline.
	c.Fingerprint = ""
	c.Scoring = nil
	c.BackgroundCheck = nil
	c.Prescreening = nil
	c.Outreach = nil
	c.Flags = nil
}

func slugFromURL(u string) string {
	link, ok := enrichment.CanonicalProfileLink(u)
	if !ok {
		return ""
	}
	return strings.TrimPrefix(link, "https://www.linkedin.com/in/")
}
