package background

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/llm/llmtest"
	"github.com/jonathan/talent-pipeline/internal/types"
)

type fakeSource struct {
	records map[string]*SourceRecord
}

func (f *fakeSource) Lookup(_ context.Context, c types.Candidate) (*SourceRecord, error) {
	if r, ok := f.records[c.Fingerprint]; ok {
		return r, nil
	}
	return nil, &UnavailableError{Reason: "no github profile linked"}
}

var (
	withGitHub    = types.Candidate{Fingerprint: "fp-ada", FirstName: "Ada", LastName: "Lovelace", GitHubURL: "https://github.com/ada"}
	withoutGitHub = types.Candidate{Fingerprint: "fp-bob", FirstName: "Bob", LastName: "Smith"}
)

func TestRun_UnavailableCandidatesSkipModel(t *testing.T) {
	client := &llmtest.MockClient{}
	v := NewVerifier(client, &fakeSource{}, llmtest.NoDelay(), zaptest.NewLogger(t))

	results := v.Run(context.Background(), "Go engineer", []types.Candidate{withoutGitHub})
	require.Len(t, results, 1)
	assert.Equal(t, "fp-bob", results[0].Fingerprint)
	assert.False(t, results[0].IsMatch)
	assert.Equal(t, []string{"verification data unavailable: no github profile linked"}, results[0].Flagged)
	assert.Equal(t, 0, client.Calls())
}

func TestRun_JudgesCandidatesWithData(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			assert.Equal(t, llm.TierAdvanced, tier)
			assert.Contains(t, prompt, "Analytical Engines")
			assert.NotContains(t, prompt, "fp-bob")
			return `{"results": [
				{"fingerprint": "fp-ada", "isMatch": true, "flagged": [], "summary": "Consistent."},
				{"fingerprint": "fp-unknown", "isMatch": true, "flagged": [], "summary": "?"}
			]}`, nil
		},
	}
	src := &fakeSource{records: map[string]*SourceRecord{
		"fp-ada": {Source: "github", Name: "Ada Lovelace", Company: "Analytical Engines"},
	}}

	results := NewVerifier(client, src, llmtest.NoDelay(), nil).
		Run(context.Background(), "Go engineer", []types.Candidate{withGitHub, withoutGitHub})

	require.Len(t, results, 2)
	byFP := map[string]types.BackgroundResult{}
	for _, r := range results {
		byFP[r.Fingerprint] = r
	}
	assert.True(t, byFP["fp-ada"].IsMatch)
	assert.NotNil(t, byFP["fp-ada"].Flagged)
	assert.False(t, byFP["fp-bob"].IsMatch)
	assert.NotContains(t, byFP, "fp-unknown")
}

func TestRun_ModelFailureYieldsFallback(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return "", &llm.UpstreamPermanentError{StatusCode: 400, Cause: errors.New("bad prompt")}
		},
	}
	src := &fakeSource{records: map[string]*SourceRecord{"fp-ada": {Source: "github", Login: "ada"}}}

	results := NewVerifier(client, src, llmtest.NoDelay(), nil).
		Run(context.Background(), "x", []types.Candidate{withGitHub, withoutGitHub})

	require.Len(t, results, 2)
	assert.Equal(t, "fp-bob", results[0].Fingerprint)
	assert.Equal(t, types.FallbackErrorCase, results[1].Fingerprint)
	assert.Contains(t, results[1].Error, "bad prompt")
}

func TestRun_NoCandidates(t *testing.T) {
	results := NewVerifier(&llmtest.MockClient{}, nil, llmtest.NoDelay(), nil).Run(context.Background(), "x", nil)
	require.Len(t, results, 1)
	assert.Equal(t, types.FallbackNoCandidate, results[0].Fingerprint)
}

func TestRun_NoSourceConfigured(t *testing.T) {
	results := NewVerifier(&llmtest.MockClient{}, nil, llmtest.NoDelay(), nil).
		Run(context.Background(), "x", []types.Candidate{withGitHub})
	require.Len(t, results, 1)
	assert.True(t, strings.HasPrefix(results[0].Flagged[0], UnavailablePrefix))
}
