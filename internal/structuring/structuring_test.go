package structuring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/llm/llmtest"
	"github.com/jonathan/talent-pipeline/internal/schemas"
	"github.com/jonathan/talent-pipeline/internal/types"
)

func raw(url, data string) types.RawProfile {
	return types.RawProfile{Source: "linkedin-scraper", URL: url, Data: json.RawMessage(data)}
}

func TestStructure_MapsProfiles(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
			assert.Equal(t, llm.TierStandard, tier)
			assert.Contains(t, prompt, "Ada Lovelace")
			return `{"candidates": [
				{"publicIdentifier": " ada ", "firstName": "Ada", "lastName": "Lovelace", "email": "  ",
				 "skills": ["Go"], "fingerprint": "model-made-this-up", "scoring": {"score": 9, "rationale": "x"}},
				{"firstName": "Grace", "lastName": "Hopper"}
			]}`, nil
		},
	}

	s := NewStructurer(client, llmtest.NoDelay(), zaptest.NewLogger(t))
	got, err := s.Structure(context.Background(), []types.RawProfile{
		raw("https://www.linkedin.com/in/ada", `{"name": "Ada Lovelace"}`),
		raw("https://www.linkedin.com/in/grace-hopper", `{"name": "Grace Hopper"}`),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	ada := got[0]
	assert.Equal(t, "ada", ada.PublicIdentifier)
	assert.Equal(t, "Ada Lovelace", ada.FullName)
	assert.Equal(t, "https://www.linkedin.com/in/ada", ada.LinkedInURL)
	assert.Nil(t, ada.Email)
	assert.Empty(t, ada.Fingerprint)
	assert.Nil(t, ada.Scoring)

	grace := got[1]
	assert.Equal(t, "grace-hopper", grace.PublicIdentifier, "identifier derived from the copied profile URL")
}

func TestStructure_DropsRecordsWithoutIdentity(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return `{"candidates": [
				{"publicIdentifier": "x", "firstName": "OnlyFirst"},
				{"publicIdentifier": "y", "firstName": "Full", "lastName": "Name"}
			]}`, nil
		},
	}

	got, err := NewStructurer(client, llmtest.NoDelay(), nil).Structure(context.Background(), []types.RawProfile{
		raw("", `{}`),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "y", got[0].PublicIdentifier)
	assert.Empty(t, got[0].LinkedInURL, "no URL is copied when counts differ")
}

func TestStructure_NoInput(t *testing.T) {
	client := &llmtest.MockClient{}
	got, err := NewStructurer(client, llmtest.NoDelay(), nil).Structure(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, client.Calls())
}

func TestStructure_InvalidOutput(t *testing.T) {
	client := &llmtest.MockClient{
		GenerateJSONFunc: func(context.Context, string, llm.ModelTier) (string, error) {
			return `{"profiles": []}`, nil
		},
	}
	_, err := NewStructurer(client, llmtest.NoDelay(), nil).Structure(context.Background(), []types.RawProfile{raw("", `{}`)})
	require.Error(t, err)
	var validationErr *schemas.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}
