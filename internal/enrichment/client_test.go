package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/talent-pipeline/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{URL: srv.URL, Token: "secret"}, zaptest.NewLogger(t))
}

func TestEnrich_SendsBatchAndDecodesArray(t *testing.T) {
	links := []string{"https://www.linkedin.com/in/a", "https://www.linkedin.com/in/b"}
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req enrichRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, links, req.ProfileURLs)

		_, _ = w.Write([]byte(`[{"firstName": "A", "linkedinUrl": "https://linkedin.com/in/a/"}, {"firstName": "B"}]`))
	})

	profiles, err := c.Enrich(context.Background(), links)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Source, profiles[0].Source)
	assert.Equal(t, "https://www.linkedin.com/in/a", profiles[0].URL)
	assert.Equal(t, "https://www.linkedin.com/in/b", profiles[1].URL, "url taken from the request by position")
	assert.JSONEq(t, `{"firstName": "B"}`, string(profiles[1].Data))
}

func TestEnrich_ZeroResultShapes(t *testing.T) {
	bodies := map[string]string{
		"empty array":  `[]`,
		"empty body":   ``,
		"not an array": `{"status": "queued"}`,
		"string":       `"done"`,
		"null":         `null`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			profiles, err := c.Enrich(context.Background(), []string{"https://www.linkedin.com/in/a"})
			require.NoError(t, err)
			assert.Empty(t, profiles)
		})
	}
}

func TestEnrich_WrappedArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"profileUrl": "https://www.linkedin.com/in/a"}, null]}`))
	})
	profiles, err := c.Enrich(context.Background(), []string{"https://www.linkedin.com/in/a"})
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "https://www.linkedin.com/in/a", profiles[0].URL)
}

func TestEnrich_ServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "scraper crashed", http.StatusBadGateway)
	})
	_, err := c.Enrich(context.Background(), []string{"https://www.linkedin.com/in/a"})
	require.Error(t, err)
	var transient *llm.UpstreamTransientError
	assert.True(t, errors.As(err, &transient))
}

func TestEnrich_ClientErrorIsPermanent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})
	_, err := c.Enrich(context.Background(), []string{"https://www.linkedin.com/in/a"})
	require.Error(t, err)
	var permanent *llm.UpstreamPermanentError
	require.True(t, errors.As(err, &permanent))
	assert.Equal(t, http.StatusUnauthorized, permanent.StatusCode)
}

func TestEnrich_NoLinksSkipsCall(t *testing.T) {
	c := NewClient(Config{URL: "http://127.0.0.1:1"}, nil)
	profiles, err := c.Enrich(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, profiles)
}
