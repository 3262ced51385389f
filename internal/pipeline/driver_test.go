package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/fingerprint"
	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/llm/llmtest"
	"github.com/jonathan/talent-pipeline/internal/types"
)

const profileURL = "https://www.linkedin.com/in/jdoe"

type fakeSearcher struct {
	mu      sync.Mutex
	calls   int
	results []types.SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]types.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.SearchResult(nil), f.results...), nil
}

func (f *fakeSearcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnricher struct {
	calls    int
	links    []string
	profiles []types.RawProfile
	err      error
	onEnrich func(ctx context.Context)
}

func (f *fakeEnricher) Enrich(ctx context.Context, links []string) ([]types.RawProfile, error) {
	f.calls++
	f.links = links
	if f.onEnrich != nil {
		f.onEnrich(ctx)
	}
	return f.profiles, f.err
}

// replies holds the model output per stage, keyed by the opening words of
// each stage prompt.
type replies map[string]string

const (
	promptQueries    = "You are a technical sourcer"
	promptScreening  = "You are screening"
	promptStructure  = "Normalize these scraped"
	promptScoring    = "Score each candidate"
	promptEngagement = "Prepare first contact"
)

func (r replies) client() *llmtest.MockClient {
	return &llmtest.MockClient{
		GenerateJSONFunc: func(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
			for prefix, reply := range r {
				if strings.HasPrefix(prompt, prefix) {
					if strings.HasPrefix(reply, "error:") {
						return "", &llm.UpstreamPermanentError{StatusCode: 400, Cause: errors.New(strings.TrimPrefix(reply, "error:"))}
					}
					return reply, nil
				}
			}
			return "", fmt.Errorf("unexpected prompt: %.40s", prompt)
		},
	}
}

func validCredentials() config.Credentials {
	return config.Credentials{
		GeminiAPIKey:    "gemini",
		SearchAPIKey:    "search",
		SearchCX:        "cx",
		EnrichmentURL:   "https://scraper.example.com",
		EnrichmentToken: "token",
	}
}

type harness struct {
	store    *db.LiteDB
	llm      *llmtest.MockClient
	searcher *fakeSearcher
	enricher *fakeEnricher
	creds    config.Credentials

	mu     sync.Mutex
	events []ProgressEvent
}

func newHarness(t *testing.T, r replies) *harness {
	t.Helper()
	store, err := db.OpenLite(context.Background(), db.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &harness{
		store: store,
		llm:   r.client(),
		searcher: &fakeSearcher{results: []types.SearchResult{{
			Link:    profileURL,
			Title:   "Jane Doe - Staff Go Engineer - Acme",
			Snippet: "Berlin. Go, Kubernetes, PostgreSQL.",
		}}},
		enricher: &fakeEnricher{profiles: []types.RawProfile{{
			Source: "linkedin-scraper",
			URL:    profileURL,
			Data:   []byte(`{"fullName":"Jane Doe","headline":"Staff Go Engineer"}`),
		}}},
		creds: validCredentials(),
	}
}

func (h *harness) run(t *testing.T, jobID, requirement string) (*types.Job, error) {
	t.Helper()
	ctx := context.Background()
	policy := llmtest.NoDelay()

	driver := NewDriver(Dependencies{
		LLM:         h.llm,
		Search:      h.searcher,
		Enricher:    h.enricher,
		Store:       h.store,
		Credentials: h.creds,
		Logger:      zaptest.NewLogger(t),
		RetryPolicy: &policy,
		OnProgress: func(e ProgressEvent) {
			h.mu.Lock()
			h.events = append(h.events, e)
			h.mu.Unlock()
		},
	})

	job := &types.Job{ID: jobID, Requirement: requirement, Status: types.JobPending}
	require.NoError(t, h.store.CreateJob(ctx, job))

	runErr := driver.Run(ctx, job)

	stored, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored, runErr
}

func (h *harness) progress() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, len(h.events))
	for i, e := range h.events {
		out[i] = e.Progress
	}
	return out
}

func candidateFingerprint(t *testing.T) string {
	t.Helper()
	fp, err := fingerprint.Compute(types.Candidate{LinkedInURL: profileURL}, fingerprint.Default)
	require.NoError(t, err)
	return fp
}

func happyReplies(t *testing.T) replies {
	fp := candidateFingerprint(t)
	return replies{
		promptQueries: `{"queries": ["staff go engineer berlin"]}`,
		promptScreening: `{"summary": "one strong match", "candidates": [
			{"link": "` + profileURL + `", "relevance": 87.6, "rationale": "Go and Kubernetes"}]}`,
		promptStructure: `{"candidates": [{"publicIdentifier": "jdoe", "firstName": "Jane", "lastName": "Doe",
			"headline": "Staff Go Engineer", "linkedinUrl": "` + profileURL + `", "email": null,
			"skills": ["go", "kubernetes"]}]}`,
		promptScoring: "```json\n" + `{"results": [{"fingerprint": "` + fp + `", "score": 8.5, "rationale": "strong Go background"}]}` + "\n```",
		promptEngagement: `{"results": [{"fingerprint": "` + fp + `", "questions": ["q1", "q2", "q3", "q4", "q5"],
			"outreach": "Hi Jane, your Go work at Acme caught our eye."}]}`,
	}
}

func TestDriver_CompletesWithMergedCandidate(t *testing.T) {
	h := newHarness(t, happyReplies(t))

	job, err := h.run(t, "job-happy", "Staff Go engineer in Berlin")
	require.NoError(t, err)

	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Equal(t, string(StageCompleted), job.Stage)
	assert.Equal(t, 100, job.Progress)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.Results)

	res := job.Results
	assert.Equal(t, []string{"site:linkedin.com/in staff go engineer berlin"}, res.Queries)
	require.Len(t, res.ScreenedCandidates, 1)
	assert.Equal(t, 88, res.ScreenedCandidates[0].Relevance)
	assert.Equal(t, "one strong match", res.Summary)
	assert.Equal(t, types.JobStats{
		RawResults: 1, Screened: 1, Links: 1, Enriched: 1, Structured: 1,
		New: 1, Fallbacks: 0,
	}, res.Stats)

	require.Len(t, res.FinalCandidates, 1)
	c := res.FinalCandidates[0]
	assert.Equal(t, candidateFingerprint(t), c.Fingerprint)
	require.NotNil(t, c.Scoring)
	assert.Equal(t, 8.5, c.Scoring.Score)
	require.NotNil(t, c.Prescreening)
	assert.Len(t, c.Prescreening.Questions, types.PrescreenQuestionCount)
	require.NotNil(t, c.BackgroundCheck)
	assert.False(t, c.BackgroundCheck.IsMatch)
	assert.Contains(t, c.BackgroundCheck.Flagged[0], "verification data unavailable")
	assert.Empty(t, c.Flags)

	id, err := h.store.FindIDByFingerprint(context.Background(), c.Fingerprint)
	require.NoError(t, err)
	doc, err := h.store.GetCandidate(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, doc.OriginalData.Scoring)
	assert.Equal(t, 8.5, doc.OriginalData.Scoring.Score)
	assert.Equal(t, "Jane Doe - Staff Go Engineer", doc.Metadata.DocumentName)

	assert.Equal(t, []string{profileURL}, h.enricher.links)
}

func TestDriver_PartialResultsVisibleWhileEnriching(t *testing.T) {
	h := newHarness(t, happyReplies(t))

	var during *types.Job
	h.enricher.onEnrich = func(ctx context.Context) {
		job, err := h.store.GetJob(ctx, "job-partial")
		require.NoError(t, err)
		during = job
	}

	_, err := h.run(t, "job-partial", "Staff Go engineer in Berlin")
	require.NoError(t, err)

	require.NotNil(t, during)
	assert.Equal(t, types.JobProcessing, during.Status)
	assert.Equal(t, string(StageEnriching), during.Stage)
	assert.Equal(t, 45, during.Progress)
	require.NotNil(t, during.Results)
	assert.Equal(t, []string{"site:linkedin.com/in staff go engineer berlin"}, during.Results.Queries)
	require.Len(t, during.Results.ScreenedCandidates, 1)
	assert.Equal(t, profileURL, during.Results.ScreenedCandidates[0].Link)
	assert.Equal(t, "one strong match", during.Results.Summary)
	assert.Empty(t, during.Results.FinalCandidates)
}

func TestDriver_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t, happyReplies(t))

	_, err := h.run(t, "job-progress", "Staff Go engineer")
	require.NoError(t, err)

	progress := h.progress()
	require.NotEmpty(t, progress)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress went backwards at %d: %v", i, progress)
	}
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.Equal(t, []int{5, 15, 30, 45, 60, 75, 90, 100}, progress)
}

func TestDriver_NoSearchResults(t *testing.T) {
	h := newHarness(t, replies{
		promptQueries: `{"queries": ["asdkfjh09234 nonexistent role xyz"]}`,
	})
	h.searcher.results = nil

	job, err := h.run(t, "job-a", "asdkfjh09234 nonexistent role xyz")
	require.NoError(t, err)

	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Contains(t, strings.ToLower(job.StatusMessage), "no profiles found")
	require.NotNil(t, job.Results)
	assert.Empty(t, job.Results.FinalCandidates)
	assert.Equal(t, 1, h.llm.Calls(), "only query generation reaches the model")
	assert.Zero(t, h.enricher.calls)
}

func TestDriver_SameProfileTwiceStoresOneDocument(t *testing.T) {
	h := newHarness(t, happyReplies(t))

	first, err := h.run(t, "job-b1", "Staff Go engineer")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Results.Stats.New)

	h.searcher.results[0].Snippet = "Completely different snippet text."
	second, err := h.run(t, "job-b2", "Staff Go engineer")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Results.Stats.New)
	assert.Equal(t, 1, second.Results.Stats.Updated)

	n, err := h.store.CountByFingerprint(context.Background(), candidateFingerprint(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDriver_EnrichmentReturnsNothing(t *testing.T) {
	h := newHarness(t, happyReplies(t))
	h.enricher.profiles = []types.RawProfile{}

	job, err := h.run(t, "job-c", "Staff Go engineer")
	require.NoError(t, err)

	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Equal(t, MessageNoEnrichedProfiles, job.StatusMessage)
	require.NotNil(t, job.Results)
	assert.Len(t, job.Results.ScreenedCandidates, 1)
	assert.Empty(t, job.Results.FinalCandidates)
	assert.Equal(t, 1, h.enricher.calls)
}

func TestDriver_MissingCredentials(t *testing.T) {
	h := newHarness(t, happyReplies(t))
	h.creds.SearchAPIKey = ""
	h.creds.EnrichmentToken = ""

	job, err := h.run(t, "job-d", "Staff Go engineer")
	require.Error(t, err)

	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.Error, "configuration error")
	assert.Contains(t, job.Error, config.EnvSearchAPIKey)
	assert.Zero(t, h.llm.Calls())
	assert.Zero(t, h.searcher.Calls())
	assert.Zero(t, h.enricher.calls)
}

func TestDriver_AllSearchesFail(t *testing.T) {
	h := newHarness(t, happyReplies(t))
	h.searcher.err = &llm.UpstreamPermanentError{StatusCode: 403, Cause: errors.New("quota exceeded")}

	job, err := h.run(t, "job-search-fail", "Staff Go engineer")
	require.Error(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, err.Error(), job.Error)
	assert.Equal(t, string(StageFailed), job.Stage)
	assert.Equal(t, 15, job.Progress)
}

func TestDriver_StructuringFailureFailsJob(t *testing.T) {
	r := happyReplies(t)
	r[promptStructure] = "error:model refused"
	h := newHarness(t, r)

	job, err := h.run(t, "job-structure-fail", "Staff Go engineer")
	require.Error(t, err)

	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, err.Error(), job.Error)
	assert.Contains(t, job.Error, "profile structuring failed")
	assert.Equal(t, 60, job.Progress)
	require.NotNil(t, job.Results)
	assert.Len(t, job.Results.ScreenedCandidates, 1, "partial results are kept")
}

func TestDriver_EvaluationFallbacks(t *testing.T) {
	r := happyReplies(t)
	r[promptScoring] = `not json at all`
	r[promptEngagement] = `{"results": []}`
	h := newHarness(t, r)

	job, err := h.run(t, "job-fallback", "Staff Go engineer")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, job.Status)

	require.Len(t, job.Results.FinalCandidates, 1)
	c := job.Results.FinalCandidates[0]
	assert.ElementsMatch(t, []string{FlagFallbackScoring, FlagFallbackEngagement}, c.Flags)
	assert.Equal(t, FallbackScoreRationale, c.Scoring.Rationale)
	assert.Len(t, c.Prescreening.Questions, types.PrescreenQuestionCount)
	assert.Equal(t, 2, job.Results.Stats.Fallbacks)
}
