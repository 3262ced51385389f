package types

import "time"

// JobStatus is the coarse lifecycle state a polling client sees.
type JobStatus string

// Job status values.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one end-to-end hiring search run.
type Job struct {
	ID            string      `json:"id"`
	Requirement   string      `json:"requirement"`
	Options       JobOptions  `json:"options"`
	Status        JobStatus   `json:"status"`
	Stage         string      `json:"stage"`
	Progress      int         `json:"progress"`
	StatusMessage string      `json:"statusMessage"`
	Results       *JobResults `json:"results,omitempty"`
	Error         string      `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// JobOptions tunes a single run. Zero values fall back to configured defaults.
type JobOptions struct {
	MaxQueries      int `json:"maxQueries,omitempty" validate:"omitempty,min=1,max=20"`
	ResultsPerQuery int `json:"resultsPerQuery,omitempty" validate:"omitempty,min=1,max=100"`
	MaxProfiles     int `json:"maxProfiles,omitempty" validate:"omitempty,min=1,max=100"`
}

// JobResults is the partial or final payload attached to a job.
type JobResults struct {
	Summary            string              `json:"summary,omitempty"`
	Queries            []string            `json:"queries,omitempty"`
	ScreenedCandidates []ScreenedCandidate `json:"screenedCandidates,omitempty"`
	FinalCandidates    []Candidate         `json:"finalCandidates"`
	Stats              JobStats            `json:"stats"`
}

// JobStats counts what happened at each stage of a run.
type JobStats struct {
	RawResults  int `json:"rawResults"`
	Screened    int `json:"screened"`
	Links       int `json:"links"`
	Enriched    int `json:"enriched"`
	Structured  int `json:"structured"`
	New         int `json:"new"`
	Updated     int `json:"updated"`
	IndexFailed int `json:"indexFailed"`
	Dropped     int `json:"dropped"`
	Fallbacks   int `json:"fallbacks"`
}
