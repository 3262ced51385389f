package db

import (
	"context"
	"time"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// DocumentType is the metadata type of every candidate document.
const DocumentType = "candidate_profile"

// CandidateDocument is the persisted form of one candidate. There is exactly
// one document per fingerprint.
type CandidateDocument struct {
	ID           string           `json:"id"`
	Fingerprint  string           `json:"fingerprint"`
	Email        string           `json:"email,omitempty"`
	Content      string           `json:"content"`
	OriginalData types.Candidate  `json:"originalData"`
	Metadata     DocumentMetadata `json:"metadata"`
	// Embedding is opaque to the pipeline; an external retrieval service reads it.
	Embedding []float32 `json:"embedding,omitempty"`
}

// DocumentMetadata describes a candidate document.
type DocumentMetadata struct {
	DocumentName string    `json:"documentName"`
	CharCount    int       `json:"charCount"`
	Source       string    `json:"source"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// JobUpdate is a partial write to a job record. Empty strings and a nil
// Results leave the stored value unchanged. Progress never moves backwards.
type JobUpdate struct {
	ID            string
	Status        types.JobStatus
	Stage         string
	Progress      int
	StatusMessage string
	Results       *types.JobResults
	Error         string
}

// CandidateStore is the shared document store for candidates.
type CandidateStore interface {
	// FindIDByFingerprint returns the id of the document with fp, or "".
	FindIDByFingerprint(ctx context.Context, fp string) (string, error)
	// FindIDByEmail returns the id of a document with the contact email, or "".
	FindIDByEmail(ctx context.Context, email string) (string, error)
	// UpsertCandidate inserts doc or merges it into the existing document with
	// the same id, preserving the creation time.
	UpsertCandidate(ctx context.Context, doc *CandidateDocument) error
	// GetCandidate returns the document or nil when it does not exist.
	GetCandidate(ctx context.Context, id string) (*CandidateDocument, error)
	// CountByFingerprint returns how many documents carry fp.
	CountByFingerprint(ctx context.Context, fp string) (int, error)
}

// JobStore persists job progress records.
type JobStore interface {
	// CreateJob inserts a new job. ErrDuplicateJob is returned if the id exists.
	CreateJob(ctx context.Context, job *types.Job) error
	// UpdateJob applies a partial update. ErrJobNotWritable is returned when the
	// job does not exist or is already terminal.
	UpdateJob(ctx context.Context, update JobUpdate) error
	// GetJob returns the job or nil when it does not exist.
	GetJob(ctx context.Context, id string) (*types.Job, error)
}

// Store is a complete persistence backend.
type Store interface {
	CandidateStore
	JobStore
	Close() error
}
