// Package db persists candidate documents and job progress records. DB is the
// PostgreSQL backend; LiteDB is the embedded SQLite backend used for local
// runs and tests. Both satisfy Store.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and applies the schema.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, unavailable("ping", err)
	}

	schema, err := schemaSQL("postgres.sql")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Candidates
// -----------------------------------------------------------------------------

// FindIDByFingerprint returns the document id for fp, or "" when none exists.
func (db *DB) FindIDByFingerprint(ctx context.Context, fp string) (string, error) {
	var id string
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM candidates WHERE fingerprint = $1 LIMIT 1`, fp,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", unavailable("find by fingerprint", err)
	}
	return id, nil
}

// FindIDByEmail returns the id of a document with this contact email, or "".
func (db *DB) FindIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := db.pool.QueryRow(ctx,
		`SELECT id FROM candidates WHERE email = $1 ORDER BY created_at LIMIT 1`, email,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", unavailable("find by email", err)
	}
	return id, nil
}

// UpsertCandidate inserts doc or merges it into the stored document. The
// stored original_data keeps keys the new data does not carry; created_at is
// preserved and an absent embedding keeps the previous one.
func (db *DB) UpsertCandidate(ctx context.Context, doc *CandidateDocument) error {
	original, err := json.Marshal(doc.OriginalData)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate: %w", err)
	}
	var embedding any
	if len(doc.Embedding) > 0 {
		embedding = doc.Embedding
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO candidates (id, fingerprint, email, content, original_data,
		                         document_name, char_count, source, type, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		     fingerprint   = EXCLUDED.fingerprint,
		     email         = COALESCE(EXCLUDED.email, candidates.email),
		     content       = EXCLUDED.content,
		     original_data = candidates.original_data || EXCLUDED.original_data,
		     document_name = EXCLUDED.document_name,
		     char_count    = EXCLUDED.char_count,
		     source        = EXCLUDED.source,
		     type          = EXCLUDED.type,
		     embedding     = COALESCE(EXCLUDED.embedding, candidates.embedding),
		     updated_at    = NOW()
		 RETURNING created_at, updated_at`,
		doc.ID, doc.Fingerprint, nullIfEmpty(doc.Email), doc.Content, original,
		doc.Metadata.DocumentName, doc.Metadata.CharCount, doc.Metadata.Source,
		doc.Metadata.Type, embedding,
	).Scan(&doc.Metadata.CreatedAt, &doc.Metadata.UpdatedAt)
	if err != nil {
		return unavailable("upsert candidate", err)
	}
	return nil
}

// GetCandidate returns the document with id, or nil when it does not exist.
func (db *DB) GetCandidate(ctx context.Context, id string) (*CandidateDocument, error) {
	var doc CandidateDocument
	var email *string
	var original []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, fingerprint, email, content, original_data, document_name,
		        char_count, source, type, embedding, created_at, updated_at
		 FROM candidates WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Fingerprint, &email, &doc.Content, &original,
		&doc.Metadata.DocumentName, &doc.Metadata.CharCount, &doc.Metadata.Source,
		&doc.Metadata.Type, &doc.Embedding, &doc.Metadata.CreatedAt, &doc.Metadata.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get candidate", err)
	}
	if err := decodeCandidate(&doc, original, email); err != nil {
		return nil, err
	}
	return &doc, nil
}

// CountByFingerprint returns the number of documents with fp.
func (db *DB) CountByFingerprint(ctx context.Context, fp string) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM candidates WHERE fingerprint = $1`, fp,
	).Scan(&n); err != nil {
		return 0, unavailable("count by fingerprint", err)
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

// CreateJob inserts a new job record.
func (db *DB) CreateJob(ctx context.Context, job *types.Job) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal job options: %w", err)
	}
	results, err := encodeResults(job.Results)
	if err != nil {
		return err
	}
	var resultsArg any
	if results != nil {
		resultsArg = results
	}

	rows, err := db.pool.Query(ctx,
		`INSERT INTO jobs (id, requirement, options, status, stage, progress,
		                   status_message, results, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING created_at, updated_at`,
		job.ID, job.Requirement, options, string(job.Status), job.Stage, job.Progress,
		job.StatusMessage, resultsArg, job.Error,
	)
	if err != nil {
		return unavailable("create job", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return unavailable("create job", err)
		}
		return ErrDuplicateJob
	}
	if err := rows.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return unavailable("create job", err)
	}
	return nil
}

// UpdateJob applies update unless the job is missing or terminal. Progress is
// kept monotonic with GREATEST.
func (db *DB) UpdateJob(ctx context.Context, update JobUpdate) error {
	results, err := encodeResults(update.Results)
	if err != nil {
		return err
	}
	var resultsArg any
	if results != nil {
		resultsArg = results
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET
		     status         = COALESCE(NULLIF($2::text, ''), status),
		     stage          = COALESCE(NULLIF($3::text, ''), stage),
		     progress       = GREATEST(progress, $4::int),
		     status_message = COALESCE(NULLIF($5::text, ''), status_message),
		     results        = COALESCE($6::jsonb, results),
		     error          = COALESCE(NULLIF($7::text, ''), error),
		     updated_at     = NOW()
		 WHERE id = $1 AND status NOT IN ('completed', 'failed')`,
		update.ID, string(update.Status), update.Stage, update.Progress,
		update.StatusMessage, resultsArg, update.Error,
	)
	if err != nil {
		return unavailable("update job", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotWritable
	}
	return nil
}

// GetJob retrieves a job by id, or nil when it does not exist.
func (db *DB) GetJob(ctx context.Context, id string) (*types.Job, error) {
	var job types.Job
	var status string
	var options, results []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, requirement, options, status, stage, progress, status_message,
		        results, error, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.Requirement, &options, &status, &job.Stage, &job.Progress,
		&job.StatusMessage, &results, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get job", err)
	}
	job.Status = types.JobStatus(status)
	if err := decodeJob(&job, options, results); err != nil {
		return nil, err
	}
	return &job, nil
}
