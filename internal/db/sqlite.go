package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

// timeLayout is how timestamps are stored in SQLite TEXT columns.
const timeLayout = time.RFC3339Nano

// now is the clock for timestamps SQLite does not stamp itself.
var now = func() time.Time { return time.Now().UTC() }

// LiteDB is the embedded SQLite backend.
type LiteDB struct {
	db *sql.DB
}

// OpenLite opens (or creates) the SQLite database at path and applies the
// schema. Pass MemoryDSN for an in-memory database.
func OpenLite(ctx context.Context, path string) (*LiteDB, error) {
	if path != MemoryDSN {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: an in-memory database lives and dies with its
	// connection, and a single writer avoids "database is locked".
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, unavailable("ping", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if path != MemoryDSN {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting journal mode: %w", err)
		}
	}

	schema, err := schemaSQL("sqlite.sql")
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &LiteDB{db: conn}, nil
}

// Close closes the underlying database connection.
func (l *LiteDB) Close() error {
	return l.db.Close()
}

// FindIDByFingerprint returns the document id for fp, or "" when none exists.
func (l *LiteDB) FindIDByFingerprint(ctx context.Context, fp string) (string, error) {
	return l.findID(ctx, "find by fingerprint",
		`SELECT id FROM candidates WHERE fingerprint = ? LIMIT 1`, fp)
}

// FindIDByEmail returns the id of a document with this contact email, or "".
func (l *LiteDB) FindIDByEmail(ctx context.Context, email string) (string, error) {
	return l.findID(ctx, "find by email",
		`SELECT id FROM candidates WHERE email = ? ORDER BY created_at LIMIT 1`, email)
}

func (l *LiteDB) findID(ctx context.Context, op, query string, arg string) (string, error) {
	var id string
	err := l.db.QueryRowContext(ctx, query, arg).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", unavailable(op, err)
	}
	return id, nil
}

// UpsertCandidate inserts doc or merges it into the stored document. The
// merge of original_data is shallow, like the Postgres backend: top-level keys
// of doc replace stored ones and other stored keys survive. created_at is
// preserved and an absent embedding keeps the previous one.
func (l *LiteDB) UpsertCandidate(ctx context.Context, doc *CandidateDocument) error {
	original, err := json.Marshal(doc.OriginalData)
	if err != nil {
		return fmt.Errorf("failed to marshal candidate: %w", err)
	}
	var embedding any
	if len(doc.Embedding) > 0 {
		data, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		embedding = string(data)
	}
	ts := now().Format(timeLayout)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("upsert candidate", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.QueryRowContext(ctx,
		`SELECT original_data FROM candidates WHERE id = ?`, doc.ID,
	).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return unavailable("upsert candidate", err)
	default:
		if original, err = mergeTopLevel([]byte(stored), original); err != nil {
			return err
		}
	}

	var createdAt, updatedAt string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO candidates (id, fingerprint, email, content, original_data,
		                         document_name, char_count, source, type, embedding,
		                         created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     fingerprint   = excluded.fingerprint,
		     email         = COALESCE(excluded.email, candidates.email),
		     content       = excluded.content,
		     original_data = excluded.original_data,
		     document_name = excluded.document_name,
		     char_count    = excluded.char_count,
		     source        = excluded.source,
		     type          = excluded.type,
		     embedding     = COALESCE(excluded.embedding, candidates.embedding),
		     updated_at    = excluded.updated_at
		 RETURNING created_at, updated_at`,
		doc.ID, doc.Fingerprint, nullIfEmpty(doc.Email), doc.Content, string(original),
		doc.Metadata.DocumentName, doc.Metadata.CharCount, doc.Metadata.Source,
		doc.Metadata.Type, embedding, ts, ts,
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		return unavailable("upsert candidate", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("upsert candidate", err)
	}
	doc.Metadata.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	doc.Metadata.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return nil
}

// GetCandidate returns the document with id, or nil when it does not exist.
func (l *LiteDB) GetCandidate(ctx context.Context, id string) (*CandidateDocument, error) {
	var doc CandidateDocument
	var email, embedding sql.NullString
	var original, createdAt, updatedAt string

	err := l.db.QueryRowContext(ctx,
		`SELECT id, fingerprint, email, content, original_data, document_name,
		        char_count, source, type, embedding, created_at, updated_at
		 FROM candidates WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Fingerprint, &email, &doc.Content, &original,
		&doc.Metadata.DocumentName, &doc.Metadata.CharCount, &doc.Metadata.Source,
		&doc.Metadata.Type, &embedding, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get candidate", err)
	}

	var emailPtr *string
	if email.Valid {
		emailPtr = &email.String
	}
	if err := decodeCandidate(&doc, []byte(original), emailPtr); err != nil {
		return nil, err
	}
	if embedding.Valid {
		if err := json.Unmarshal([]byte(embedding.String), &doc.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	doc.Metadata.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	doc.Metadata.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &doc, nil
}

// CountByFingerprint returns the number of documents with fp.
func (l *LiteDB) CountByFingerprint(ctx context.Context, fp string) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candidates WHERE fingerprint = ?`, fp,
	).Scan(&n); err != nil {
		return 0, unavailable("count by fingerprint", err)
	}
	return n, nil
}

// CreateJob inserts a new job record.
func (l *LiteDB) CreateJob(ctx context.Context, job *types.Job) error {
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
		resultsArg = string(results)
	}
	ts := now()

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO jobs (id, requirement, options, status, stage, progress,
		                   status_message, results, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		job.ID, job.Requirement, string(options), string(job.Status), job.Stage, job.Progress,
		job.StatusMessage, resultsArg, job.Error, ts.Format(timeLayout), ts.Format(timeLayout),
	)
	if err != nil {
		return unavailable("create job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("create job", err)
	}
	if n == 0 {
		return ErrDuplicateJob
	}
	job.CreatedAt, job.UpdatedAt = ts, ts
	return nil
}

// UpdateJob applies update unless the job is missing or terminal. Progress is
// kept monotonic with MAX.
func (l *LiteDB) UpdateJob(ctx context.Context, update JobUpdate) error {
	results, err := encodeResults(update.Results)
	if err != nil {
		return err
	}
	var resultsArg any
	if results != nil {
		resultsArg = string(results)
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET
		     status         = COALESCE(NULLIF(?, ''), status),
		     stage          = COALESCE(NULLIF(?, ''), stage),
		     progress       = MAX(progress, ?),
		     status_message = COALESCE(NULLIF(?, ''), status_message),
		     results        = COALESCE(?, results),
		     error          = COALESCE(NULLIF(?, ''), error),
		     updated_at     = ?
		 WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(update.Status), update.Stage, update.Progress, update.StatusMessage,
		resultsArg, update.Error, now().Format(timeLayout), update.ID,
	)
	if err != nil {
		return unavailable("update job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("update job", err)
	}
	if n == 0 {
		return ErrJobNotWritable
	}
	return nil
}

// GetJob retrieves a job by id, or nil when it does not exist.
func (l *LiteDB) GetJob(ctx context.Context, id string) (*types.Job, error) {
	var job types.Job
	var status, options, createdAt, updatedAt string
	var results sql.NullString

	err := l.db.QueryRowContext(ctx,
		`SELECT id, requirement, options, status, stage, progress, status_message,
		        results, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id,
	).Scan(&job.ID, &job.Requirement, &options, &status, &job.Stage, &job.Progress,
		&job.StatusMessage, &results, &job.Error, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get job", err)
	}

	job.Status = types.JobStatus(status)
	var resultsJSON []byte
	if results.Valid {
		resultsJSON = []byte(results.String)
	}
	if err := decodeJob(&job, []byte(options), resultsJSON); err != nil {
		return nil, err
	}
	job.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	job.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &job, nil
}
