package db

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/jonathan/talent-pipeline/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func schemaSQL(name string) (string, error) {
	data, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return "", fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	return string(data), nil
}

// encodeResults returns nil for a nil pointer so the column is written as NULL.
func encodeResults(r *types.JobResults) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job results: %w", err)
	}
	return data, nil
}

func decodeJob(job *types.Job, options, results []byte) error {
	if len(options) > 0 {
		if err := json.Unmarshal(options, &job.Options); err != nil {
			return fmt.Errorf("failed to unmarshal job options: %w", err)
		}
	}
	if len(results) > 0 {
		job.Results = &types.JobResults{}
		if err := json.Unmarshal(results, job.Results); err != nil {
			return fmt.Errorf("failed to unmarshal job results: %w", err)
		}
	}
	return nil
}

// mergeTopLevel overlays the top-level keys of next onto prev. Nested objects
// and arrays are replaced whole, the same as jsonb || in Postgres.
func mergeTopLevel(prev, next []byte) ([]byte, error) {
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(prev, &merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored candidate data: %w", err)
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(next, &overlay); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candidate data: %w", err)
	}
	if merged == nil {
		merged = make(map[string]json.RawMessage, len(overlay))
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func decodeCandidate(doc *CandidateDocument, originalData []byte, email *string) error {
	if email != nil {
		doc.Email = *email
	}
	if err := json.Unmarshal(originalData, &doc.OriginalData); err != nil {
		return fmt.Errorf("failed to unmarshal candidate data: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
