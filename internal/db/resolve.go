package db

import (
	"context"
	"strings"
	"time"
)

// Resolution is the outcome of the new-vs-update decision for one candidate.
type Resolution struct {
	ID    string
	IsNew bool
}

// Resolve picks the document id for a fingerprint. An existing document with
// the same fingerprint wins; otherwise a document with the same contact email
// (secondaryKey) is reused; otherwise a fresh id is generated. Store failures
// are returned as *StoreUnavailableError and never reported as new.
func Resolve(ctx context.Context, store CandidateStore, fingerprint, secondaryKey string) (Resolution, error) {
	id, err := store.FindIDByFingerprint(ctx, fingerprint)
	if err != nil {
		return Resolution{}, unavailable("find by fingerprint", err)
	}
	if id != "" {
		return Resolution{ID: id, IsNew: false}, nil
	}

	if email := strings.ToLower(strings.TrimSpace(secondaryKey)); email != "" {
		id, err := store.FindIDByEmail(ctx, email)
		if err != nil {
			return Resolution{}, unavailable("find by email", err)
		}
		if id != "" {
			return Resolution{ID: id, IsNew: false}, nil
		}
	}

	return Resolution{ID: NewDocumentID(time.Now()), IsNew: true}, nil
}
