package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/fingerprint"
	"github.com/jonathan/talent-pipeline/internal/llm"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// IndexStats counts the outcome of writing candidates to the store.
type IndexStats struct {
	New     int
	Updated int
	Failed  int
}

// Indexer fingerprints candidates and writes them to the candidate store.
type Indexer struct {
	store    db.CandidateStore
	embedder llm.Embedder
	source   string
	logger   *zap.Logger
}

// index fingerprints every candidate, resolves new versus existing documents
// and writes them through. A failure for one candidate is counted and the
// loop continues. Candidates that could not be fingerprinted are left out of
// the returned slice; a failed write keeps the candidate so later stages still
// see it. ids maps fingerprint to document id for the final write.
func (ix *Indexer) index(ctx context.Context, candidates []types.Candidate) ([]types.Candidate, map[string]string, IndexStats) {
	var stats IndexStats
	ids := make(map[string]string, len(candidates))
	out := make([]types.Candidate, 0, len(candidates))

	for _, c := range candidates {
		fp, err := fingerprint.Compute(c, fingerprint.Default)
		if err != nil {
			stats.Failed++
			ix.logger.Warn("candidate skipped: no fingerprint",
				zap.String("public_identifier", c.PublicIdentifier), zap.Error(err))
			continue
		}
		c.Fingerprint = fp
		if _, seen := ids[fp]; seen {
			ix.logger.Info("duplicate candidate in run skipped", zap.String("fingerprint", fp))
			continue
		}

		res, err := ix.write(ctx, c, "", false)
		if err != nil {
			stats.Failed++
			ix.logger.Warn("candidate index failed", zap.String("fingerprint", fp), zap.Error(err))
			ids[fp] = ""
			out = append(out, c)
			continue
		}
		if res.IsNew {
			stats.New++
		} else {
			stats.Updated++
		}
		ids[fp] = res.ID
		out = append(out, c)
	}
	return out, ids, stats
}

// write upserts c under id, resolving the id first when it is empty. With
// embed set the document content is also embedded when an embedder exists.
func (ix *Indexer) write(ctx context.Context, c types.Candidate, id string, embed bool) (db.Resolution, error) {
	res := db.Resolution{ID: id}
	if id == "" {
		var err error
		res, err = db.Resolve(ctx, ix.store, c.Fingerprint, c.EmailValue())
		if err != nil {
			return db.Resolution{}, err
		}
	}

	doc, err := db.BuildDocument(c, ix.source)
	if err != nil {
		return db.Resolution{}, err
	}
	doc.ID = res.ID

	if embed && ix.embedder != nil {
		vec, err := ix.embedder.Embed(ctx, doc.Content)
		if err != nil {
			ix.logger.Warn("embedding failed, storing without vector",
				zap.String("fingerprint", c.Fingerprint), zap.Error(err))
		} else {
			doc.Embedding = vec
		}
	}

	if err := ix.store.UpsertCandidate(ctx, &doc); err != nil {
		return db.Resolution{}, fmt.Errorf("failed to save candidate %s: %w", c.Fingerprint, err)
	}
	return res, nil
}

// persist writes merged candidates with their stage outputs. It returns the
// number of failed writes.
func (ix *Indexer) persist(ctx context.Context, merged []types.Candidate, ids map[string]string) int {
	failed := 0
	for _, c := range merged {
		if _, err := ix.write(ctx, c, ids[c.Fingerprint], true); err != nil {
			failed++
			var sue *db.StoreUnavailableError
			if errors.As(err, &sue) {
				ix.logger.Error("store unavailable for final candidate write",
					zap.String("fingerprint", c.Fingerprint), zap.Error(err))
				continue
			}
			ix.logger.Warn("final candidate write failed",
				zap.String("fingerprint", c.Fingerprint), zap.Error(err))
		}
	}
	return failed
}
