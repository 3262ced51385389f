package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// NewDocumentID returns a fresh id of the form cand_<unix millis>_<8 hex>.
func NewDocumentID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("cand_%d_%s", now.UnixMilli(), suffix)
}

// BuildDocument prepares the persisted form of c. The id and timestamps are
// filled in by the caller and the store.
func BuildDocument(c types.Candidate, source string) (CandidateDocument, error) {
	content, err := json.Marshal(c)
	if err != nil {
		return CandidateDocument{}, fmt.Errorf("failed to serialize candidate: %w", err)
	}

	return CandidateDocument{
		Fingerprint:  c.Fingerprint,
		Email:        strings.ToLower(strings.TrimSpace(c.EmailValue())),
		Content:      string(content),
		OriginalData: c,
		Metadata: DocumentMetadata{
			DocumentName: documentName(c),
			CharCount:    utf8.RuneCount(content),
			Source:       source,
			Type:         DocumentType,
		},
	}, nil
}

func documentName(c types.Candidate) string {
	name := c.DisplayName()
	if c.Headline != "" {
		return name + " - " + c.Headline
	}
	if name == "" {
		return "candidate " + c.Fingerprint
	}
	return name
}
