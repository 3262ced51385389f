package types

// Identity keys used by fallback records. They never collide with a real
// fingerprint, which is always a 64 character hex digest.
const (
	FallbackErrorCase   = "error_case"
	FallbackNoCandidate = "no_candidate"
)

// ScoringResult is the evaluation stage output for one candidate.
type ScoringResult struct {
	Fingerprint string  `json:"fingerprint"`
	Score       float64 `json:"score"`
	Rationale   string  `json:"rationale"`
	Error       string  `json:"error,omitempty"`
}

// BackgroundResult is the verification stage output for one candidate.
type BackgroundResult struct {
	Fingerprint string   `json:"fingerprint"`
	IsMatch     bool     `json:"isMatch"`
	Flagged     []string `json:"flagged"`
	Summary     string   `json:"summary"`
	Error       string   `json:"error,omitempty"`
}

// EngagementResult is the engagement stage output for one candidate.
type EngagementResult struct {
	Fingerprint string   `json:"fingerprint"`
	Questions   []string `json:"questions"`
	Outreach    string   `json:"outreach"`
	Error       string   `json:"error,omitempty"`
}

// IsFallbackKey reports whether key identifies a synthesized fallback record.
func IsFallbackKey(key string) bool {
	return key == FallbackErrorCase || key == FallbackNoCandidate
}
