// Package fingerprint derives the stable identity key used to deduplicate candidates.
//
// The basis is chosen with one fixed priority everywhere in the system:
// LinkedIn URL, then GitHub URL, then email, then (only when the policy allows
// it) the serialized candidate content. Write-time indexing and read-time
// lookups both go through Compute so the two can never disagree.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/talent-pipeline/internal/types"
)

// Policy controls what happens when no identity field is present.
type Policy struct {
	AllowFallback bool
}

var (
	// Default hashes the full candidate content when no identity field exists.
	Default = Policy{AllowFallback: true}
	// Intake refuses candidates without linkedin, github or email.
	Intake = Policy{AllowFallback: false}
)

// Basis identifies which field a fingerprint was derived from.
type Basis string

// Basis values in priority order.
const (
	BasisLinkedIn Basis = "linkedin"
	BasisGitHub   Basis = "github"
	BasisEmail    Basis = "email"
	BasisContent  Basis = "content"
)

// Compute returns the lowercase hex sha-256 fingerprint of c.
func Compute(c types.Candidate, p Policy) (string, error) {
	_, basis, err := Select(c, p)
	if err != nil {
		return "", err
	}
	return Hash(basis), nil
}

// Select returns which field was used and the normalized basis string.
func Select(c types.Candidate, p Policy) (Basis, string, error) {
	if v := NormalizeURL(c.LinkedInURL); v != "" {
		return BasisLinkedIn, v, nil
	}
	if v := NormalizeURL(c.GitHubURL); v != "" {
		return BasisGitHub, v, nil
	}
	if v := NormalizeEmail(c.EmailValue()); v != "" {
		return BasisEmail, v, nil
	}
	if !p.AllowFallback {
		return "", "", &MissingIdentityError{Identifier: c.PublicIdentifier}
	}
	content, err := contentBasis(c)
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize candidate for fingerprint: %w", err)
	}
	return BasisContent, content, nil
}

// Hash returns the hex sha-256 of basis. An empty basis still hashes to a
// constant digest.
func Hash(basis string) string {
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// NormalizeURL reduces a profile URL to host+path so scheme, "www." and a
// trailing slash do not change identity.
func NormalizeURL(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	v = strings.TrimPrefix(v, "www.")
	if i := strings.IndexAny(v, "?#"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSuffix(v, "/")
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// contentBasis serializes the identity-bearing part of the candidate. Derived
// outputs are cleared so that re-scoring a candidate never changes its key.
func contentBasis(c types.Candidate) (string, error) {
	c = c.WithoutDerived()
	c.Fingerprint = ""
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
