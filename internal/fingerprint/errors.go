package fingerprint

import "fmt"

// MissingIdentityError is returned when a candidate has none of linkedin,
// github or email and the policy does not allow a content fallback.
type MissingIdentityError struct {
	Identifier string
}

func (e *MissingIdentityError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("candidate %s has no linkedin, github or email to fingerprint", e.Identifier)
	}
	return "candidate has no linkedin, github or email to fingerprint"
}
