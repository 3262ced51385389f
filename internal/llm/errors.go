package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UpstreamTransientError is a failure of an external service that looks like
// a temporary server-side problem and may succeed on retry.
type UpstreamTransientError struct {
	StatusCode int
	Cause      error
}

func (e *UpstreamTransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream transient error (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("upstream transient error: %v", e.Cause)
}

func (e *UpstreamTransientError) Unwrap() error {
	return e.Cause
}

// UpstreamPermanentError is any other failure of an external service. It is
// surfaced to the caller without retrying.
type UpstreamPermanentError struct {
	StatusCode int
	Cause      error
}

func (e *UpstreamPermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("upstream error: %v", e.Cause)
}

func (e *UpstreamPermanentError) Unwrap() error {
	return e.Cause
}

// transientMessage matches server-side failures in error text when neither a
// googleapi nor a gRPC status is attached. Status codes only count next to a
// status word, so digits inside token counts or project ids never match.
var transientMessage = regexp.MustCompile(`(?i)` +
	`\b(?:status|error|code|http(?:/\d(?:\.\d)?)?)[\s:=]*50[0234]\b` +
	`|\bcode\s*=\s*(?:internal|unavailable|deadlineexceeded)\b` +
	`|\b(?:internal|server) error\b` +
	`|\b(?:service )?unavailable\b`)

// transientCodes are the gRPC codes the model API uses for server-side
// failures.
var transientCodes = map[codes.Code]bool{
	codes.Internal:         true,
	codes.Unavailable:      true,
	codes.DeadlineExceeded: true,
}

// IsRetryable reports whether err looks like a transient upstream server error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var transient *UpstreamTransientError
	if errors.As(err, &transient) {
		return true
	}
	var permanent *UpstreamPermanentError
	if errors.As(err, &permanent) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError
	}
	if st, ok := status.FromError(err); ok {
		return transientCodes[st.Code()]
	}
	return transientMessage.MatchString(err.Error())
}

// ClassifyUpstream wraps err in UpstreamTransientError or UpstreamPermanentError.
// Already-classified errors are returned unchanged.
func ClassifyUpstream(err error) error {
	if err == nil {
		return nil
	}
	var transient *UpstreamTransientError
	var permanent *UpstreamPermanentError
	if errors.As(err, &transient) || errors.As(err, &permanent) {
		return err
	}
	code := 0
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	if IsRetryable(err) {
		return &UpstreamTransientError{StatusCode: code, Cause: err}
	}
	return &UpstreamPermanentError{StatusCode: code, Cause: err}
}

// StatusError builds a classified error from an HTTP status code.
func StatusError(code int, cause error) error {
	if code >= http.StatusInternalServerError {
		return &UpstreamTransientError{StatusCode: code, Cause: cause}
	}
	return &UpstreamPermanentError{StatusCode: code, Cause: cause}
}
