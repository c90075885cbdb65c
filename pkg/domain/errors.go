package domain

import "errors"

// Common domain errors
var (
	ErrDomainNotFound = errors.New("domain not found")
	ErrInvalidAddress = errors.New("invalid address")
	ErrFetchFailed    = errors.New("domain mapping fetch failed")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// Error codes carried by ErrorResponse.
const (
	CodeDomainNotFound = "DOMAIN_NOT_FOUND"
	CodeInvalidAddress = "INVALID_ADDRESS"
	CodeInternal       = "INTERNAL"
)

// DomainError wraps errors with additional context.
//
//nolint:revive // Name is intentionally verbose to distinguish domain-layer errors
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NotFound builds the error returned when a pseudo-domain has no mapping entry.
func NotFound(name string) error {
	return &DomainError{
		Err:     ErrDomainNotFound,
		Code:    CodeDomainNotFound,
		Message: "domain not found: " + name,
		Details: map[string]any{"domain": name},
	}
}

// CodeOf maps an error onto the stable machine-readable code used by the daemon API.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	switch {
	case errors.Is(err, ErrDomainNotFound):
		return CodeDomainNotFound
	case errors.Is(err, ErrInvalidAddress):
		return CodeInvalidAddress
	default:
		return CodeInternal
	}
}

// ErrorResponse defines the standard JSON error model returned by the resolver API.
// TraceID should carry the current OpenTelemetry trace identifier when available to aid diagnostics.
type ErrorResponse struct {
	Code    string `json:"code"`               // Machine-readable error code (e.g., DOMAIN_NOT_FOUND)
	Message string `json:"message"`            // Human-readable message (safe for logs)
	TraceID string `json:"trace_id,omitempty"` // Optional trace/correlation ID
}
