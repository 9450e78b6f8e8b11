package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPolicyDenied      = errors.New("policy denied")
	ErrConsentDeclined   = errors.New("consent declined")
	ErrTransport         = errors.New("daemon unreachable")
	ErrExecution         = errors.New("execution failed")
	ErrTimeout           = errors.New("timeout")
	ErrSecurityViolation = errors.New("security violation")
	ErrAlreadyRunning    = errors.New("daemon already running")
	ErrAuditUnavailable  = errors.New("audit sinks unavailable")
)

// DeniedError carries the decision behind a denial.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s", e.Decision.Reason)
}

func (e *DeniedError) Unwrap() error {
	if e.Decision.Violation.Security() {
		return ErrSecurityViolation
	}
	return ErrPolicyDenied
}

// NewDeniedError wraps a non-allowed decision.
func NewDeniedError(d Decision) error {
	return &DeniedError{Decision: d}
}
