package paypal

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth: credentials rejected or token exchange failed.
	ErrAuth = errors.New("provider authentication failed")
	// ErrNetwork: the request never reached the provider.
	ErrNetwork = errors.New("provider unreachable")
	// ErrNotFound: the provider has no such order.
	ErrNotFound = errors.New("provider order not found")
	// ErrOrderNotApproved: capture attempted before buyer approval.
	ErrOrderNotApproved = errors.New("provider order not approved")
	// ErrAlreadyCaptured: a prior capture already completed. Callers treat
	// this as success, not failure.
	ErrAlreadyCaptured = errors.New("provider order already captured")
	// ErrAmbiguousOutcome: the request may or may not have been applied
	// (timeout after send). Callers must re-check via GetOrder before any
	// retry to avoid a double capture.
	ErrAmbiguousOutcome = errors.New("provider call outcome unknown")
)

// ProviderError carries a non-2xx provider response that maps to no sentinel.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}
