package llm

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies completion-provider failures.
type ProviderErrorKind string

const (
	KindQuotaExceeded    ProviderErrorKind = "quota_exceeded"
	KindAuthFailure      ProviderErrorKind = "auth_failure"
	KindModelUnavailable ProviderErrorKind = "model_unavailable"
	KindTimeout          ProviderErrorKind = "timeout"
	KindGeneric          ProviderErrorKind = "provider_error"
)

// ProviderError is the typed failure returned by completion clients.
type ProviderError struct {
	Provider string
	Kind     ProviderErrorKind
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether an orchestrator-level retry can help.
// Auth failures and missing models do not recover on their own.
func (e *ProviderError) Retryable() bool {
	switch e.Kind {
	case KindQuotaExceeded, KindTimeout, KindGeneric:
		return true
	}
	return false
}

// AsProviderError unwraps err into a *ProviderError if it is one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
