package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/communitypress/dispatch-bot/internal/llm"
	"github.com/communitypress/dispatch-bot/internal/models"
	"github.com/communitypress/dispatch-bot/internal/storage"
)

// InsufficientContentError aborts a generation attempt before any provider
// call is made. It is not retryable within the same time window.
type InsufficientContentError struct {
	ServerID     string
	MessageCount int
}

func (e *InsufficientContentError) Error() string {
	return fmt.Sprintf("insufficient content for server %s: %d qualifying messages (need %d)",
		e.ServerID, e.MessageCount, minQualifyingMessages)
}

// IsInsufficientContent reports whether err is an insufficient-content abort.
func IsInsufficientContent(err error) bool {
	var ice *InsufficientContentError
	return errors.As(err, &ice)
}

// Retryable reports whether a whole-attempt retry at the orchestrator level
// can help. Parsing failures never reach here; they are recovered inside the
// stage that hit them.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsInsufficientContent(err) {
		return false
	}
	var pErr *storage.PersistenceError
	if errors.As(err, &pErr) {
		return false
	}
	if pe, ok := llm.AsProviderError(err); ok {
		return pe.Retryable()
	}
	return false
}

// FailureReportFor maps an error to the structured payload handed to the
// observability/notification collaborators.
func FailureReportFor(serverID string, err error, attempt int) *models.FailureReport {
	report := &models.FailureReport{
		ServerID:  serverID,
		ErrorKind: "generic_error",
		Message:   err.Error(),
		Retryable: Retryable(err),
		Attempt:   attempt,
		CreatedAt: time.Now().UTC(),
	}

	if IsInsufficientContent(err) {
		report.ErrorKind = "insufficient_content"
		return report
	}
	var pErr *storage.PersistenceError
	if errors.As(err, &pErr) {
		report.ErrorKind = "persistence_error"
		return report
	}
	if pe, ok := llm.AsProviderError(err); ok {
		report.ErrorKind = string(pe.Kind)
	}
	return report
}
