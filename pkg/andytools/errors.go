package andytools

import (
	"fmt"
	"strings"
)

// ErrorCategory classifies a terminal execution failure for observability
// tagging and for callers that want to branch on error kind.
type ErrorCategory string

const (
	ErrorCategoryNotFound     ErrorCategory = "NotFound"
	ErrorCategoryDisabled     ErrorCategory = "Disabled"
	ErrorCategoryValidation   ErrorCategory = "Validation"
	ErrorCategoryPermission   ErrorCategory = "Permission"
	ErrorCategoryResourceLimit ErrorCategory = "ResourceLimit"
	ErrorCategoryCancelled    ErrorCategory = "Cancelled"
	ErrorCategoryToolFailure  ErrorCategory = "ToolFailure"
	ErrorCategoryInternal     ErrorCategory = "InternalError"
)

// ToolNotFoundError reports that the registry has no entry for an id.
type ToolNotFoundError struct{ ToolID string }

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("Tool '%s' not found", e.ToolID)
}

// ToolDisabledError reports that a tool is registered but disabled.
type ToolDisabledError struct{ ToolID string }

func (e *ToolDisabledError) Error() string {
	return fmt.Sprintf("Tool '%s' is disabled", e.ToolID)
}

// ValidationFailedError wraps one or more validation messages.
type ValidationFailedError struct{ Messages []string }

func (e *ValidationFailedError) Error() string {
	msg := "Validation failed"
	for _, m := range e.Messages {
		msg += ": " + m
	}
	return msg
}

// SecurityValidationError wraps one or more security-gate denial reasons.
type SecurityValidationError struct{ Reasons []string }

func (e *SecurityValidationError) Error() string {
	msg := "Security validation failed"
	for _, r := range e.Reasons {
		msg += ": " + r
	}
	return msg
}

// ErrExecutionCancelled is the stable message surfaced for every cancelled
// execution, whether triggered by timeout, caller cancellation, an explicit
// cancelExecutions call, or a resource-limit trip.
const ErrExecutionCancelled = "Tool execution was cancelled"

// ErrExecutorDisposed is returned by Execute once the Executor has been
// disposed.
const ErrExecutorDisposed = "executor has been disposed"

// classifyErrorMessage derives an ErrorCategory from a free-text tool error
// message using the same keyword heuristic spec.md §4.7 requires for
// observability's error-distribution analytics.
func classifyErrorMessage(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "timeout", "timed out"):
		return "timeout"
	case containsAny(lower, "permission", "denied", "forbidden"):
		return "permission"
	case containsAny(lower, "not found", "404"):
		return "not found"
	case containsAny(lower, "validation", "invalid"):
		return "validation"
	default:
		return "Other"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
