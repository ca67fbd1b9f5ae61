package errors

import (
	"fmt"
)

// ErrorCode represents a specific failure kind in the answer pipeline.
type ErrorCode string

const (
	// ErrCodeNoProgramSelected indicates the request named no program.
	ErrCodeNoProgramSelected ErrorCode = "NO_PROGRAM_SELECTED"
	// ErrCodeProgramNotFound indicates the program is missing or inactive.
	ErrCodeProgramNotFound ErrorCode = "PROGRAM_NOT_FOUND"
	// ErrCodeAccessDenied indicates the user's tags do not grant the program.
	ErrCodeAccessDenied ErrorCode = "ACCESS_DENIED"
	// ErrCodeQuotaExceeded indicates the per-day question quota is exhausted.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrCodeContentUnavailable indicates program content could not be loaded.
	ErrCodeContentUnavailable ErrorCode = "CONTENT_UNAVAILABLE"
	// ErrCodeEmbeddingUnavailable indicates the embedding endpoint failed.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrCodeLLMUnavailable indicates the completion endpoint failed.
	ErrCodeLLMUnavailable ErrorCode = "LLM_UNAVAILABLE"
	// ErrCodeLLMTimeout indicates the completion call exceeded its deadline.
	ErrCodeLLMTimeout ErrorCode = "LLM_TIMEOUT"
	// ErrCodePersistenceFailure indicates the turn could not be committed.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	// ErrCodeBudgetExceeded indicates ingested content exceeds the character budget.
	ErrCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	// ErrCodeSummarizationFailed indicates both summarizers left content over budget.
	ErrCodeSummarizationFailed ErrorCode = "SUMMARIZATION_FAILED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// PipelineError represents a structured error raised by the answer pipeline.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *PipelineError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error kinds.

// NoProgramSelected creates a no-program-selected error.
func NoProgramSelected() *PipelineError {
	return &PipelineError{Code: ErrCodeNoProgramSelected, Message: "select a program"}
}

// ProgramNotFound creates a program-not-found error.
func ProgramNotFound(code string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeProgramNotFound,
		Message: fmt.Sprintf("program not found: %s", code),
	}
}

// AccessDenied creates an access-denied error.
func AccessDenied(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeAccessDenied, Message: msg}
}

// ContentUnavailable creates a content-unavailable error.
func ContentUnavailable(code string) *PipelineError {
	return &PipelineError{
		Code:    ErrCodeContentUnavailable,
		Message: fmt.Sprintf("knowledge base unavailable for program: %s", code),
	}
}

// EmbeddingUnavailable creates an embedding-unavailable error.
func EmbeddingUnavailable(cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeEmbeddingUnavailable, Message: "embedding service unavailable", Cause: cause}
}

// LLMUnavailable creates an LLM-unavailable error.
func LLMUnavailable(cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeLLMUnavailable, Message: "LLM service unavailable", Cause: cause}
}

// LLMTimeout creates an LLM-timeout error.
func LLMTimeout(cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeLLMTimeout, Message: "LLM call timed out", Cause: cause}
}

// PersistenceFailure creates a persistence-failure error.
func PersistenceFailure(cause error) *PipelineError {
	return &PipelineError{Code: ErrCodePersistenceFailure, Message: "failed to persist conversation turn", Cause: cause}
}

// BudgetExceeded creates a budget-exceeded error carrying current/limit.
func BudgetExceeded(length, budget int) *PipelineError {
	e := &PipelineError{
		Code:    ErrCodeBudgetExceeded,
		Message: fmt.Sprintf("content length %d exceeds character budget %d", length, budget),
	}
	return e.WithContext("length", length).WithContext("budget", budget)
}

// SummarizationFailed creates a summarization-failed error carrying final length/limit.
func SummarizationFailed(length, budget int) *PipelineError {
	e := &PipelineError{
		Code:    ErrCodeSummarizationFailed,
		Message: fmt.Sprintf("summarized content length %d still exceeds character budget %d", length, budget),
	}
	return e.WithContext("length", length).WithContext("budget", budget).WithContext("fallback_attempted", true)
}

// InvalidArgument creates an invalid-argument error.
func InvalidArgument(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeUnauthorized, Message: msg}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *PipelineError {
	return &PipelineError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a PipelineError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Code
	}
	return defaultCode
}
