package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error carried through the engine. Code drives the
// derived fields; Details and Suggestion exist for presentation layers.
type Error struct {
	Code       string            // stable identifier, e.g. "ERR_201_EMPTY_SKU"
	Message    string            // human-readable description
	Category   Category          // derived from Code
	Severity   Severity          // derived from Code
	Details    map[string]string // extra context for logs and debug output
	Cause      error             // wrapped underlying error, may be nil
	Retryable  bool              // derived from Code
	Suggestion string            // actionable hint shown to the user
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches two structured errors by code so errors.Is works with
// sentinel-style comparisons.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithDetail attaches one key-value pair of context and returns the error
// so calls chain.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets the user-facing hint and returns the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// New builds an Error for the given code. Category, severity and the
// retryable flag all follow from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap lifts a plain error into a structured one, reusing its message.
// A nil input stays nil.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError marks a broken configuration. These are fatal.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// DataError marks a bad catalog row. Callers usually log and skip the row,
// except where the contract makes the failure hard (empty SKU).
func DataError(message string, cause error) *Error {
	return New(ErrCodeMalformedRow, message, cause)
}

// NetworkError marks a transient network failure, eligible for retry.
func NetworkError(message string, cause error) *Error {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError marks a caller contract violation. Raised immediately,
// never masked.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// find pulls the structured error out of a chain, nil when there is none.
func find(err error) *Error {
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return nil
}

// IsRetryable reports whether a retry can plausibly succeed.
func IsRetryable(err error) bool {
	e := find(err)
	return e != nil && e.Retryable
}

// IsFatal reports whether the error should abort the current operation.
func IsFatal(err error) bool {
	e := find(err)
	return e != nil && e.Severity == SeverityFatal
}

// GetCode returns the error code, or "" for unstructured errors.
func GetCode(err error) string {
	if e := find(err); e != nil {
		return e.Code
	}
	return ""
}

// GetCategory returns the category, or "" for unstructured errors.
func GetCategory(err error) Category {
	if e := find(err); e != nil {
		return e.Category
	}
	return ""
}
