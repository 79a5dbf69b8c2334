package errors

import "fmt"

// Error is the structured error type threaded through the pipeline. It
// satisfies the standard error interface plus Unwrap and Is, so callers
// may use errors.Is/errors.As from the standard library against it.
type Error struct {
	Code      string
	Message   string
	Category  Category
	Severity  Severity
	Details   map[string]string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, errors.New(CodeIOError, "", nil))
// works regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a key/value detail and returns e for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates an Error with category, severity, and retryable flag
// derived from code.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error, using err's message as
// the Error's message. Returns nil if err is nil.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ParseError reports a corrupt input record. Non-fatal: callers skip the
// record rather than failing the build.
func ParseError(message string, cause error) *Error {
	return New(CodeParseError, message, cause)
}

// IOError reports a filesystem failure. Fatal at build time.
func IOError(message string, cause error) *Error {
	return New(CodeIOError, message, cause)
}

// LockContention reports that a build could not acquire the exclusive
// build lock, either because another build already holds it or because
// the lock file itself could not be probed. Fatal: the build fails fast
// rather than waiting.
func LockContention(message string, cause error) *Error {
	return New(CodeLockContention, message, cause)
}

// IndexUnavailable reports that a query could not proceed because the
// on-disk index is missing, corrupt, or schema-incompatible.
func IndexUnavailable(message string, cause error) *Error {
	return New(CodeIndexUnavail, message, cause)
}

// SchemaMismatchError reports a metadata schema_version older than the
// module understands.
func SchemaMismatchError(message string) *Error {
	return New(CodeSchemaMismatch, message, nil)
}

// CapabilityMissing reports a semantic or hybrid query attempted without
// an embedding hook configured. Surfaced to the caller, never retried.
func CapabilityMissing(message string) *Error {
	return New(CodeCapabilityMissing, message, nil)
}

// Cancelled reports a cooperative cancellation. Never logged as an
// error; callers should treat it as a normal early return.
func Cancelled() *Error {
	return New(CodeCancelled, "operation cancelled", nil)
}

// IsRetryable reports whether err is an *Error with Retryable set.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// IsCancelled reports whether err is the cancellation sentinel code.
func IsCancelled(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Code == CodeCancelled
}

// Code extracts the error code, or "" if err is not an *Error.
func Code(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
