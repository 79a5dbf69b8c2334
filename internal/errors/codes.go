// Package errors provides the structured error type used across every
// stage of the retrieval pipeline. Error codes follow ERR_XXX_NAME,
// where the leading digit groups codes by category:
//
//	1XX: parse errors (corrupt input record)
//	2XX: IO errors (file, disk, lock)
//	3XX: network / embedding-service errors
//	4XX: validation / capability errors
//	5XX: internal errors
//	6XX: cancellation (never logged as an error)
package errors

// Category classifies an error for dispatch and logging.
type Category string

const (
	CategoryParse      Category = "PARSE"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
	CategoryCancelled  Category = "CANCELLED"
)

// Severity classifies how an error should affect control flow.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

const (
	// Parse errors (100-199): a corrupt input line or unparsable date.
	// Non-fatal; the loader skips the record and accumulates a report.
	CodeParseError = "ERR_101_PARSE_ERROR"

	// IO errors (200-299). Fatal at build; surfaced as IndexUnavailable
	// at query time.
	CodeIOError        = "ERR_201_IO_ERROR"
	CodeLockContention = "ERR_202_LOCK_CONTENTION"
	CodeIndexUnavail   = "ERR_203_INDEX_UNAVAILABLE"

	// Schema errors (250-259). At index load, triggers a forced full
	// rebuild if a build is in progress, otherwise IndexUnavailable.
	CodeSchemaMismatch = "ERR_251_SCHEMA_MISMATCH"

	// Embedding failures (300-399), each retried per the builder's and
	// summarizer's backoff policy before the affected batch degrades.
	CodeEmbedNetwork     = "ERR_301_EMBED_NETWORK"
	CodeEmbedRateLimited = "ERR_302_EMBED_RATE_LIMITED"
	CodeEmbedServerError = "ERR_303_EMBED_SERVER_ERROR"
	CodeEmbedTimeout     = "ERR_304_EMBED_TIMEOUT"
	CodeEmbedParse       = "ERR_305_EMBED_PARSE"

	// Validation / capability errors (400-499).
	CodeCapabilityMissing = "ERR_401_CAPABILITY_MISSING"
	CodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	CodeInvalidInput      = "ERR_403_INVALID_INPUT"

	// Internal errors (500-599).
	CodeInternal = "ERR_501_INTERNAL"

	// Cancellation (600-699). Cooperative; never logged as an error.
	CodeCancelled = "ERR_601_CANCELLED"
)

func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryParse
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '6':
		return CategoryCancelled
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case CodeCancelled:
		return SeverityInfo
	case CodeIOError, CodeSchemaMismatch:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case CodeEmbedNetwork, CodeEmbedRateLimited, CodeEmbedServerError, CodeEmbedTimeout:
		return true
	default:
		return false
	}
}
