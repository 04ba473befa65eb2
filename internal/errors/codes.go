// Package errors carries structured errors across the catalog engine. Every
// error gets a stable ERR_NNN_* code whose leading digit places it in a
// category: 1 config, 2 data, 3 network, 4 validation, 5 internal.
package errors

// Category groups error codes by their origin.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryData       Category = "DATA"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity says how a caller should react to an error.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"   // abort the run
	SeverityError   Severity = "ERROR"   // operation failed, run may continue
	SeverityWarning Severity = "WARNING" // degraded, keep going
	SeverityInfo    Severity = "INFO"
)

const (
	// 1xx configuration
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// 2xx catalog data and on-disk state
	ErrCodeEmptySKU           = "ERR_201_EMPTY_SKU"
	ErrCodeMalformedRow       = "ERR_202_MALFORMED_ROW"
	ErrCodeCorruptIndex       = "ERR_203_CORRUPT_INDEX"
	ErrCodeCheckpointCorrupt  = "ERR_204_CHECKPOINT_CORRUPT"
	ErrCodeCatalogUnavailable = "ERR_205_CATALOG_UNAVAILABLE"

	// 3xx network and the embedding service
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeEmbedService       = "ERR_303_EMBED_SERVICE"

	// 4xx input validation
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidFilter     = "ERR_403_INVALID_FILTER"
	ErrCodeInvalidSort       = "ERR_404_INVALID_SORT"

	// 5xx internal
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed     = "ERR_504_INDEX_FAILED"
	ErrCodeRunInProgress   = "ERR_505_RUN_IN_PROGRESS"
)

var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryData,
	'3': CategoryNetwork,
	'4': CategoryValidation,
	'5': CategoryInternal,
}

// categoryFromCode derives the category from the code's leading digit,
// the byte after the "ERR_" prefix.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	if cat, ok := categoryByDigit[code[4]]; ok {
		return cat
	}
	return CategoryInternal
}

// fatalCodes are conditions where continuing would read or write bad state.
var fatalCodes = map[string]struct{}{
	ErrCodeCorruptIndex:   {},
	ErrCodeConfigInvalid:  {},
	ErrCodeConfigNotFound: {},
}

func severityFromCode(code string) Severity {
	if _, fatal := fatalCodes[code]; fatal {
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode reports whether a fresh attempt can plausibly succeed.
// Only transient network conditions qualify.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeEmbedService:
		return true
	}
	return false
}
