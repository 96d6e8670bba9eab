package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request did not complete before its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeOverloaded indicates the work queue is at capacity.
	ErrCodeOverloaded ErrorCode = "OVERLOADED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Scheduling and processing errors
const (
	// ErrCodeSchedulingFailed indicates the request could not enter the work queue.
	ErrCodeSchedulingFailed ErrorCode = "SCHEDULING_FAILED"
	// ErrCodeHandlerFailed indicates the inference handler failed while processing.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"
	// ErrCodeNoResponse indicates the reply channel closed without delivering anything.
	ErrCodeNoResponse ErrorCode = "NO_RESPONSE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeOverloaded:         true,
	ErrCodeSchedulingFailed:   true,
	ErrCodeExternalService:    true,
	ErrCodeNoResponse:         false,
	ErrCodeHandlerFailed:      false,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

// Category groups error codes into the gateway's four client-visible failure
// categories plus "internal" for everything else.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryScheduling Category = "scheduling"
	CategoryHandler    Category = "handler"
	CategoryNoResponse Category = "no_response"
	CategoryTimeout    Category = "timeout"
	CategoryInternal   Category = "internal"
)

// CategoryOf returns the failure category an error code belongs to.
func CategoryOf(code ErrorCode) Category {
	switch code {
	case ErrCodeInvalidInput, ErrCodeMissingField, ErrCodeInvalidFormat:
		return CategoryValidation
	case ErrCodeSchedulingFailed, ErrCodeOverloaded, ErrCodeServiceUnavailable:
		return CategoryScheduling
	case ErrCodeHandlerFailed, ErrCodeExternalService:
		return CategoryHandler
	case ErrCodeNoResponse:
		return CategoryNoResponse
	case ErrCodeTimeout:
		return CategoryTimeout
	default:
		return CategoryInternal
	}
}
