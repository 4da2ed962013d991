package dto

import "net/http"

// Wire-level error codes, ERR_<CATEGORY>[_<DETAIL>]. Handlers emit these;
// domain errors carry their own codes and are translated via
// NormalizeErrorCode before they reach a response body.

const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation failures. ErrCodeValidation is the umbrella code used when the
// failing tag does not map to a more specific one.
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
	ErrCodeValidationLength   = "ERR_VALIDATION_LENGTH"
)

// Authentication and authorization. ErrCodeWebhookRejected covers webhook
// deliveries whose HMAC signature did not verify.
const (
	ErrCodeUnauthorized    = "ERR_UNAUTHORIZED"
	ErrCodeForbidden       = "ERR_FORBIDDEN"
	ErrCodeWebhookRejected = "ERR_WEBHOOK_REJECTED"
)

// Resource lookups and conflicts.
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rules. ErrCodeNotConfigured means the tenant has no credentials
// for the requested platform.
const (
	ErrCodeInvalidState  = "ERR_INVALID_STATE"
	ErrCodeBusinessRule  = "ERR_BUSINESS_RULE"
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"
)

// Malformed input.
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting.
const (
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
)

// Delivery platform failures, surfaced when an outbound call to a platform
// API fails or times out.
const (
	ErrCodeUpstream        = "ERR_UPSTREAM"
	ErrCodeUpstreamTimeout = "ERR_UPSTREAM_TIMEOUT"
)

// ErrorCodeHTTPStatus maps every wire code to its HTTP status.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,
	ErrCodeValidationLength:   http.StatusBadRequest,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeInvalidJSON:        http.StatusBadRequest,

	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeWebhookRejected: http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:  http.StatusUnprocessableEntity,
	ErrCodeNotConfigured: http.StatusUnprocessableEntity,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,

	ErrCodeUpstream:        http.StatusBadGateway,
	ErrCodeUpstreamTimeout: http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the status for a wire code, defaulting to 500 for
// codes it does not know.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping translates domain error codes, which have no ERR_
// prefix, to wire codes.
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"NOT_CONFIGURED":       ErrCodeNotConfigured,
	"WEBHOOK_REJECTED":     ErrCodeWebhookRejected,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode maps a domain code to its wire code. Codes it does not
// recognize, already-normalized wire codes included, pass through untouched.
func NormalizeErrorCode(code string) string {
	if wire, ok := LegacyErrorCodeMapping[code]; ok {
		return wire
	}
	return code
}
