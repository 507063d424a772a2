package apperr

import (
	"net/http"

	"github.com/m-mizutani/goerr/v2"
)

// HTTPStatusFromError returns the appropriate HTTP status code based on error tags
func HTTPStatusFromError(err error) int {
	switch {
	// 404 Not Found
	case goerr.HasTag(err, ErrTagNotFound),
		goerr.HasTag(err, ErrTagPromptNotFound),
		goerr.HasTag(err, ErrTagVersionNotFound):
		return http.StatusNotFound

	// 400 Bad Request
	case goerr.HasTag(err, ErrTagValidation),
		goerr.HasTag(err, ErrTagInvalidInput),
		goerr.HasTag(err, ErrTagInvalidFormat),
		goerr.HasTag(err, ErrTagRequiredField),
		goerr.HasTag(err, ErrTagSchema):
		return http.StatusBadRequest

	// 401 Unauthorized
	case goerr.HasTag(err, ErrTagUnauthorized),
		goerr.HasTag(err, ErrTagExpiredToken):
		return http.StatusUnauthorized

	// 403 Forbidden
	case goerr.HasTag(err, ErrTagForbidden):
		return http.StatusForbidden

	// 408 Request Timeout
	case goerr.HasTag(err, ErrTagTimeout):
		return http.StatusRequestTimeout

	// 429 Too Many Requests
	case goerr.HasTag(err, ErrTagRateLimit):
		return http.StatusTooManyRequests

	// 502 Bad Gateway
	case goerr.HasTag(err, ErrTagExternal),
		goerr.HasTag(err, ErrTagSlackAPI),
		goerr.HasTag(err, ErrTagLLMError),
		goerr.HasTag(err, ErrTagFirestore),
		goerr.HasTag(err, ErrTagStorage):
		return http.StatusBadGateway

	// 503 Service Unavailable
	case goerr.HasTag(err, ErrTagCircuitOpen),
		goerr.HasTag(err, ErrTagFallbackExhausted):
		return http.StatusServiceUnavailable

	// 500 Internal Server Error (default)
	default:
		return http.StatusInternalServerError
	}
}

// StatusCodeFromError extracts the provider HTTP status attached via
// StatusCodeKey, if any.
func StatusCodeFromError(err error) (int, bool) {
	goErr := goerr.Unwrap(err)
	if goErr == nil {
		return 0, false
	}

	if v, ok := goErr.Values()["status_code"]; ok {
		if code, ok := v.(int); ok {
			return code, true
		}
	}
	return 0, false
}
