package apperr

import "github.com/m-mizutani/goerr/v2"

// NotFound errors (HTTP 404)
var (
	ErrTagNotFound        = goerr.NewTag("not_found")
	ErrTagPromptNotFound  = goerr.NewTag("prompt_not_found")
	ErrTagVersionNotFound = goerr.NewTag("version_not_found")
)

// Validation errors (HTTP 400)
var (
	ErrTagValidation    = goerr.NewTag("validation")
	ErrTagInvalidInput  = goerr.NewTag("invalid_input")
	ErrTagInvalidFormat = goerr.NewTag("invalid_format")
	ErrTagRequiredField = goerr.NewTag("required_field")
	ErrTagSchema        = goerr.NewTag("schema_violation")
)

// Permission errors (HTTP 401/403)
var (
	ErrTagUnauthorized = goerr.NewTag("unauthorized")
	ErrTagForbidden    = goerr.NewTag("forbidden")
	ErrTagExpiredToken = goerr.NewTag("expired_token")
)

// Completion call errors. Retryable tags mark transient failures that the
// retry strategy may attempt again; terminal call errors carry none of them.
var (
	ErrTagRetryable   = goerr.NewTag("retryable")
	ErrTagRateLimit   = goerr.NewTag("rate_limit")
	ErrTagTimeout     = goerr.NewTag("timeout")
	ErrTagLLMError    = goerr.NewTag("llm_error")
	ErrTagTerminal    = goerr.NewTag("terminal")
	ErrTagCircuitOpen = goerr.NewTag("circuit_open")
)

// Degradation errors (HTTP 503)
var (
	ErrTagFallbackExhausted = goerr.NewTag("fallback_exhausted")
)

// External service errors (HTTP 502/503)
var (
	ErrTagExternal  = goerr.NewTag("external")
	ErrTagSlackAPI  = goerr.NewTag("slack_api")
	ErrTagFirestore = goerr.NewTag("firestore")
	ErrTagStorage   = goerr.NewTag("storage")
)

// System errors (HTTP 500)
var (
	ErrTagInternal = goerr.NewTag("internal")
)
