package apperr

import "github.com/m-mizutani/goerr/v2"

// Prompt registry related errors
var (
	ErrPromptNotFound = goerr.New("prompt not found",
		goerr.T(ErrTagPromptNotFound)).ID("ERR_PROMPT_NOT_FOUND")

	ErrVersionNotFound = goerr.New("prompt version not found",
		goerr.T(ErrTagVersionNotFound)).ID("ERR_VERSION_NOT_FOUND")

	ErrInvalidPromptID = goerr.New("invalid prompt ID format",
		goerr.T(ErrTagValidation)).ID("ERR_INVALID_PROMPT_ID")
)

// Completion call related errors
var (
	ErrLLMNotConfigured = goerr.New("LLM not configured",
		goerr.T(ErrTagInternal)).ID("ERR_LLM_NOT_CONFIGURED")

	ErrLLMAPIFailed = goerr.New("LLM API call failed",
		goerr.T(ErrTagLLMError)).ID("ERR_LLM_API_FAILED")

	ErrCircuitOpen = goerr.New("service unavailable, circuit breaker is open",
		goerr.T(ErrTagCircuitOpen)).ID("ERR_CIRCUIT_OPEN")
)

// Degradation related errors
var (
	ErrFallbackExhausted = goerr.New("all fallback tiers failed or unconfigured",
		goerr.T(ErrTagFallbackExhausted)).ID("ERR_FALLBACK_EXHAUSTED")

	ErrCacheMiss = goerr.New("no cached result for prompt and input",
		goerr.T(ErrTagNotFound)).ID("ERR_CACHE_MISS")
)

// Persistence related errors
var (
	ErrFirestoreOperationFailed = goerr.New("Firestore operation failed",
		goerr.T(ErrTagFirestore)).ID("ERR_FIRESTORE_OP_FAILED")

	ErrStoreNotPersisted = goerr.New("registry store flush failed",
		goerr.T(ErrTagStorage)).ID("ERR_STORE_NOT_PERSISTED")
)
