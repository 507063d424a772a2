package apperr

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

// Domain entity related keys
var (
	PromptIDKey = goerr.NewTypedKey[types.PromptID]("prompt_id")
	VersionKey  = goerr.NewTypedKey[string]("version")
	CallIDKey   = goerr.NewTypedKey[types.CallID]("call_id")
)

// Processing related keys
var (
	AttemptKey    = goerr.NewTypedKey[int]("attempt")
	RetryAfterKey = goerr.NewTypedKey[string]("retry_after")
	TierKey       = goerr.NewTypedKey[string]("tier")
	ReasonKey     = goerr.NewTypedKey[string]("reason")
	OperationKey  = goerr.NewTypedKey[string]("operation")
)

// Completion call related keys
var (
	StatusCodeKey  = goerr.NewTypedKey[int]("status_code")
	LLMProviderKey = goerr.NewTypedKey[string]("llm_provider")
	LLMModelKey    = goerr.NewTypedKey[string]("llm_model")
	TokenCountKey  = goerr.NewTypedKey[int]("token_count")
)

// Firestore related keys
var (
	CollectionKey = goerr.NewTypedKey[string]("collection")
	DocumentIDKey = goerr.NewTypedKey[string]("document_id")
	ProjectIDKey  = goerr.NewTypedKey[string]("project_id")
)
