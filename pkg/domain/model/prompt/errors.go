package prompt

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
)

var (
	ErrPromptNotFound  = goerr.New("prompt not found", goerr.T(apperr.ErrTagPromptNotFound))
	ErrVersionNotFound = goerr.New("prompt version not found", goerr.T(apperr.ErrTagVersionNotFound))
	ErrNoActiveVersion = goerr.New("no active version for prompt", goerr.T(apperr.ErrTagVersionNotFound))
)
