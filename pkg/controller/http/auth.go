package http

import (
	"net/http"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/komainu/pkg/domain/types/apperr"
	"github.com/m-mizutani/komainu/pkg/service/auth"
)

// bearerAuthMiddleware requires a valid bearer token on API routes.
// The health endpoint stays open for probes.
func bearerAuthMiddleware(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respondError(w, r, goerr.New("missing authorization header",
					goerr.T(apperr.ErrTagUnauthorized)))
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondError(w, r, goerr.New("authorization header is not a bearer token",
					goerr.T(apperr.ErrTagUnauthorized)))
				return
			}

			subject, err := tokens.Verify(token)
			if err != nil {
				respondError(w, r, err)
				return
			}

			ctx := r.Context()
			ctx = ctxlog.With(ctx, ctxlog.From(ctx).With("subject", subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
