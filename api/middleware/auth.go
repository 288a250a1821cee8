package middleware

import (
	"net/http"
	"strings"

	"github.com/duzelt/duzelt-backend/api/responses"
	pkgAuth "github.com/duzelt/duzelt-backend/pkg/auth"
	"github.com/duzelt/duzelt-backend/pkg/config"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

// Auth validates the identity provider's bearer token and seeds the
// request context with the user id and email.
func Auth(cfg config.IdentityConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.VerifyIdentityToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID())
			if claims.Email != "" {
				ctx = WithEmail(ctx, claims.Email)
			}

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
