package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/duzelt/duzelt-backend/api/responses"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
	"github.com/duzelt/duzelt-backend/pkg/redis"
)

// RateLimit caps per-user request bursts with a Redis fixed window. A
// Redis failure fails open: the quota ledger is the enforcement of
// record, this only absorbs bursts.
func RateLimit(store *redis.Client, scope string, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			userID := UserIDFromContext(ctx)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := store.FixedWindowAllow(ctx, scope+":"+userID, limit, window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "rate limit check failed, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "count", count), "rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit,
					fmt.Sprintf("too many requests, retry after %s", window)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
