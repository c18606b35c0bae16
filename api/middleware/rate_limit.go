package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/danielvasquez-dev/marketplace-billing/api/responses"
	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
	pkgredis "github.com/danielvasquez-dev/marketplace-billing/pkg/redis"
)

// ChargeRateLimit caps charge requests per (community, person) within a
// rolling window backed by a Redis counter. A nil store or non-positive
// limit/window disables the guard.
func ChargeRateLimit(store pkgredis.RateLimitStore, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			communityID := chi.URLParam(r, "communityID")
			personID := chi.URLParam(r, "personID")
			key := store.CounterKey(fmt.Sprintf("charge:%s:%s", communityID, personID))

			count, err := store.Incr(ctx, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			// The window starts at the first hit; later hits reuse the TTL.
			if count == 1 {
				if err := store.Expire(ctx, key, window); err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
			}

			if count > int64(limit) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many charge requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
