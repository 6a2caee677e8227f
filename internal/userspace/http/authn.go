package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/userspace/internal/userspace/domain"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/slogx"
)

type callerKey struct{}

// SessionResolver turns a bearer token into the current public account.
type SessionResolver[X any] interface {
	ResolveSession(ctx context.Context, token string) (domain.PublicAccount[X], error)
}

// AuthnMiddleware requires a valid identity token whose account still exists.
// The account is stored in the request context for CallerFromContext, and its
// id as the rate-limit subject.
func AuthnMiddleware[X any](sessions SessionResolver[X]) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := httpx.BearerToken(r)
			if !ok {
				writeError(w, r, domain.ErrSessionInvalid)
				return
			}

			caller, err := sessions.ResolveSession(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			ctx = httpx.WithSubject(ctx, caller.ID)
			ctx = slogx.With(ctx, "account_id", caller.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the account set by AuthnMiddleware.
func CallerFromContext[X any](ctx context.Context) (domain.PublicAccount[X], bool) {
	caller, ok := ctx.Value(callerKey{}).(domain.PublicAccount[X])
	return caller, ok
}
