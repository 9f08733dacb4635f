package middleware

import (
	"context"
	"net/http"
	"strings"

	tenantauth "github.com/crmforge/tenantauth"
)

type validationContextKey struct{}

// ValidationFromContext returns the claims attached by [Guard] for the
// current request.
func ValidationFromContext(ctx context.Context) (*tenantauth.ValidationResult, bool) {
	res, ok := ctx.Value(validationContextKey{}).(*tenantauth.ValidationResult)
	return res, ok
}

// Guard wraps a handler with bearer-token validation. Requests without a
// valid, unrevoked access token get a 401; validated claims are attached to
// the request context for downstream handlers.
func Guard(engine *tenantauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), validationContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant builds on [Guard]'s context: it rejects requests whose
// validated token belongs to a different tenant than the one the route
// serves.
func RequireTenant(tenantID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := ValidationFromContext(r.Context())
			if !ok || res.TenantID != tenantID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
