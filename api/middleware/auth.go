package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/r2blaze/r2blaze-backend/api/responses"
	"github.com/r2blaze/r2blaze-backend/pkg/auth"
	"github.com/r2blaze/r2blaze-backend/pkg/config"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
)

// AdminAuth admits requests carrying a Supabase session token with the
// configured admin role and seeds the context with the principal.
func AdminAuth(cfg config.SupabaseConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := auth.ParseAdminToken(cfg, bearerToken(r))
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			case errors.Is(err, auth.ErrNotAdmin):
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "admin role required"))
				return
			case err != nil:
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			if logg != nil {
				ctx = logg.WithActor(ctx, principal.Actor())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
