package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/r2blaze/r2blaze-backend/pkg/config"
)

// CORS applies the storefront origin policy. Credentials are only allowed
// when origins are listed explicitly.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.Origins()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: !cfg.AllowsAnyOrigin(),
		MaxAge:           300,
	}).Handler
}
