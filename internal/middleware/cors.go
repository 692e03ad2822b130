package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the browser form to call the API from the given origins. An
// empty list allows any origin.
func CORS(trustedOrigins []string) func(http.Handler) http.Handler {
	origins := trustedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
