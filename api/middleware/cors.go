package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local dev
}

// CORS returns middleware that allows the configured web app origin
// plus local development.
func CORS(appURL string) func(http.Handler) http.Handler {
	origins := append([]string{}, defaultCORSOrigins...)
	if trimmed := strings.TrimRight(strings.TrimSpace(appURL), "/"); trimmed != "" {
		origins = append(origins, trimmed)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
