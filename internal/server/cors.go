package server

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS wraps the HTTP surface so browser clients on allowedOrigins can
// call it. A "*" entry allows any origin.
func WithCORS(next http.Handler, allowedOrigins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler(next)
}
