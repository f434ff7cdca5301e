package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

var (
	corsAllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	corsAllowHeaders = []string{"Content-Type", "Authorization", TraceHeader}
	corsExposeHeader = []string{TraceHeader, "Retry-After"}
)

// CORS allows every origin, which is what the checkout pages need.
func CORS(next http.Handler) http.Handler {
	return CORSWithOrigins(nil)(next)
}

// CORSWithOrigins allows the listed origins. An empty list or a "*" entry
// allows any origin. Preflight requests end here with 204.
func CORSWithOrigins(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}

	return cors.New(cors.Options{
		AllowedOrigins:       allowed,
		AllowedMethods:       corsAllowMethods,
		AllowedHeaders:       corsAllowHeaders,
		ExposedHeaders:       corsExposeHeader,
		OptionsSuccessStatus: http.StatusNoContent,
	}).Handler
}
