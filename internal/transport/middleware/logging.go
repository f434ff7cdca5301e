package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/kit-checkout/internal"
	"github.com/frahmantamala/kit-checkout/pkg/logger"
	"github.com/go-chi/chi/middleware"
)

type fieldClass int

const (
	fieldPlain fieldClass = iota
	fieldSecret
	fieldEmail
	fieldBlob
)

// secretMarkers match any key or header containing them.
var secretMarkers = []string{"token", "authorization", "secret", "api_key", "credential", "idempotency"}

var emailFields = map[string]bool{
	"email":          true,
	"payer_email":    true,
	"customer_email": true,
}

// blobFields are logged as their size only.
var blobFields = map[string]bool{
	"qr_code":        true,
	"qr_code_base64": true,
}

// maxLoggedBody caps how much of a non JSON body is logged.
const maxLoggedBody = 512

func classify(name string) fieldClass {
	key := strings.ToLower(name)
	switch {
	case emailFields[key]:
		return fieldEmail
	case blobFields[key]:
		return fieldBlob
	}
	for _, marker := range secretMarkers {
		if strings.Contains(key, marker) {
			return fieldSecret
		}
	}
	return fieldPlain
}

// LoggingMiddleware logs each request and response with payer data masked and credentials removed.
func LoggingMiddleware(lg *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := internal.RequestIDFromContext(r.Context())
			if reqID == "" {
				reqID = middleware.GetReqID(r.Context())
			}
			reqLog := lg.With("request_id", reqID)

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			reqLog.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", clientIP(r),
				"user_agent", r.UserAgent(),
				"headers", redactHeaders(r.Header),
				"body", redactBody(body),
			)

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			reqLog.Log(context.Background(), level, "response",
				"status_code", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.body.Len(),
				"body", redactBody(rec.body.Bytes()),
			)
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if classify(name) == fieldSecret {
			out[name] = "[FILTERED]"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		text := string(body)
		lower := strings.ToLower(text)
		for _, marker := range secretMarkers {
			if strings.Contains(lower, marker) {
				return "[FILTERED]"
			}
		}
		if len(text) > maxLoggedBody {
			return text[:maxLoggedBody] + "..."
		}
		return text
	}

	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return "[UNLOGGABLE]"
	}
	return string(out)
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, field := range val {
			out[key] = redactField(key, field)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return val
	}
}

func redactField(key string, value any) any {
	str, isString := value.(string)

	switch classify(key) {
	case fieldSecret:
		return "[FILTERED]"
	case fieldEmail:
		if isString {
			return logger.MaskEmail(str)
		}
		return "[FILTERED]"
	case fieldBlob:
		if isString {
			return fmt.Sprintf("[%d bytes]", len(str))
		}
		return value
	default:
		return redactValue(value)
	}
}
