package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go-wine-shop/internal/model"
)

const requestIDHeader = "X-Request-ID"

const requestLogContextKey contextKey = "request_log"

// requestLog is shared by every middleware below Logging. Authenticate fills
// in the caller once the token is resolved so the access line can carry it.
// Authenticate may run on the timeout handler's goroutine.
type requestLog struct {
	id          string
	principalID atomic.Pointer[string]
}

// Logging writes one access line per request through slog.Default.
func Logging(next http.Handler) http.Handler {
	return NewLogging(nil)(next)
}

// NewLogging returns the access log middleware bound to logger. A nil logger
// resolves slog.Default at request time.
func NewLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := &requestLog{id: r.Header.Get(requestIDHeader)}
			if entry.id == "" {
				entry.id = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, entry.id)
			r = r.WithContext(context.WithValue(r.Context(), requestLogContextKey, entry))

			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			log := logger
			if log == nil {
				log = slog.Default()
			}
			log.Log(r.Context(), levelFor(recorder.status), "request", accessAttrs(r, entry, recorder, time.Since(started))...)
		})
	}
}

func accessAttrs(r *http.Request, entry *requestLog, rec *statusRecorder, elapsed time.Duration) []any {
	attrs := []any{
		"request_id", entry.id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", elapsed.Milliseconds(),
		"client_ip", extractClientIP(r),
	}
	if id := entry.principalID.Load(); id != nil {
		attrs = append(attrs, "user_id", *id)
	}
	if rec.status < http.StatusBadRequest {
		return attrs
	}

	attrs = append(attrs, "user_agent", r.UserAgent())
	if r.URL.RawQuery != "" {
		attrs = append(attrs, "query", r.URL.RawQuery)
	}

	var body model.APIResponse
	if rec.body.Len() > 0 && json.Unmarshal(rec.body.Bytes(), &body) == nil && body.Error != nil {
		attrs = append(attrs, "error_code", body.Error.Code, "error_message", body.Error.Message)
		if body.Error.Details != "" {
			attrs = append(attrs, "error_details", body.Error.Details)
		}
	}
	return attrs
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// statusRecorder keeps the error envelope so the access line can name the
// failure code. Successful bodies are not buffered.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status >= http.StatusBadRequest {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func RequestIDFromContext(ctx context.Context) string {
	if entry, ok := ctx.Value(requestLogContextKey).(*requestLog); ok {
		return entry.id
	}
	return ""
}

// notePrincipal records the authenticated caller on the request's access line.
func notePrincipal(ctx context.Context, principal *model.Principal) {
	if entry, ok := ctx.Value(requestLogContextKey).(*requestLog); ok && principal != nil {
		id := principal.ID
		entry.principalID.Store(&id)
	}
}
