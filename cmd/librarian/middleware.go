package main

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/librarian/internal/logger"
)

const panicBody = `{"code":"internal_error","message":"internal error"}` + "\n"

// jsonRecoverer turns a handler panic into a JSON 500. http.ErrAbortHandler is re-raised
// so net/http can abort the connection.
func jsonRecoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rvr)
				}
				logpkg.FromContextOr(r.Context(), logger).Error("Handler panicked",
					zap.Any("panic", rvr),
					zap.String("path", r.URL.Path),
					zap.Stack("stacktrace"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(panicBody))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// usageHeaders maps the token headers set by handlers onto log fields.
var usageHeaders = map[string]string{
	"X-Embedding-Tokens":  "embedding_tokens",
	"X-Prompt-Tokens":     "prompt_tokens",
	"X-Completion-Tokens": "completion_tokens",
}

// wideEventMiddleware writes one "http_request" line per request and echoes X-Request-ID.
// Handlers get a request-scoped logger through the context.
func wideEventMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chiMiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}
			ctx, reqLog := logpkg.With(r.Context(), logger, zap.String("request_id", reqID))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLog.Info("http_request", requestFields(r, ww, time.Since(start))...)
		})
	}
}

func requestFields(r *http.Request, ww chiMiddleware.WrapResponseWriter, latency time.Duration) []zap.Field {
	fields := make([]zap.Field, 0, 8+len(usageHeaders))
	fields = append(fields,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", ww.Status()),
		zap.Duration("latency", latency),
		zap.String("ip", r.RemoteAddr),
		zap.Int64("content_length", r.ContentLength),
		zap.String("user_agent", r.UserAgent()),
		zap.Int("response_bytes", ww.BytesWritten()),
	)
	for header, field := range usageHeaders {
		if v := ww.Header().Get(header); v != "" {
			fields = append(fields, zap.String(field, v))
		}
	}
	return fields
}
