package server

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// authenticate validates the rotating token carried in the Authorization
// header. Any scheme prefix is stripped before lookup.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		candidate := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.tokens.Validate(candidate) {
			http.Error(w, "invalid or rotated token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each completed request through the global zap logger,
// picking the level from the response status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Int("response_bytes", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
		}
		logger := zap.S().Named("http").Desugar()
		msg := "request completed"
		switch {
		case ww.Status() >= 500:
			logger.Error(msg, fields...)
		case ww.Status() >= 400:
			logger.Warn(msg, fields...)
		default:
			logger.Info(msg, fields...)
		}
	})
}
