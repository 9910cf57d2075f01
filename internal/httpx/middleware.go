package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/logging"
	"github.com/ariefcatur/go-jewelry-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// requestLogger attaches a request-scoped logger to the context and logs
// one line per request once it is served.
func requestLogger(base *zap.Logger, m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-Id", reqID)
			}
			l := base.With(
				zap.String("req_id", reqID),
				zap.String("method", r.Method),
				zap.String("remote", r.RemoteAddr),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), l)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			took := time.Since(start)
			m.Observe(r.Method, route, status, took)

			fields := []zap.Field{
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("resp_bytes", ww.BytesWritten()),
				zap.Duration("took", took),
			}
			if status >= http.StatusInternalServerError {
				l.Error("http_request", fields...)
				return
			}
			l.Info("http_request", fields...)
		})
	}
}
