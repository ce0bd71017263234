package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"moviepicker/internal/logging"
)

// RequestLogger puts the chi request id into the request context for
// logging.Ctx and logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := logging.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(ctx).Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
