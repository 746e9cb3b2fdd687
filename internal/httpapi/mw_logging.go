package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AccessLog logs one line per request with its status and size. The start
// line is logged at debug only.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With().
				Str("rid", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			reqLog.Debug().Msg("request started")

			next.ServeHTTP(ww, r)

			reqLog.Info().
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("dur", time.Since(start)).
				Msg("request completed")
		})
	}
}
