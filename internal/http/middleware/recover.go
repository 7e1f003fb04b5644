package middleware

import (
	"log/slog"
	"net/http"

	"github.com/pribylovaa/mflix-service/internal/pkg/log"
)

// Recover перехватывает panic и отвечает 500; детали паники не уходят клиенту.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic",
						slog.String("path", r.URL.Path),
						slog.Any("reason", rec),
					)
					writeInternal(w, r)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
