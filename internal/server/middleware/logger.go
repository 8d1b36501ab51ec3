package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs each inbound handshake, and once the request has run
// its course logs the identity the auth middleware resolved for it. For a
// websocket request that second line lands when the connection ends.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			var ip string
			if ok {
				ip = reqMeta.IP
			}

			logger.Info("Handshake received",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
			)
			next.ServeHTTP(w, r)

			if ok && reqMeta.UserID != "" {
				logger.Debug("Request finished",
					slog.String("uri", r.RequestURI),
					slog.String("ip", ip),
					slog.String("userID", reqMeta.UserID),
				)
			}
		})
	}
}
