package middleware

import (
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// NewAuthMiddleware verifies the handshake token before the websocket
// upgrade. Rejection happens at the HTTP layer, so an unauthenticated client
// never holds a websocket and never receives a single event. The token rides
// in the `token` query parameter (browsers cannot set headers on websocket
// dials), with a `session-token` cookie as fallback.
func NewAuthMiddleware(logger *slog.Logger, jwtSecret string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// couldn't extract metadata from request so something went wrong
			// with previous middlewares
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			tokenString := r.URL.Query().Get("token")
			if tokenString == "" {
				if cookie, err := r.Cookie("session-token"); err == nil {
					tokenString = cookie.Value
				}
			}
			if tokenString == "" {
				logger.Warn("No token attached to handshake", slog.String("ip", reqMeta.IP))
				http.Error(w, "Missing token", http.StatusUnauthorized)
				return
			}

			// Parse and validate the JWT token with HMAC signing.
			token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("Invalid token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok || claims.Subject == "" {
				logger.Warn("Valid token missing 'sub' claim", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = claims.Subject
			next.ServeHTTP(w, r)
		})
	}
}
