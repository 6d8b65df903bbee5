package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/caia/concierge/internal/services/session"
	"github.com/caia/concierge/pkg/httpext"
)

type contextKey string

const (
	sessionClaimsKey contextKey = "sessionClaims"
)

// ExtractToken reads a bearer token from the Authorization header, or from
// the token query parameter for websocket clients that cannot set headers.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	return r.URL.Query().Get("token")
}

// RequireSession admits requests whose token was issued for the session named
// by the {id} route variable.
func RequireSession(tokens *session.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				httpext.JsonError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.Validate(r.Context(), tokenString)
			if err != nil {
				log.Warn().
					Err(err).
					Str("path", r.URL.Path).
					Msg("Session token rejected")
				httpext.JsonError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			if id := mux.Vars(r)["id"]; id != "" && id != claims.SessionID {
				log.Warn().
					Str("token_session", claims.SessionID).
					Str("path_session", id).
					Msg("Access denied - token issued for another session")
				httpext.JsonError(w, "Token not valid for this session", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), sessionClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionClaims retrieves the validated claims from the request context
func GetSessionClaims(r *http.Request) *session.SessionClaims {
	if claims, ok := r.Context().Value(sessionClaimsKey).(*session.SessionClaims); ok {
		return claims
	}
	return nil
}
