package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/partyhop/backend/internal/logging"
)

// TokenAuthenticator resolves a bearer access token to a user id.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// Authenticate resolves the bearer token, if any, and stores the user id in
// the request context. Requests without a token pass through anonymously;
// handlers decide whether a user is required. A token that does not resolve
// is rejected with 401.
func Authenticate(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rejected bearer token", "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid or expired session"})
				return
			}

			ctx := logging.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
