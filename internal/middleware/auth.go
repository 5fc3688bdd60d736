package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/spotx/internal/auth"
	"github.com/dukerupert/spotx/internal/model"
)

// UserProvisioner returns the user for a verified identity, creating it on
// first sight.
type UserProvisioner interface {
	Ensure(id, email string) (*model.User, error)
}

// RequireAuth validates the bearer token and populates AuthContext.
// Browsers opening a WebSocket cannot set headers, so a "token" query
// parameter is accepted as well.
func RequireAuth(tokens *auth.Tokens, users UserProvisioner, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				unauthorized(w)
				return
			}

			user, err := users.Ensure(claims.Subject, claims.Email)
			if err != nil {
				logger.Error("provision user", "user_id", claims.Subject, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if user == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID: user.ID,
				Email:  user.Email,
				Role:   user.Role,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireRole rejects callers without one of roles. Admins always pass.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasRole(r.Context(), roles...) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)(next)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="spotx"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
