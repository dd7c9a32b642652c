// Package middleware provides HTTP middlewares for role checks and request logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/CertTrack/internal/models"
)

type ctxKey string

const roleKey ctxKey = "role"

// RoleHeader carries the caller's role. It is trusted as sent.
const RoleHeader = "X-Role"

// RequireAdmin lets the request through only when the X-Role header equals
// ADMIN, ignoring case. Other callers get 403 with a JSON message.
//
// On success the role is stored in the request context.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := strings.TrimSpace(r.Header.Get(RoleHeader))
		if !strings.EqualFold(role, string(models.RoleAdmin)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "admin role required"})
			return
		}
		ctx := context.WithValue(r.Context(), roleKey, models.RoleAdmin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRoleFromContext returns the role stored by RequireAdmin, or an empty
// role if none.
func GetRoleFromContext(ctx context.Context) models.Role {
	if role, ok := ctx.Value(roleKey).(models.Role); ok {
		return role
	}
	return ""
}
