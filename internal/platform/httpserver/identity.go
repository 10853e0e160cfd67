package httpserver

import (
	"context"
	"net/http"
	"strings"

	"fundgate/contexts/donor-governance/withdrawal-escrow/application/commands"
)

type actorKey struct{}

// requireUser resolves the caller from the X-User-Id and X-User-Role headers
// set by the upstream gateway.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if userID == "" {
			writeEscrowError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
			return
		}
		actor := commands.Actor{
			UserID: userID,
			Role:   strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Role"))),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).IsAdmin() {
			writeEscrowError(w, http.StatusForbidden, "forbidden", "admin role is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(ctx context.Context) commands.Actor {
	actor, _ := ctx.Value(actorKey{}).(commands.Actor)
	return actor
}
