package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// SessionCookieName is the cookie that carries a remembered session.
const SessionCookieName = "teamapp_session"

type contextKey string

const principalKey contextKey = "auth_principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller set by RequireAuth.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// UsernameFromContext returns the caller's username, or "" when anonymous.
func UsernameFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Username
}

// Credentials extracts the bearer key and session cookie from a request.
func Credentials(r *http.Request) (bearer, session string) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		bearer = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		session = c.Value
	}
	return bearer, session
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RequireAuth rejects requests without a valid key or session and stores
// the Principal in the request context.
func RequireAuth(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, session := Credentials(r)
			p, err := svc.Authenticate(bearer, session)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "administrator permissions required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
