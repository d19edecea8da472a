package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const userContextKey contextKey = "portal_user"

// SessionCookie carries the session id issued at sign-in.
const SessionCookie = "portal_desk_session"

// UserFromContext returns the user the guard let through, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey).(*User)
	return u
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// Guard protects routes by sign-in state and role. A request is signed in
// only when it presents the session cookie issued by the last sign-in.
type Guard struct {
	session      *Session
	loginPath    string
	secureCookie bool
	homes        map[Role]string
}

func NewGuard(session *Session, loginPath string, secureCookie bool) *Guard {
	return &Guard{
		session:      session,
		loginPath:    loginPath,
		secureCookie: secureCookie,
		homes: map[Role]string{
			RoleAdmin:  "/admin",
			RoleClient: "/portal",
		},
	}
}

// Home is where a user of role r lands.
func (g *Guard) Home(r Role) string {
	if h, ok := g.homes[r]; ok {
		return h
	}
	return g.loginPath
}

// Require lets the request through only for a signed-in user holding one of roles.
// Browsers get redirected, API callers get 401/403.
func (g *Guard) Require(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := g.User(r)
			if u == nil {
				if wantsHTML(r) {
					http.Redirect(w, r, g.loginPath, http.StatusFound)
					return
				}
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if len(roles) > 0 && !hasRole(u.Role, roles) {
				if wantsHTML(r) {
					http.Redirect(w, r, g.Home(u.Role), http.StatusFound)
					return
				}
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// User is the signed-in user behind r's session cookie, or nil.
func (g *Guard) User(r *http.Request) *User {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	return g.session.Authenticate(c.Value)
}

func (g *Guard) setCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (g *Guard) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func hasRole(r Role, roles []Role) bool {
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
