package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-session-guard/client"
	"github.com/jrsteele09/go-session-guard/guard"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyClient stores the client of the request's login session
	ContextKeyClient ContextKey = "client"
	// ContextKeySession stores the session the route guard found
	ContextKeySession ContextKey = "session"
)

// sessionCookieName is the cookie carrying the login session id
const sessionCookieName = "session_id"

// IsPublicPath reports whether path bypasses the route guard.
func IsPublicPath(path string) bool {
	for _, route := range publicRoutes {
		if prefix, ok := strings.CutSuffix(route, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == route {
			return true
		}
	}
	return false
}

// RequireSession is the route guard. Requests outside the public routes need
// a login session cookie naming a stored session; anything else is sent to
// the sign-in page.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path) {
				next(w, r)
				return
			}

			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
				return
			}

			c := s.clientFor(cookie.Value)
			session, err := c.Session(r.Context())
			if err != nil {
				log.Err(err).Str("path", r.URL.Path).Msg("Route guard could not read the session")
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			if session == nil {
				// Stale cookie: remember where the user was going so the
				// sign-in page can send them back.
				if r.Method == http.MethodGet {
					if err := c.ReturnTo().SaveReturnTo(r.Context(), r.URL.RequestURI()); err != nil {
						log.Err(err).Msg("Failed to save return-to location")
					}
				}
				http.Redirect(w, r, c.Guard().SignInRedirect(), http.StatusSeeOther)
				return
			}

			ctx := guard.WithLocation(r.Context(), r.URL.RequestURI())
			ctx = context.WithValue(ctx, ContextKeyClient, c)
			ctx = context.WithValue(ctx, ContextKeySession, session)
			next(w, r.WithContext(ctx))
		}
	}
}

// ClientFrom returns the client the route guard attached to ctx.
func ClientFrom(ctx context.Context) (*client.Client, bool) {
	c, ok := ctx.Value(ContextKeyClient).(*client.Client)
	return c, ok
}

// SessionFrom returns the session the route guard found for the request.
func SessionFrom(ctx context.Context) (*sessions.Session, bool) {
	session, ok := ctx.Value(ContextKeySession).(*sessions.Session)
	return session, ok
}
