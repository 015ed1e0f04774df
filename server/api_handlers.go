package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jrsteele09/go-session-guard/client"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

type sessionResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type identityResponse struct {
	RestaurantID string `json:"restaurant_id"`
}

type sessionExpiredResponse struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

// SessionHandler returns the current session after refreshing it when it is
// close to expiry (GET /api/session)
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClientFrom(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "no session", http.StatusUnauthorized)
			return
		}
		session, err := c.Guard().EnsureFreshSession(r.Context())
		if err != nil {
			writeCallError(w, c, err)
			return
		}
		if session == nil {
			writeCallError(w, c, noSession("session"))
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			UserID:    session.UserID,
			Email:     session.Email,
			ExpiresAt: session.ExpiresAt,
		})
	}
}

// IdentityHandler resolves the restaurant the user works for (GET /api/identity)
func (s *Server) IdentityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClientFrom(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "no session", http.StatusUnauthorized)
			return
		}
		id, err := c.ResolveIdentity(r.Context())
		if err != nil {
			writeCallError(w, c, err)
			return
		}
		if id == nil {
			if session, _ := c.Session(r.Context()); session == nil {
				writeCallError(w, c, noSession("identity"))
				return
			}
			writeJSONError(w, "identity_not_found", "no restaurant is linked to this account", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, identityResponse{RestaurantID: *id})
	}
}

// IdentityClearHandler drops the cached identity, e.g. after switching
// restaurant (POST /api/identity/clear)
func (s *Server) IdentityClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClientFrom(r.Context())
		if !ok {
			writeJSONError(w, "unauthorized", "no session", http.StatusUnauthorized)
			return
		}
		c.ClearIdentityCache(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthzHandler runs the registered dependency checks (GET /healthz)
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := http.StatusOK
		results := map[string]string{}
		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				log.Err(err).Str("check", name).Msg("Health check failed")
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}

// writeCallError maps a failed remote call onto the response: an expired
// session asks the browser to sign in again, transient failures may be
// retried, everything else is final.
func writeCallError(w http.ResponseWriter, c *client.Client, err error) {
	switch apperrors.ClassOf(err) {
	case apperrors.SessionExpired:
		writeJSON(w, http.StatusUnauthorized, sessionExpiredResponse{
			Error:    "session_expired",
			Redirect: c.Guard().SignInRedirect(),
		})
	case apperrors.Transient:
		log.Warn().Err(err).Msg("Remote call failed, retry advised")
		w.Header().Set("Retry-After", strconv.Itoa(1))
		writeJSONError(w, "unavailable", "temporarily unavailable, please retry", http.StatusServiceUnavailable)
	default:
		log.Err(err).Msg("Remote call failed")
		writeJSONError(w, "internal_error", "the request could not be completed", http.StatusInternalServerError)
	}
}

func noSession(op string) error {
	return &apperrors.ClassifiedError{Class: apperrors.SessionExpired, Op: op, Err: apperrors.ErrNoSession}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
