package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-guard/server/authflowrepo"
	"github.com/rs/zerolog/log"
)

// OAuthCallbackHandler completes the sign-in flow (GET|POST /callback)
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")

		// Check for authorization errors
		if errorParam != "" {
			log.Warn().Str("error", errorParam).Str("description", r.FormValue("error_description")).Msg("Authorization failed")
			redirectSuccess(w, r, RouteLogin+"?error="+url.QueryEscape("Sign-in was not completed"))
			return
		}

		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		authState, err := s.authState.Take(r.Context(), state)
		if errors.Is(err, authflowrepo.ErrStateNotFound) {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Err(err).Msg("Failed to read auth flow state")
			http.Error(w, "Sign-in is unavailable, please try again", http.StatusServiceUnavailable)
			return
		}

		session, err := s.provider.Exchange(r.Context(), code, authState.CodeVerifier, authState.Nonce)
		if err != nil {
			log.Err(err).Msg("Token exchange failed")
			redirectSuccess(w, r, RouteLogin+"?error="+url.QueryEscape("Sign-in failed, please try again"))
			return
		}

		// A fresh login session id on every sign-in
		sessionID := uuid.NewString()
		if err := s.clientFor(sessionID).StartSession(r.Context(), session); err != nil {
			log.Err(err).Msg("Failed to store session")
			http.Error(w, "Failed to create session", http.StatusServiceUnavailable)
			return
		}
		if old := loginSessionID(r); old != "" {
			s.forgetClient(old)
		}

		s.SetLoginSessionCookie(w, sessionID, r, int(s.config.GetMaxSessionAge().Seconds()))
		redirectSuccess(w, r, safeReturnURL(authState.ReturnURL))
	}
}
