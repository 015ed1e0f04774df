package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-guard/server/authflowrepo"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName        string
	SignInURL      string
	SessionExpired bool
	Error          string
}

// LoginPageUIHandler displays the login page (GET /login). The post-login
// target saved for the session is read here once and handed to the sign-in
// flow.
func (s *Server) LoginPageUIHandler() http.HandlerFunc {
	loginTmpl, err := ParseTemplate("login.html")
	if err != nil {
		panic("Failed to parse login template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		signInURL := RouteAuthLogin
		if sessionID := loginSessionID(r); sessionID != "" {
			c := s.clientFor(sessionID)
			if session, err := c.Session(r.Context()); err == nil && session != nil {
				redirectSuccess(w, r, RouteDashboard)
				return
			}
			target, err := c.ReturnTo().TakeReturnTo(r.Context())
			if err != nil {
				log.Err(err).Msg("Failed to read return-to location")
			}
			if target != "" {
				signInURL += "?return_to=" + url.QueryEscape(target)
			}
		}

		data := LoginPageData{
			AppName:        s.config.GetAppName(),
			SignInURL:      signInURL,
			SessionExpired: r.URL.Query().Get("session_expired") == "true",
			Error:          r.URL.Query().Get("error"),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := loginTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// LoginStartHandler starts an authorization code flow with PKCE (GET /auth/login)
func (s *Server) LoginStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := uuid.NewString()
		authState := authflowrepo.AuthFlowState{
			CodeVerifier: oauth2.GenerateVerifier(),
			Nonce:        uuid.NewString(),
			ReturnURL:    safeReturnURL(r.URL.Query().Get("return_to")),
			CreatedAt:    time.Now(),
		}
		if err := s.authState.Put(r.Context(), state, authState); err != nil {
			log.Err(err).Msg("Failed to store auth flow state")
			http.Error(w, "Sign-in is unavailable, please try again", http.StatusServiceUnavailable)
			return
		}
		http.Redirect(w, r, s.provider.AuthCodeURL(state, authState.Nonce, authState.CodeVerifier), http.StatusFound)
	}
}

// LogoutHandler ends the login session (GET /auth/logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirect := func() {
			s.SetLoginSessionCookie(w, "", r, -1) // Delete cookie
			redirectSuccess(w, r, RouteIndex)
		}

		sessionID := loginSessionID(r)
		if sessionID == "" {
			redirect()
			return
		}

		if err := s.clientFor(sessionID).SignOut(r.Context()); err != nil {
			log.Err(err).Msg("Logout: failed to sign out")
		}
		s.forgetClient(sessionID)
		redirect()
	}
}
