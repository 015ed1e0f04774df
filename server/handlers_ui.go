package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("index.html")
	if err != nil {
		panic("Failed to parse index template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		// "GET /" also catches unknown paths
		if r.URL.Path != RouteIndex {
			http.NotFound(w, r)
			return
		}
		data := map[string]interface{}{
			"AppName": s.config.GetAppName(),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		_ = tmpl.Execute(w, data)
	}
}

// DashboardPageData contains data for rendering the dashboard
type DashboardPageData struct {
	AppName      string
	Email        string
	RestaurantID string
	Error        string
}

// DashboardHandler renders the signed-in landing page (GET /dashboard)
func (s *Server) DashboardHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("dashboard.html")
	if err != nil {
		panic("Failed to parse dashboard template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClientFrom(r.Context())
		if !ok {
			redirectSuccess(w, r, RouteLogin)
			return
		}
		data := DashboardPageData{AppName: s.config.GetAppName()}
		if session, ok := SessionFrom(r.Context()); ok {
			data.Email = session.Email
		}

		id, err := c.ResolveIdentity(r.Context())
		switch {
		case err != nil && c.Guard().IsSessionError(err):
			redirectSuccess(w, r, c.Guard().SignInRedirect())
			return
		case err != nil:
			log.Err(err).Msg("Dashboard: identity lookup failed")
			data.Error = "Your restaurant could not be loaded. Please try again."
		case id != nil:
			data.RestaurantID = *id
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render dashboard template")
		}
	}
}
