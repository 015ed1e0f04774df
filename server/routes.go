package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleware()...))

	// LOGIN
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageUIHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthLogin, ChainMiddleware(s.LoginStartHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.AuthMiddleware()...)) // For form_post response mode

	// Protected UI routes (the route guard runs in front of the mux)
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleware()...))

	// API routes
	s.RegisterRouteFunc("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAPIIdentity, ChainMiddleware(s.IdentityHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAPIIdentityClear, ChainMiddleware(s.IdentityClearHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteEventsSession, ChainMiddleware(s.SessionEventsHandler(), s.APIMiddleware()...))

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())

	s.RegisterRouteFunc("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticCacheMiddleware))
	s.RegisterRouteFunc("GET "+RouteStaticJS, ChainMiddleware(s.serveFileHandler(), s.StaticCacheMiddleware))
	s.RegisterRouteFunc("GET "+RouteStaticImages, ChainMiddleware(s.serveFileHandler(), s.StaticCacheMiddleware))
	s.RegisterRouteFunc("GET "+RouteFavicon, ChainMiddleware(s.serveFileHandler(), s.StaticCacheMiddleware))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			log.Debug().Err(err).Str("path", filePath).Msg("Static file not found")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
