// Package server is the HTTP surface of the session layer: the route guard,
// the sign-in flow and the JSON endpoints built on per-session clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jrsteele09/go-session-guard/client"
	"github.com/jrsteele09/go-session-guard/idp"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/jrsteele09/go-session-guard/metrics"
	"github.com/jrsteele09/go-session-guard/server/authflowrepo"
	"github.com/rs/zerolog/log"
)

const defaultClientCacheSize = 1024

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.HandlerFunc
	routes    []string
	config    config.Config
	deps      client.Dependencies
	provider  *idp.Provider
	authState authflowrepo.Repo
	limiter   *ipLimiter
	checks    map[string]HealthCheck

	clientsMu sync.Mutex
	clients   *lru.Cache[string, *client.Client]
}

type Option func(*Server)

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// New builds the server. deps.Provider drives the sign-in flow and every
// per-session client.
func New(cfg config.Config, deps client.Dependencies, authStateRepo authflowrepo.Repo, options ...Option) (*Server, error) {
	if deps.Provider == nil {
		return nil, fmt.Errorf("[Server New] an identity provider is required")
	}
	if deps.SignInPath == "" {
		deps.SignInPath = RouteLogin
	}

	size := cfg.GetClientCacheSize()
	if size <= 0 {
		size = defaultClientCacheSize
	}
	clients, err := lru.NewWithEvict(size, func(string, *client.Client) {
		metrics.ActiveClients.Dec()
	})
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create client cache: %w", err)
	}

	s := &Server{
		env:       cfg.GetEnv(),
		mux:       http.NewServeMux(),
		config:    cfg,
		deps:      deps,
		provider:  deps.Provider,
		authState: authStateRepo,
		limiter:   newIPLimiter(cfg.GetAuthRateLimit(), cfg.GetAuthRateBurst()),
		checks:    make(map[string]HealthCheck),
		clients:   clients,
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.RecoverMiddleware, s.LoggingMiddleware, s.RequireSession())
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// clientFor returns the cached client of a login session, creating it on
// first use.
func (s *Server) clientFor(sessionID string) *client.Client {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if c, ok := s.clients.Get(sessionID); ok {
		return c
	}
	c := client.New(sessionID, s.deps, nil)
	s.clients.Add(sessionID, c)
	metrics.ActiveClients.Inc()
	return c
}

func (s *Server) forgetClient(sessionID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients.Remove(sessionID)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			log.Debug().Msg(routeLine(parts[0], parts[1]))
		} else {
			log.Debug().Msg(routeLine("", parts[0]))
		}
	}
}

func routeLine(method, path string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s] %s", color+paddedMethod+ResetColor, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
