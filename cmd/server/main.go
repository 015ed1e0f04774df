package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-session-guard/client"
	"github.com/jrsteele09/go-session-guard/identity"
	"github.com/jrsteele09/go-session-guard/identity/pglookup"
	"github.com/jrsteele09/go-session-guard/idp"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/jrsteele09/go-session-guard/internal/logging"
	"github.com/jrsteele09/go-session-guard/retry"
	"github.com/jrsteele09/go-session-guard/returnto"
	"github.com/jrsteele09/go-session-guard/server"
	"github.com/jrsteele09/go-session-guard/server/authflowrepo"
	"github.com/jrsteele09/go-session-guard/sessions"
	"github.com/jrsteele09/go-session-guard/sessions/redisrepo"
	"github.com/rs/zerolog/log"
)

const startupRetries = 5

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, authState, options, cleanup, err := buildDependencies(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	handler, err := server.New(c, deps, authState, options...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return shutdown(httpServer)
}

// buildDependencies wires the stores named by the configuration: Redis when
// REDIS_URL is set, Postgres identity lookups when DATABASE_URL is set, and
// process memory otherwise.
func buildDependencies(ctx context.Context, c config.Config) (client.Dependencies, authflowrepo.Repo, []server.Option, func(), error) {
	var (
		options []server.Option
		closers []func()
		deps    = client.Dependencies{Config: c, SignInPath: server.RouteLogin}
		cleanup = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
		authState authflowrepo.Repo
	)

	if redisURL := c.GetRedisURL(); redisURL != "" {
		repo, err := redisrepo.NewFromURL(redisURL, redisrepo.WithTTL(c.GetMaxSessionAge()))
		if err != nil {
			return deps, nil, nil, cleanup, err
		}
		closers = append(closers, func() { _ = repo.Close() })
		rdb := repo.Client()
		deps.Sessions = repo
		deps.ReturnTo = returnto.NewRedisRepo(rdb, c.GetMaxSessionAge())
		deps.Redis = rdb
		authState = authflowrepo.NewRedisRepo(rdb, authflowrepo.DefaultTTL)
		options = append(options, server.WithHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		log.Info().Msg("Sessions are stored in Redis")
	} else {
		deps.Sessions = sessions.NewInMemoryRepo()
		deps.ReturnTo = returnto.NewInMemoryRepo()
		authState = authflowrepo.NewInMemoryRepo(authflowrepo.DefaultTTL)
		log.Warn().Msg("REDIS_URL not set, sessions are kept in memory")
	}

	if databaseURL := c.GetDatabaseURL(); databaseURL != "" {
		pool, err := withStartupRetries(ctx, "postgres", func(ctx context.Context) (*pgxpool.Pool, error) {
			return pglookup.Connect(ctx, databaseURL)
		})
		if err != nil {
			return deps, nil, nil, cleanup, err
		}
		closers = append(closers, pool.Close)
		deps.Lookup = pglookup.New(pool)
		options = append(options, server.WithHealthCheck("postgres", pool.Ping))
	} else {
		deps.Lookup = identity.StaticLookup{}
		log.Warn().Msg("DATABASE_URL not set, no user resolves to a restaurant")
	}

	provider, err := withStartupRetries(ctx, "identity provider", func(ctx context.Context) (*idp.Provider, error) {
		return idp.Discover(ctx, idp.DiscoveryConfig{
			Issuer:       c.GetIssuer(),
			ClientID:     c.GetClientID(),
			ClientSecret: c.GetClientSecret(),
			RedirectURL:  c.GetBaseURL() + server.RouteCallback,
			Scopes:       c.GetScopes(),
		}, idp.WithRevocationURL(c.GetRevocationURL()))
	})
	if err != nil {
		return deps, nil, nil, cleanup, err
	}
	deps.Provider = provider

	return deps, authState, options, cleanup, nil
}

// withStartupRetries connects to a dependency that may still be starting.
func withStartupRetries[T any](ctx context.Context, name string, connect func(ctx context.Context) (T, error)) (T, error) {
	exec := retry.New(func(ctx context.Context, _ ...any) (T, error) {
		return connect(ctx)
	},
		retry.WithMaxRetries[T](startupRetries),
		retry.WithOnError[T](func(err error) {
			log.Err(err).Str("dependency", name).Msg("Giving up connecting")
		}),
	)
	v, ok := exec.Execute(ctx)
	if !ok {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("connecting to %s: %w", name, err)
		}
		return zero, fmt.Errorf("connecting to %s: %s", name, exec.State().Err)
	}
	log.Info().Str("dependency", name).Int("retries", exec.State().RetryCount).Msg("Connected")
	return v, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
