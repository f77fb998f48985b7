// Command souschefd runs the cooking-session backend: the HTTP API, the
// outbound agent client and the idle-session sweeper.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/souschef-ai/souschef/agent"
	"github.com/souschef-ai/souschef/config"
	"github.com/souschef-ai/souschef/core"
	"github.com/souschef-ai/souschef/guard"
	"github.com/souschef-ai/souschef/logging"
	"github.com/souschef-ai/souschef/orchestrator"
	"github.com/souschef-ai/souschef/relay"
	"github.com/souschef-ai/souschef/scheduler"
	"github.com/souschef-ai/souschef/server"
	"github.com/souschef-ai/souschef/session"
	"github.com/souschef-ai/souschef/session/postgres"
)

const shutdownGrace = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a souschef.yaml config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "souschefd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		Output:    os.Stdout,
		Component: "souschefd",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	agentClient := agent.NewHTTPClient(cfg.Agent.BaseURL, func(o *agent.Options) {
		o.Timeout = cfg.Agent.Timeout
		o.Logger = logger.WithComponent("agent")
	})

	// Demo identity, matching the bundled static verifier. Swap the verifier
	// for a real identity backend to go beyond single-user demos.
	g := guard.New(guard.NewStaticVerifier(guard.User{
		OwnerID:  "demo",
		Email:    "demo@souschef.ai",
		Password: "demo",
		Nickname: "Demo Cook",
	}))

	orch := orchestrator.New(store, agentClient, g, func(o *orchestrator.Options) {
		o.Logger = logger.WithComponent("orchestrator")
	})

	rly := relay.New(logger.WithComponent("relay"))

	sweeper := scheduler.New(orch, func(o *scheduler.Options) {
		o.IdleTimeout = cfg.Sweep.IdleTimeout
		o.Interval = cfg.Sweep.Interval
		o.Logger = logger.WithComponent("scheduler")
	})

	srv, err := server.New(orch, g, rly, func(o *server.Options) {
		o.Logger = logger.WithComponent("server")
		o.AllowedOrigins = cfg.Server.AllowedOrigins
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("listening addr=%s agent=%s", cfg.Server.ListenAddr, cfg.Agent.BaseURL)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		err := sweeper.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildStore selects the session store: postgres when a database URL is
// configured, in-memory otherwise.
func buildStore(ctx context.Context, cfg *config.Config, logger *logging.ServiceLogger) (core.SessionStore, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("using in-memory session store")
		return session.NewInMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := postgres.New(pool, logger.WithComponent("store"))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	logger.Info("using postgres session store")
	return store, pool.Close, nil
}
