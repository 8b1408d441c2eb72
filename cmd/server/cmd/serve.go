package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/intheknowyyc/server/internal/api"
	"github.com/intheknowyyc/server/internal/auth"
	"github.com/intheknowyyc/server/internal/config"
	"github.com/intheknowyyc/server/internal/domain/events"
	"github.com/intheknowyyc/server/internal/domain/sessions"
	"github.com/intheknowyyc/server/internal/domain/users"
	"github.com/intheknowyyc/server/internal/jobs"
	"github.com/intheknowyyc/server/internal/metrics"
	"github.com/intheknowyyc/server/internal/storage/postgres"
	"github.com/intheknowyyc/server/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	host string
	port int
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server and the background job workers.

The server will:
- Load configuration from environment variables (and --config if given)
- Create the bootstrap admin when ADMIN_EMAIL and ADMIN_PASSWORD are set
- Run the refresh-token cleanup job on JOBS_CLEANUP_INTERVAL
- Shut down gracefully on SIGINT/SIGTERM

Examples:
  # Start with configuration from the environment
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServer(ctx context.Context, global *globalOptions, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(global)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting server")

	decimal.MarshalJSONWithoutQuotes = true
	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := metrics.RegisterPool(func() metrics.PoolStats { return pool.Stat() }); err != nil {
		logger.Warn().Err(err).Msg("database pool metrics unavailable")
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	userService := users.NewService(repo.Users(), logger)
	sessionService := sessions.NewService(userService, codec, repo.RefreshTokens(),
		sessions.WithAccessTTL(cfg.Auth.AccessTTL),
		sessions.WithRefreshTTL(cfg.Auth.RefreshTTL),
		sessions.WithRotateOnRefresh(cfg.Auth.RotateOnRefresh),
		sessions.WithLogger(logger),
	)
	eventService := events.NewService(repo.Events(), logger, events.WithHTTPSLinks(cfg.IsProduction()))

	if err := bootstrapAdmin(ctx, cfg, userService, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Jobs.Enabled {
		if err := startWorkers(ctx, group, groupCtx, cfg, pool, repo, logger); err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("background jobs disabled; expired refresh tokens will not be swept")
	}

	handler := api.NewRouter(groupCtx, cfg, logger, api.Deps{
		Events:     eventService,
		Users:      userService,
		Sessions:   sessionService,
		Tokens:     codec,
		Identities: userService,
		Database:   repo,
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	return group.Wait()
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolConfig.MinConns = int32(cfg.MinConnections)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// startWorkers runs River until groupCtx is done. The River client logs
// through slog at the configured level.
func startWorkers(ctx context.Context, group *errgroup.Group, groupCtx context.Context, cfg config.Config,
	pool *pgxpool.Pool, repo *postgres.Repository, logger zerolog.Logger) error {
	if err := jobs.Migrate(ctx, pool); err != nil {
		return err
	}

	jobLogger := newSlogLogger(cfg.Logging)
	client, err := jobs.NewClient(pool,
		jobs.NewWorkers(repo.RefreshTokens(), jobLogger),
		jobLogger,
		jobs.NewPeriodicJobs(cfg.Jobs.CleanupInterval),
		cfg.Jobs.MaxWorkers,
	)
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	if err := client.Start(groupCtx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Dur("cleanup_interval", cfg.Jobs.CleanupInterval).Msg("background job workers started")

	group.Go(func() error {
		<-groupCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("river workers shutdown error")
			return nil
		}
		logger.Info().Msg("background job workers stopped")
		return nil
	})
	return nil
}

func newSlogLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("component", "jobs")
}

// bootstrapAdmin creates the configured admin account when it does not
// exist yet. Missing settings skip the step.
func bootstrapAdmin(ctx context.Context, cfg config.Config, service *users.Service, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Debug().Msg("admin bootstrap not configured; skipping")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	user, created, err := service.EnsureAdmin(ctx, users.RegisterParams{
		Email:    bootstrap.Email,
		Password: bootstrap.Password,
		FullName: bootstrap.FullName,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if cfg.IsProduction() {
		logger.Info().Str("user_id", user.ID).Msg("bootstrapped admin user")
	} else {
		logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("bootstrapped admin user")
	}
	return nil
}
