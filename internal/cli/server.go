package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"hustle/internal/app"
	"hustle/internal/auth"
	"hustle/internal/catalog"
	"hustle/internal/config"
	"hustle/internal/engine"
	"hustle/internal/infra/memory"
	pgstore "hustle/internal/infra/postgres"
	redisstore "hustle/internal/infra/redis"
	transport "hustle/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the persistence wiring chosen from config.
type stores struct {
	progress    app.ProgressRepository
	submissions app.SubmissionLog
	teams       app.TeamRepository
	leaderboard app.LeaderboardCache
	relay       *redisstore.LeaderboardRelay
	close       func()
}

// openStores prefers Postgres for durable records, falling back to Redis and
// then to process memory. The leaderboard cache lives in Redis when it is
// configured so every instance shares one copy. On error every connection
// opened so far is closed.
func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	var closers []func()
	s := &stores{}
	s.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*stores, error) {
		s.close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fail(err)
		}
	}

	var loader app.LeaderboardLoader
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return fail(err)
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
		progress := pgstore.NewProgressStore(pool)
		s.progress = progress
		s.submissions = pgstore.NewSubmissionLog(pool)
		s.teams = pgstore.NewTeamStore(pool)
		loader = progress
		slog.Info("using postgres stores")
	case redisClient != nil:
		progress := redisstore.NewProgressStore(redisClient)
		s.progress = progress
		s.submissions = redisstore.NewSubmissionLog(redisClient)
		s.teams = redisstore.NewTeamStore(redisClient)
		loader = app.NewProgressLeaderboard(progress)
		slog.Info("using redis stores")
	default:
		progress := memory.NewProgressStore()
		s.progress = progress
		s.submissions = memory.NewSubmissionLog()
		s.teams = memory.NewTeamStore()
		loader = app.NewProgressLeaderboard(progress)
		slog.Warn("no postgres or redis configured; records live in memory only")
	}

	ttl := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)
	if redisClient != nil {
		s.leaderboard = redisstore.NewLeaderboardCache(redisClient, loader, ttl)
		s.relay = redisstore.NewLeaderboardRelay(redisClient)
	} else {
		s.leaderboard = memory.NewLeaderboardCache(loader, ttl)
	}

	return s, nil
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path != "" {
		return catalog.LoadFile(cfg.Catalog.Path)
	}
	return catalog.Default()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	questions, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 7*24*time.Hour))
	teams := app.NewTeamService(st.teams, tokens, app.AdminCredentials{
		Username:     cfg.Auth.AdminUsername,
		PasswordHash: cfg.Auth.AdminPasswordHash,
	})
	opts := []app.RoundOption{
		app.WithHub(app.NewLeaderboardHub()),
		app.WithTeamRecorder(teams),
		app.WithMaxRetries(cfg.MaxRetries()),
	}
	if st.relay != nil {
		opts = append(opts, app.WithNotifier(st.relay))
	}
	rounds := app.NewRoundService(engine.New(questions, cfg.Policy()), st.progress, st.submissions, st.leaderboard, opts...)

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	if st.relay != nil {
		go func() {
			if err := st.relay.Run(relayCtx, rounds.RefreshFeed); err != nil {
				slog.Error("leaderboard relay stopped", "error", err)
			}
		}()
	}

	api := transport.NewServer(rounds, teams, transport.Options{
		RequestTimeout: config.TTLDuration(cfg.Server.RequestTimeout, 30*time.Second),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting hustle server", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("context canceled, shutting down server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
