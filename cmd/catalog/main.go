package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/user/vidcatalog/internal/activity"
	"github.com/user/vidcatalog/internal/auth"
	"github.com/user/vidcatalog/internal/catalog"
	"github.com/user/vidcatalog/internal/config"
	"github.com/user/vidcatalog/internal/provider"
	"github.com/user/vidcatalog/internal/scheduler"
	"github.com/user/vidcatalog/internal/server"
	"github.com/user/vidcatalog/internal/staging"
	"github.com/user/vidcatalog/internal/store"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second

	// loginLimiterTTL is how long an idle client address is remembered by the login limiter
	loginLimiterTTL = 15 * time.Minute
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	gin.SetMode(cfg.Server.GinMode)

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	client := provider.New(&cfg.Provider)
	checkFolder(ctx, client)

	stager, err := staging.New(&cfg.Upload)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}

	authenticator, err := auth.NewAuthenticator(&cfg.Admin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize admin authentication")
	}

	catalogService := catalog.NewService(st, client)
	recorder := activity.NewRecorder(st)
	sched := scheduler.NewScheduler(st, catalogService, &cfg.Reconcile)

	httpServer := server.NewServer(server.Deps{
		Catalog:      catalogService,
		Recorder:     recorder,
		Auth:         authenticator,
		Limiter:      auth.NewLoginLimiter(cfg.Admin.LoginRate, loginLimiterTTL),
		Stager:       stager,
		Health:       st,
		SecureCookie: cfg.Admin.SecureCookie,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sched.Start(ctx)

	log.Info().Msg("Video catalog started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	sched.Stop()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	}

	// Activity writes run detached from requests and finish on their own timeout
	recorder.Wait()

	if err := st.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	}

	cancel()

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		log.Warn().Msg("Shutdown timeout exceeded")
		return
	}
	log.Info().Msg("Graceful shutdown completed")
}

// openStore connects to Postgres, or keeps everything in memory when DB_MEMORY is set
func openStore(cfg *config.DBConfig) (store.Store, error) {
	if cfg.Memory {
		log.Warn().Msg("Using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	}
	pg, err := store.NewPostgresStore(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connection established")
	return pg, nil
}

// checkFolder warns when the configured upload folder does not exist at the provider
func checkFolder(ctx context.Context, client *provider.Client) {
	if client.FolderID() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	folders, err := client.ListFolders(ctx, "")
	if err != nil {
		log.Warn().Err(err).Msg("Could not verify provider folder")
		return
	}
	for _, f := range folders {
		if f.ID.String() == client.FolderID() {
			log.Info().Str("folder", f.Name).Msg("Provider folder verified")
			return
		}
	}
	log.Warn().Str("folderID", client.FolderID()).Msg("Configured provider folder not found, uploads go to the account root")
}
