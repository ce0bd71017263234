package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"moviepicker"
	"moviepicker/internal/auth"
	"moviepicker/internal/config"
	"moviepicker/internal/database"
	"moviepicker/internal/handlers"
	"moviepicker/internal/logging"
	"moviepicker/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("Could not read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server stopped")
	}
}

func run(cfg *config.Config) error {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	migrations, err := moviepicker.GetMigrationsFS()
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db, migrations); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	requireAuth, err := auth.Middleware(cfg.Auth.Mode, cfg.Auth.Auth0Domain, cfg.Auth.Auth0Audience, cfg.Auth.LocalUser)
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plex := services.NewPlexIntegrationManager(db, cfg)
	plex.Start(ctx)
	defer plex.Stop()

	users := handlers.NewDBUsers(db)
	router := handlers.NewRouter(handlers.Handlers{
		Users:       handlers.NewUserHandler(users, plex.Preferences()),
		Recommend:   handlers.NewRecommendHandler(users, plex.Recommender(), plex.Passes()),
		Plex:        handlers.NewPlexHandler(users, plex.Preferences(), plex.Players(), plex.Delivery(), plex.Playlists()),
		RequireAuth: requireAuth,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Int("port", cfg.Server.Port).
			Str("plex_server", cfg.Plex.ServerURL).
			Str("auth_mode", cfg.Auth.Mode).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
