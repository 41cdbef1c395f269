package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity-server/internal/config"
	"identity-server/internal/database"
	"identity-server/internal/handler"
	"identity-server/internal/middleware"
	"identity-server/internal/model"
	"identity-server/internal/repository"
	"identity-server/internal/router"
	"identity-server/internal/service"
)

type App struct {
	cfg    *config.Config
	db     *database.Database
	server *http.Server
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	roleRepo := repository.NewRoleRepository(db.Pool)

	tokens, err := service.NewTokenService(service.TokenConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.JWTAccessTTL,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	users := service.NewUserService(userRepo, roleRepo, tokens, cfg.RefreshTokenTTL)
	roles := service.NewRoleService(roleRepo)

	if err := bootstrapAdmin(ctx, cfg, users, userRepo); err != nil {
		db.Close()
		return nil, err
	}

	auth := middleware.NewAuthMiddleware(tokens)
	userHandler := handler.NewUserHandler(users)
	roleHandler := handler.NewRoleHandler(roles)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router.New(cfg, auth, userHandler, roleHandler),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{cfg: cfg, db: db, server: srv}, nil
}

// bootstrapAdmin registers a first admin account when the user table is
// empty and BOOTSTRAP_ADMIN_USERNAME / BOOTSTRAP_ADMIN_PASSWORD are set.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, users *service.UserService, repo *repository.UserRepository) error {
	if cfg.BootstrapAdminUsername == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}

	count, err := repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err = users.Register(ctx, model.RegisterRequest{
		Username: cfg.BootstrapAdminUsername,
		Email:    cfg.BootstrapAdminUsername + "@bootstrap.local",
		Name:     cfg.BootstrapAdminUsername,
		Password: cfg.BootstrapAdminPassword,
		Role:     "Admin",
	})
	if err != nil {
		return fmt.Errorf("bootstrapping admin user: %w", err)
	}

	slog.Info("bootstrap admin user created", "username", cfg.BootstrapAdminUsername)
	return nil
}

func (a *App) Run() error {
	errCh := make(chan error, 1)

	go func() {
		slog.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		a.db.Close()
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.db.Close()
		return fmt.Errorf("shutting down server: %w", err)
	}

	a.db.Close()
	slog.Info("server stopped")
	return nil
}
