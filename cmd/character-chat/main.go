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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/app"
	"github.com/upb/character-chat/config"
	"github.com/upb/character-chat/internal/observability"
	"github.com/upb/character-chat/middleware"
	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/routes"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      routes.SetupRoutes(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("character-chat listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("vector_store", cfg.VectorStore.Kind),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		deps.Close(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func initLogger() (*zap.Logger, error) {
	return observability.NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// issueToken prints a bearer token signed with JWT_SECRET, for operators
// and local testing
func issueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	user := fs.String("user", "", "user id (UUID)")
	role := fs.String("role", string(models.RoleUser), "role: user or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := uuid.Parse(*user)
	if err != nil {
		return fmt.Errorf("invalid -user: %w", err)
	}
	r := models.UserRole(*role)
	if !r.Valid() {
		return fmt.Errorf("invalid -role %q", *role)
	}

	cfg, err := config.New(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	validator, err := middleware.NewJWTValidator(middleware.JWTConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	token, err := validator.Issue(userID, r)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
