package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lockerd/lockerd"
	"github.com/lockerd/lockerd/auth"
	"github.com/lockerd/lockerd/config"
	"github.com/lockerd/lockerd/credstore"
	lockerdhttp "github.com/lockerd/lockerd/http"
	"github.com/lockerd/lockerd/s3store"
	"github.com/lockerd/lockerd/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the lockerd HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("bucket", "", "object storage bucket (env: LOCKERD_STORAGE_BUCKET)")
	serveCmd.Flags().String("endpoint", "", "object storage endpoint URL (env: LOCKERD_STORAGE_ENDPOINT)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}

	seed, err := bootstrapUser(cfg)
	if err != nil {
		return err
	}

	creds, cleanup, err := credstore.Open(ctx, cfg.Store, seed)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer cleanup()
	slog.Info("credential store ready", "type", cfg.Store.Type)

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	slog.Info("session store ready", "backend", cfg.Session.Backend)

	objects, err := s3store.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("connect object storage: %w", err)
	}
	slog.Info("object storage ready", "bucket", cfg.Storage.Bucket, "endpoint", cfg.Storage.Endpoint)

	handlerConfig := lockerdhttp.HandlerConfig{
		CookieName:    cfg.Session.CookieName,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		CORS:          cfg.CORS,
	}

	handler := lockerdhttp.NewHandler(
		&handlerConfig,
		auth.NewAuthenticator(creds),
		sessions,
		session.NewCookieCodec(cfg.Session.Secret),
		lockerd.NewService(objects),
	)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// bootstrapUser builds the default account seeded into an empty credential
// store.
func bootstrapUser(cfg *config.Config) (lockerd.User, error) {
	hash, err := auth.HashPassword(cfg.Bootstrap.Password)
	if err != nil {
		return lockerd.User{}, fmt.Errorf("hash bootstrap password: %w", err)
	}

	return lockerd.User{Name: cfg.Bootstrap.Username, PasswordHash: hash}, nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute

	switch cfg.Session.Backend {
	case "redis":
		return session.NewRedisStore(ctx, cfg.Session.RedisURL, ttl)
	default:
		return session.NewMemoryStore(ttl), nil
	}
}
