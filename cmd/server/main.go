package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"commit/internal/config"
	"commit/internal/handlers"
	"commit/internal/ledger"
	"commit/internal/logging"
	"commit/internal/notify"
	"commit/internal/security"
	"commit/internal/service"
	"commit/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the ledger store (migrates and seeds SQL databases)
	backend, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer backend.Close()

	registry, err := ledger.NewRegistry(backend, ledger.RegistryConfig{
		Size:        cfg.LedgerCacheSize,
		LoadRetries: cfg.StoreLoadRetries,
	}, log, ledger.WithCommitTimeout(cfg.StoreTimeout.Duration))
	if err != nil {
		log.Fatal("failed to create ledger registry", zap.Error(err))
	}

	// Initialize services
	tokens := security.NewTokenIssuer(cfg.JWTSecret, cfg.SessionDuration.Duration)
	authService := service.NewAuthService(backend, registry, tokens, log)
	squadService := service.NewSquadService(backend, log)
	leaderboardService := service.NewLeaderboardService(backend)

	notifier, err := newNotifier(ctx, cfg, backend, log)
	if err != nil {
		log.Fatal("failed to create notifier", zap.Error(err))
	}
	if err := notifier.Restore(ctx); err != nil {
		log.Fatal("failed to restore reminder settings", zap.Error(err))
	}
	go notifier.Run(ctx, cfg.ReminderInterval.Duration, reminderSource(registry))

	handler := handlers.NewRouter(handlers.Dependencies{
		Auth:        authService,
		Squads:      squadService,
		Leaderboard: leaderboardService,
		Registry:    registry,
		Notifier:    notifier,
		Limiter:     security.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		Log:         log,
	})

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", addr), zap.String("ledger_backend", cfg.LedgerBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newNotifier delivers reminders by email when SES is configured and to the log otherwise
func newNotifier(ctx context.Context, cfg *config.Config, settings notify.SettingsStore, log *zap.Logger) (*notify.Notifier, error) {
	if !cfg.EmailEnabled {
		return notify.NewNotifier(notify.NewLogSender(log), log, notify.WithSettingsStore(settings)), nil
	}
	sender, err := notify.NewSESSender(ctx, cfg.AWSRegion, cfg.EmailFrom, log)
	if err != nil {
		return nil, err
	}
	return notify.NewNotifier(sender, log, notify.WithSettingsStore(settings)), nil
}

func reminderSource(registry *ledger.Registry) notify.Source {
	return func(ctx context.Context, accountID string) (notify.Recipient, ledger.ReminderCounts, error) {
		l, err := registry.Get(ctx, accountID)
		if err != nil {
			return notify.Recipient{}, ledger.ReminderCounts{}, err
		}
		account := l.Account()
		to := notify.Recipient{AccountID: account.ID, Username: account.Username, Email: account.Email}
		return to, l.ReminderCounts(time.Now()), nil
	}
}
