package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"commit/internal/config"
	"commit/internal/database"
	"commit/internal/models"
	"commit/internal/repository"
)

// Open connects the configured backend. SQL databases are migrated and the
// achievement catalog is seeded before the store is returned.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (Backend, error) {
	switch cfg.LedgerBackend {
	case config.BackendSQL:
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.RunMigrations(ctx, cfg.MigrationsPath, log); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if err := repository.NewAchievementRepository(db).SeedCatalog(ctx, models.DefaultAchievements); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("using sql ledger store", zap.String("database_type", cfg.DatabaseType))
		return NewSQLStore(db, log), nil

	case config.BackendRedis:
		kv, err := NewRedisKV(ctx, RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, err
		}
		log.Info("using redis ledger store", zap.String("addr", cfg.RedisAddr))
		return NewKVStore(kv, log), nil

	case config.BackendMemory:
		log.Warn("using in-memory ledger store, data is lost on restart")
		return NewKVStore(NewMemoryKV(), log), nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
}
