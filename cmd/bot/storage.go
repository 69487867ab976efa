package main

import (
	"context"
	"fmt"

	"github.com/hfi/postlink-bot/internal/config"
	"github.com/hfi/postlink-bot/internal/storage"
)

// openPersister builds the configured persistence backend. The memory
// backend has no persister.
func openPersister(ctx context.Context, cfg config.StorageConfig) (storage.Persister, error) {
	switch cfg.Type {
	case config.StorageFile:
		return storage.NewFilePersister(cfg.File.Path), nil
	case config.StorageRedis:
		p, err := storage.NewRedisPersister(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.StorageSQLite:
		p, err := storage.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.StorageMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
