package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/amonks/spacetodo/filestore"
	"github.com/amonks/spacetodo/internal/config"
	"github.com/amonks/spacetodo/internal/paths"
	"github.com/amonks/spacetodo/memstore"
	"github.com/amonks/spacetodo/record"
	"github.com/amonks/spacetodo/redisstore"
	"github.com/amonks/spacetodo/sqlitestore"
)

// openStore opens the backend cfg selects.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (record.Store, error) {
	switch cfg.Backend() {
	case config.BackendMemory:
		return memstore.New(memstore.Options{Collation: cfg.Collation()}), nil

	case config.BackendRedis:
		if cfg.Store.RedisURL == "" {
			return nil, exitWith(exitUsage, fmt.Errorf("redis backend needs a url: set [store] redis-url or %s", config.EnvRedisURL))
		}
		store, err := redisstore.Open(ctx, redisstore.Options{
			URL:       cfg.Store.RedisURL,
			Prefix:    cfg.Store.RedisPrefix,
			Collation: cfg.Collation(),
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendSQLite:
		dir, err := cfg.DataDir()
		if err != nil {
			return nil, err
		}
		store, err := sqlitestore.Open(paths.SQLitePath(dir), sqlitestore.Options{
			Collation: cfg.Collation(),
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		dir, err := cfg.DataDir()
		if err != nil {
			return nil, err
		}
		store, err := filestore.Open(dir, filestore.Options{
			Collation: cfg.Collation(),
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
