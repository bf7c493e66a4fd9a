package history

import (
	"context"
	"errors"
	"fmt"

	"go-medreport-scanner/internal/config"
)

// Persisted record keys
const (
	KeySettings = "settings"
	KeyHistory  = "history"
)

// ErrNotFound is returned by backends for keys that were never written
var ErrNotFound = errors.New("key not found")

// Backend stores whole values by key. Set replaces the value atomically.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// NewBackend opens the backend selected by the storage driver
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.StorageFile, "":
		return NewFileBackend(cfg.DataDir)
	case config.StorageSQLite:
		return NewSQLiteBackend(cfg.SQLitePath)
	case config.StorageRedis:
		return NewRedisBackend(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
