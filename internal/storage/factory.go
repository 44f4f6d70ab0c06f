// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/driftline/engine/internal/cache"
	"github.com/driftline/engine/internal/config"
	"github.com/driftline/engine/internal/logging"
	"github.com/driftline/engine/internal/session"
	gormstorage "github.com/driftline/engine/internal/storage/gorm"
	"github.com/driftline/engine/internal/storage/memory"
	"github.com/driftline/engine/internal/storage/postgres"
	sqlitestorage "github.com/driftline/engine/internal/storage/sqlite"
	"github.com/driftline/engine/internal/storage/stream"

	"gorm.io/gorm"
)

// Dependencies carries the shared services and host-computed settings the
// backends draw from. Each backend takes what it needs and ignores the rest.
type Dependencies struct {
	DB         *gorm.DB // optional; database backends dial their own when nil
	BestTimes  *cache.BestTimeCache
	LogManager *logging.SlogManager
	Session    *session.Context

	// Lifecycle guards owned by the host process. All optional.
	IsDatabaseValid func() bool
	ShouldSaveLocal func() bool
	DBInsertsPaused func() bool

	// DumpPath is where the sqlite backend writes its periodic snapshots.
	DumpPath string

	// StreamURL and StreamSecret configure the websocket stream backend.
	StreamURL    string
	StreamSecret string
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(gormDeps(deps)), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     deps.DumpPath,
		}, deps.BestTimes, deps.LogManager, deps.Session)
	case "stream":
		return stream.New(stream.Config{
			URL:    deps.StreamURL,
			Secret: deps.StreamSecret,
		}), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func gormDeps(deps Dependencies) gormstorage.Dependencies {
	return gormstorage.Dependencies{
		DB:              deps.DB,
		BestTimes:       deps.BestTimes,
		LogManager:      deps.LogManager,
		Session:         deps.Session,
		IsDatabaseValid: deps.IsDatabaseValid,
		ShouldSaveLocal: deps.ShouldSaveLocal,
		DBInsertsPaused: deps.DBInsertsPaused,
	}
}
