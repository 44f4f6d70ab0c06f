// Package postgres implements the storage.Backend interface over
// GORM/PostgreSQL. It wraps the shared GORM backend and adds the
// Postgres-only concerns: dialing the server and arranging TimescaleDB
// hypertables for the time-series tables.
package postgres

import (
	"fmt"

	"github.com/driftline/engine/internal/database"
	gormstorage "github.com/driftline/engine/internal/storage/gorm"
)

// hypertables maps time-series tables to their compression segment columns.
// Only the high-volume tables are converted; runs and best times stay plain.
var hypertables = map[string][]string{
	"telemetry_samples":   {"run_id"},
	"run_events":          {"run_id"},
	"engine_performances": {"run_id"},
}

// Backend wraps the GORM backend for Postgres-specific behavior.
type Backend struct {
	*gormstorage.Backend
	deps gormstorage.Dependencies
}

// New creates a new Postgres storage backend. No connection is made until
// Init.
func New(deps gormstorage.Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(deps),
		deps:    deps,
	}
}

// Init dials Postgres when no DB was injected, initializes the embedded GORM
// backend (migration, best-time warm, writer goroutine), then arranges
// hypertables. A missing TimescaleDB extension degrades to plain tables.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
		b.SetDB(db)
	}

	if err := b.deps.DB.Exec(`CREATE EXTENSION IF NOT EXISTS timescaledb;`).Error; err != nil {
		b.deps.LogManager.WriteLog("postgres:Init",
			fmt.Sprintf("TimescaleDB extension not available, using plain tables: %v", err), "WARN")
	}

	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.timescaleAvailable() {
		if err := b.validateHypertables(hypertables); err != nil {
			return fmt.Errorf("failed to validate hypertables: %w", err)
		}
	}

	return nil
}

// timescaleAvailable reports whether the TimescaleDB catalog is queryable.
func (b *Backend) timescaleAvailable() bool {
	var n int64
	err := b.deps.DB.Raw(`SELECT COUNT(*) FROM pg_extension WHERE extname = 'timescaledb'`).Scan(&n).Error
	return err == nil && n > 0
}

// validateHypertables converts each listed table into a hypertable with
// compression, skipping tables already configured.
func (b *Backend) validateHypertables(tables map[string][]string) error {
	functionName := "postgres:validateHypertables"
	log := b.deps.LogManager

	for table, segmentBy := range tables {
		var count int64
		err := b.deps.DB.Raw(
			`SELECT COUNT(*) FROM timescaledb_information.hypertables WHERE hypertable_name = ?`,
			table,
		).Scan(&count).Error
		if err != nil {
			return fmt.Errorf("failed to query hypertable catalog for %s: %w", table, err)
		}
		if count > 0 {
			log.WriteLog(functionName, fmt.Sprintf("Table %s is already configured", table), "INFO")
			continue
		}

		err = b.deps.DB.Exec(fmt.Sprintf(
			`SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true);`,
			table,
		)).Error
		if err != nil {
			log.WriteLog(functionName, fmt.Sprintf("Failed to create hypertable for %s: %v", table, err), "ERROR")
			return err
		}
		log.WriteLog(functionName, fmt.Sprintf("Created hypertable for %s", table), "INFO")

		err = b.deps.DB.Exec(fmt.Sprintf(
			`ALTER TABLE %s SET (timescaledb.compress, timescaledb.compress_segmentby = '%s');`,
			table, joinColumns(segmentBy),
		)).Error
		if err != nil {
			log.WriteLog(functionName, fmt.Sprintf("Failed to enable compression for %s: %v", table, err), "ERROR")
			return err
		}

		err = b.deps.DB.Exec(fmt.Sprintf(
			`SELECT add_compression_policy('%s', compress_after => interval '14 day');`,
			table,
		)).Error
		if err != nil {
			log.WriteLog(functionName, fmt.Sprintf("Failed to set compress_after for %s: %v", table, err), "ERROR")
			return err
		}
		log.WriteLog(functionName, fmt.Sprintf("Enabled hypertable compression for %s", table), "INFO")
	}
	return nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}
