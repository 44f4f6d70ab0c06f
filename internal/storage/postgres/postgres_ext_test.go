package postgres_test

import (
	"github.com/driftline/engine/internal/storage"
	"github.com/driftline/engine/internal/storage/postgres"
)

// Compile-time interface check
var _ storage.Backend = (*postgres.Backend)(nil)
