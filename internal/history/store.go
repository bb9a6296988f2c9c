// Package history persists audit records to DuckDB so runs can be compared
// after the process exits.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/tinytelemetry/throwscope/internal/history/migrate"
)

// DefaultQueryTimeout bounds every store query.
const DefaultQueryTimeout = 30 * time.Second

// Store manages the DuckDB connection for the history tables.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	logger       *zap.Logger
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database and applies migrations.
// If dbPath is empty, an in-memory database is used.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		logger:       logger,
		QueryTimeout: DefaultQueryTimeout,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the configured path. Empty means in-memory.
func (s *Store) DBPath() string { return s.dbPath }

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}
