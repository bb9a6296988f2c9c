// Package migrate applies the embedded history schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//go:embed migrations/*.sql
var files embed.FS

// ErrChecksum reports an applied migration whose embedded SQL has changed.
var ErrChecksum = errors.New("migrate: applied migration was modified")

// Migration is one versioned schema step. Files are named NNN_name.sql.
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum uint32
}

var (
	loadOnce sync.Once
	loaded   []Migration
	loadErr  error
)

// All returns the embedded migrations in version order.
func All() ([]Migration, error) {
	loadOnce.Do(func() { loaded, loadErr = parse(files, "migrations") })
	return loaded, loadErr
}

// Latest returns the highest embedded migration version.
func Latest() (int, error) {
	migs, err := All()
	if err != nil || len(migs) == 0 {
		return 0, err
	}
	return migs[len(migs)-1].Version, nil
}

func parse(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("migrate: read embedded: %w", err)
	}

	seen := make(map[int]string, len(entries))
	out := make([]Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		prefix, rest, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".sql"), "_")
		if !ok || rest == "" {
			return nil, fmt.Errorf("migrate: %s: want NNN_name.sql", e.Name())
		}
		ver, err := strconv.Atoi(prefix)
		if err != nil || ver <= 0 {
			return nil, fmt.Errorf("migrate: %s: bad version %q", e.Name(), prefix)
		}
		if prev, dup := seen[ver]; dup {
			return nil, fmt.Errorf("migrate: version %d used by %s and %s", ver, prev, e.Name())
		}
		seen[ver] = e.Name()

		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", e.Name(), err)
		}
		out = append(out, Migration{
			Version:  ver,
			Name:     rest,
			SQL:      string(data),
			Checksum: crc32.ChecksumIEEE(data),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Runner applies migrations to one database.
type Runner struct {
	db   *sql.DB
	migs func() ([]Migration, error)
}

// NewRunner creates a runner for the embedded migrations.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, migs: All}
}

func (r *Runner) ensureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS history_schema (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR NOT NULL,
		checksum   UBIGINT NOT NULL,
		applied_at TIMESTAMP DEFAULT current_timestamp
	)`)
	if err != nil {
		return fmt.Errorf("migrate: create history_schema: %w", err)
	}
	return nil
}

// applied returns version -> checksum of every recorded migration.
func (r *Runner) applied(ctx context.Context) (map[int]uint32, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version, checksum FROM history_schema")
	if err != nil {
		return nil, fmt.Errorf("migrate: read history_schema: %w", err)
	}
	defer rows.Close()

	out := make(map[int]uint32)
	for rows.Next() {
		var (
			v   int
			sum uint64
		)
		if err := rows.Scan(&v, &sum); err != nil {
			return nil, fmt.Errorf("migrate: scan history_schema: %w", err)
		}
		out[v] = uint32(sum)
	}
	return out, rows.Err()
}

// Run applies pending migrations in order, each in its own transaction.
func (r *Runner) Run() error {
	return r.RunContext(context.Background())
}

// RunContext is Run with a context. An applied migration whose SQL no longer
// matches the recorded checksum stops the run with ErrChecksum.
func (r *Runner) RunContext(ctx context.Context) error {
	pending, err := r.pending(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := r.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) pending(ctx context.Context) ([]Migration, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	migs, err := r.migs()
	if err != nil {
		return nil, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var out []Migration
	for _, m := range migs {
		sum, ok := done[m.Version]
		if !ok {
			out = append(out, m)
			continue
		}
		if sum != m.Checksum {
			return nil, fmt.Errorf("%w: %03d_%s", ErrChecksum, m.Version, m.Name)
		}
	}
	return out, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %03d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migrate: apply %03d_%s: %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO history_schema (version, name, checksum) VALUES (?, ?, ?)",
		m.Version, m.Name, uint64(m.Checksum)); err != nil {
		return fmt.Errorf("migrate: record %03d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit %03d: %w", m.Version, err)
	}
	return nil
}

// Status returns the highest applied version and the number of pending migrations.
func (r *Runner) Status() (current int, pending int, err error) {
	ctx := context.Background()
	todo, err := r.pending(ctx)
	if err != nil {
		return 0, 0, err
	}
	done, err := r.applied(ctx)
	if err != nil {
		return 0, 0, err
	}
	for v := range done {
		current = max(current, v)
	}
	return current, len(todo), nil
}
