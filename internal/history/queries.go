package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/throwscope/internal/model"
)

// where builds a WHERE clause from opts plus any extra conditions.
func where(opts QueryOpts, extra ...string) (string, []any) {
	conds := append([]string(nil), extra...)
	var args []any
	if opts.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if !opts.Since.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, opts.Since)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// RecordCount returns the number of stored records.
func (s *Store) RecordCount(opts QueryOpts) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := where(opts)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records "+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: record count: %w", err)
	}
	return n, nil
}

// TopMessages returns the most frequent conditions, faults excluded.
func (s *Store) TopMessages(limit int, opts QueryOpts) ([]MessageCount, error) {
	if limit <= 0 {
		limit = model.DefaultTopN
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := where(opts, "kind <> 'fault'")
	query := `SELECT condition, arg_max(kind, recorded_at) AS kind, COUNT(*) AS n
		FROM audit_records ` + clause + `
		GROUP BY condition
		ORDER BY n DESC, condition
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("history: top messages: %w", err)
	}
	defer rows.Close()

	var out []MessageCount
	for rows.Next() {
		var m MessageCount
		var kind string
		if err := rows.Scan(&m.Condition, &kind, &m.Count); err != nil {
			return nil, fmt.Errorf("history: top messages scan: %w", err)
		}
		m.Kind = model.RecordKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// TopModules returns modules ranked by attributed exception count.
func (s *Store) TopModules(limit int, opts QueryOpts) ([]ModuleCount, error) {
	if limit <= 0 {
		limit = model.DefaultTopN
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := where(opts, "kind = 'exception'", "module IS NOT NULL")
	query := `SELECT module, bool_or(third_party) AS third_party, COUNT(*) AS throws,
			COUNT(DISTINCT coalesce(namespace, '') || '.' || class || '.' || method) AS methods
		FROM audit_records ` + clause + `
		GROUP BY module
		ORDER BY throws DESC, module
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("history: top modules: %w", err)
	}
	defer rows.Close()

	var out []ModuleCount
	for rows.Next() {
		var m ModuleCount
		if err := rows.Scan(&m.Module, &m.ThirdParty, &m.Throws, &m.Methods); err != nil {
			return nil, fmt.Errorf("history: top modules scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT run_id, MIN(recorded_at), MAX(recorded_at), COUNT(*),
			COUNT(*) FILTER (WHERE kind = 'exception')
		FROM audit_records
		GROUP BY run_id
		ORDER BY MIN(recorded_at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Started, &r.Ended, &r.Records, &r.Throws); err != nil {
			return nil, fmt.Errorf("history: runs scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteBefore removes rows recorded before cutoff and returns how many.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	ctx, cancel := s.queryCtx()
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM audit_records WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: delete before: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: rows affected: %w", err)
	}
	return n, nil
}
