// Package store is the SQL executor: it dispatches migration statements to
// the target database and persists applied-migration names in a tracking
// table keyed by name.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/adnansarkar/revmig/internal/catalog"
)

// Store executes migration scripts over database/sql and owns the
// tracking table.
type Store struct {
	DB      *sql.DB
	Table   string
	Dialect string // mysql | sqlite
}

// New wraps an existing connection. Open is the usual entry point; New
// exists for tests and embedding.
func New(db *sql.DB, table, dialect string) *Store {
	return &Store{DB: db, Table: table, Dialect: dialect}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// EnsureTable creates the tracking table if it does not exist yet.
func (s *Store) EnsureTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name VARCHAR(255) NOT NULL, PRIMARY KEY (name))`, s.Table)
	if _, err := s.DB.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure tracking table %s: %w", s.Table, err)
	}
	return nil
}

// Apply runs the up section of a migration, starting at statement pos.
func (s *Store) Apply(ctx context.Context, m *catalog.Migration, pos int, atomic bool) error {
	script, err := m.Load()
	if err != nil {
		return err
	}
	return s.execute(ctx, m.Name, script.Up, pos, atomic)
}

// Revert runs the down section of a migration, starting at statement pos.
func (s *Store) Revert(ctx context.Context, m *catalog.Migration, pos int, atomic bool) error {
	script, err := m.Load()
	if err != nil {
		return err
	}
	if len(script.Down) == 0 {
		return fmt.Errorf("%s has no down section", m.Filename)
	}
	return s.execute(ctx, m.Name, script.Down, pos, atomic)
}

func (s *Store) execute(ctx context.Context, name string, stmts []string, pos int, atomic bool) error {
	if pos < 0 || pos >= len(stmts) {
		return fmt.Errorf("%s: start position %d out of range, script has %d statements", name, pos, len(stmts))
	}
	stmts = stmts[pos:]

	if !atomic {
		for i, q := range stmts {
			if _, err := s.DB.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("%s statement %d: %w", name, pos+i, err)
			}
		}
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s statement %d: %w", name, pos+i, err)
		}
	}
	return tx.Commit()
}

// MarkApplied records a migration name in the tracking table. Re-marking
// an already recorded name is a no-op so an interrupted run can be retried.
func (s *Store) MarkApplied(ctx context.Context, name string) error {
	q := fmt.Sprintf(`INSERT IGNORE INTO %s (name) VALUES (?)`, s.Table)
	if s.Dialect == DialectSQLite {
		q = fmt.Sprintf(`INSERT OR IGNORE INTO %s (name) VALUES (?)`, s.Table)
	}
	if _, err := s.DB.ExecContext(ctx, q, name); err != nil {
		return fmt.Errorf("mark %s applied: %w", name, err)
	}
	return nil
}

// MarkReverted removes a migration name from the tracking table.
func (s *Store) MarkReverted(ctx context.Context, name string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, s.Table)
	if _, err := s.DB.ExecContext(ctx, q, name); err != nil {
		return fmt.Errorf("mark %s reverted: %w", name, err)
	}
	return nil
}

// ListApplied returns all recorded migration names.
func (s *Store) ListApplied(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`SELECT name FROM %s ORDER BY name`, s.Table))
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
