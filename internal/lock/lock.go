// Package lock serializes migration sessions against a shared target
// store. Concurrent runners would interleave schema changes, so exactly
// one session may hold the lock at a time.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Locker guards one migration session.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) error
	Release(ctx context.Context) error
}

// MySQL is an advisory lock using GET_LOCK/RELEASE_LOCK on a dedicated
// connection, so the lock survives for exactly as long as the session.
type MySQL struct {
	db   *sql.DB
	conn *sql.Conn
	key  string
	held bool
}

func NewMySQL(db *sql.DB, key string) *MySQL {
	return &MySQL{db: db, key: key}
}

func (m *MySQL) Acquire(ctx context.Context, timeout time.Duration) error {
	if m.held {
		return nil
	}
	var err error
	m.conn, err = m.db.Conn(ctx)
	if err != nil {
		return err
	}
	row := m.conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", m.key, int(timeout.Seconds()))
	var got sql.NullInt64
	if err := row.Scan(&got); err != nil {
		_ = m.conn.Close()
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		_ = m.conn.Close()
		return errors.New("failed to acquire advisory lock (timeout or error)")
	}
	m.held = true
	return nil
}

func (m *MySQL) Release(ctx context.Context) error {
	if !m.held || m.conn == nil {
		return nil
	}
	row := m.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", m.key)
	var rel sql.NullInt64
	_ = row.Scan(&rel) // do not fail on release
	m.held = false
	return m.conn.Close()
}

func (m *MySQL) Key() string { return m.key }

// Noop is used for stores with no advisory-lock facility. SQLite databases
// are single files guarded by OS-level locking, which is enough for the
// one-writer discipline migrations need.
type Noop struct{}

func (Noop) Acquire(context.Context, time.Duration) error { return nil }
func (Noop) Release(context.Context) error                { return nil }

// ForDriver picks the locker matching the store driver.
func ForDriver(driver string, db *sql.DB, key string) Locker {
	if driver == "mysql" {
		return NewMySQL(db, key)
	}
	return Noop{}
}

// KeyFor derives a lock name scoped to one database and tracking table.
func KeyFor(database, table string) string {
	return fmt.Sprintf("revmig:%s:%s", database, table)
}
