package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"

	"github.com/adnansarkar/revmig/internal/config"
)

// Supported dialects. The driver name registered by glebarez/go-sqlite is
// "sqlite"; go-sql-driver registers "mysql".
const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// Open connects to the store described by the configuration and verifies
// the connection with a short ping.
func Open(cfg *config.Config) (*Store, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case DialectMySQL:
		dsn = withParseTime(dsn)
	case DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Driver, err)
	}
	return New(db, cfg.Table, cfg.Driver), nil
}

// withParseTime makes sure the MySQL driver returns time.Time values.
func withParseTime(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "parsetime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
