package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Config struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	MaxOpenConns int           `split_words:"true" default:"10"`
	Timeout      time.Duration `split_words:"true" default:"5s"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// Open connects to Postgres through pgdriver and verifies the connection.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(timeout),
	))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func MustOpen(ctx context.Context, cfg Config) *bun.DB {
	db, err := Open(ctx, cfg)
	if err != nil {
		panic(err)
	}
	return db
}
