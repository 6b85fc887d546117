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
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	DialTimeout  time.Duration `split_words:"true" default:"5s"`
	ReadTimeout  time.Duration `split_words:"true" default:"10s"`
	WriteTimeout time.Duration `split_words:"true" default:"10s"`
	MaxOpenConns int           `split_words:"true" default:"10"`
}

// Open builds a bun DB on pgdriver without touching the network.
func Open(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.DialTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.DialTimeout))
	}
	if cfg.ReadTimeout > 0 {
		opts = append(opts, pgdriver.WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		opts = append(opts, pgdriver.WithWriteTimeout(cfg.WriteTimeout))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Connect opens the DB and pings it.
func Connect(ctx context.Context, cfg Config) (*bun.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func MustConnect(ctx context.Context, cfg Config) *bun.DB {
	db, err := Connect(ctx, cfg)
	if err != nil {
		panic(err)
	}
	return db
}
