// Package database opens the Postgres pool used by the repositories and keeps
// its schema current.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/aryan0dhankhar/teamtasks/internal/reliability/retry"
	"github.com/aryan0dhankhar/teamtasks/pkg/config"
)

const pingTimeout = 3 * time.Second

// Pool is an open, migrated Postgres handle
type Pool struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects with cfg, sizes the pool from it and, when cfg.AutoMigrate is
// set, applies pending migrations before returning. The first ping is retried
// so the server can start alongside a database that is still booting.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "database"))

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	p := &Pool{db: db, logger: logger}

	_, err = retry.Do(ctx, retry.DefaultConfig(), logger, "database_connect", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.Ping(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	if cfg.AutoMigrate {
		if err := p.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("database ready",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Name),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Bool("migrated", cfg.AutoMigrate),
	)
	return p, nil
}

// DB returns the underlying handle for the repositories
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Ping checks connectivity under a short deadline; /readyz calls it
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Close releases every pooled connection
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
