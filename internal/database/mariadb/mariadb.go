// Package mariadb reads the campus directory of people and laboratories.
// The directory is owned by another system; this package never writes to it.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Pool is a small read-only connection pool to the directory database.
type Pool struct {
	db *sql.DB
}

// directoryConfig parses dsn and applies the timeouts the directory lookups
// rely on. Values already present in the DSN win.
func directoryConfig(dsn string) (*mysql.Config, error) {
	if dsn == "" {
		return nil, errors.New("directory DSN is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse directory DSN: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	cfg.ParseTime = true
	return cfg, nil
}

// Open connects to the directory and verifies it answers.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := directoryConfig(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create directory connector: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping directory: %w", err)
	}
	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("close directory: %w", err)
	}
	return nil
}
