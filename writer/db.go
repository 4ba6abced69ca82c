package writer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"marketstore/config"
)

// Tx is the transactional subset of pgx.Tx the writer needs. One
// transaction spans all rows of one symbol.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a single database connection held for the duration of one
// store call.
type Conn interface {
	Begin(ctx context.Context) (Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

type pgxConn struct {
	*pgx.Conn
}

func (c pgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.Conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Connect opens one connection to the given storage target.
func Connect(ctx context.Context, target *config.StorageTarget) (Conn, error) {
	conn, err := pgx.Connect(ctx, target.ConnString())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target.Backend, err)
	}
	return pgxConn{conn}, nil
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS symbols (
		id SERIAL PRIMARY KEY,
		symbol VARCHAR(64) NOT NULL UNIQUE,
		symbol_group VARCHAR(32) NOT NULL,
		asset_class VARCHAR(8) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bars (
		id BIGSERIAL PRIMARY KEY,
		datetime TIMESTAMP NOT NULL,
		symbol_id INTEGER NOT NULL REFERENCES symbols(id),
		open DOUBLE PRECISION,
		high DOUBLE PRECISION,
		low DOUBLE PRECISION,
		close DOUBLE PRECISION,
		volume BIGINT,
		UNIQUE (datetime, symbol_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ticks (
		id BIGSERIAL PRIMARY KEY,
		datetime TIMESTAMP NOT NULL,
		symbol_id INTEGER NOT NULL REFERENCES symbols(id),
		bid DOUBLE PRECISION,
		bidsize BIGINT,
		ask DOUBLE PRECISION,
		asksize BIGINT,
		last DOUBLE PRECISION,
		lastsize BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS ticks_datetime_symbol ON ticks (datetime, symbol_id)`,
	`CREATE TABLE IF NOT EXISTS greeks (
		id BIGSERIAL PRIMARY KEY,
		symbol_id INTEGER NOT NULL REFERENCES symbols(id),
		bar_id BIGINT REFERENCES bars(id),
		tick_id BIGINT REFERENCES ticks(id),
		price DOUBLE PRECISION,
		underlying DOUBLE PRECISION,
		dividend DOUBLE PRECISION,
		volume BIGINT,
		iv DOUBLE PRECISION,
		oi DOUBLE PRECISION,
		delta DOUBLE PRECISION,
		gamma DOUBLE PRECISION,
		vega DOUBLE PRECISION,
		theta DOUBLE PRECISION
	)`,
}

// EnsureSchema creates the storage tables when they do not exist yet.
func EnsureSchema(ctx context.Context, conn Conn) error {
	for _, stmt := range ddl {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
