package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"marketstore/internal/symbols"
)

// SymbolRegistry resolves the durable numeric identifier of a
// canonical symbol string, creating the record on first sight.
// Resolution is idempotent.
type SymbolRegistry interface {
	ResolveID(ctx context.Context, tx Tx, symbol string) (int64, error)
}

// Registry is the SQL-backed SymbolRegistry. New symbols are stored
// together with their symbol group and asset class, both derived from
// the canonical string.
type Registry struct{}

func (Registry) ResolveID(ctx context.Context, tx Tx, symbol string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM symbols WHERE symbol = $1`, symbol).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("lookup symbol %s: %w", symbol, err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO symbols (symbol, symbol_group, asset_class) VALUES ($1, $2, $3) RETURNING id`,
		symbol, symbols.SymbolGroup(symbol), string(symbols.AssetClassOf(symbol)),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("register symbol %s: %w", symbol, err)
	}
	return id, nil
}
