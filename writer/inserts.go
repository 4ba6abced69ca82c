package writer

import (
	"context"
	"fmt"

	"marketstore/models"
	"marketstore/schema"
)

// rowInserter abstracts the single-row insert primitives so tests can
// capture statements without a live database.
type rowInserter interface {
	InsertBar(ctx context.Context, tx Tx, row models.Row, symbolID int64) error
	InsertTick(ctx context.Context, tx Tx, row models.Row, symbolID int64) error
}

type sqlInserter struct{}

const insertBarSQL = `
	INSERT INTO bars (datetime, symbol_id, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (datetime, symbol_id) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume
	RETURNING id`

func (sqlInserter) InsertBar(ctx context.Context, tx Tx, row models.Row, symbolID int64) error {
	var barID int64
	err := tx.QueryRow(ctx, insertBarSQL,
		row["timestamp"], symbolID,
		row["open"], row["high"], row["low"], row["close"], asInt(row["volume"]),
	).Scan(&barID)
	if err != nil {
		return fmt.Errorf("insert bar: %w", err)
	}
	return insertGreeks(ctx, tx, row, symbolID, "bar_id", barID)
}

const insertTickSQL = `
	INSERT INTO ticks (datetime, symbol_id, bid, bidsize, ask, asksize, last, lastsize)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id`

func (sqlInserter) InsertTick(ctx context.Context, tx Tx, row models.Row, symbolID int64) error {
	var tickID int64
	err := tx.QueryRow(ctx, insertTickSQL,
		row["timestamp"], symbolID,
		row["bid"], asInt(row["bidsize"]),
		row["ask"], asInt(row["asksize"]),
		row["last"], asInt(row["lastsize"]),
	).Scan(&tickID)
	if err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return insertGreeks(ctx, tx, row, symbolID, "tick_id", tickID)
}

// insertGreeks persists the option fields of a row, when it has any,
// referencing the parent bar or tick.
func insertGreeks(ctx context.Context, tx Tx, row models.Row, symbolID int64, parentCol string, parentID int64) error {
	if !hasOptionData(row) {
		return nil
	}
	stmt := fmt.Sprintf(`
		INSERT INTO greeks (symbol_id, %s, price, underlying, dividend, volume, iv, oi, delta, gamma, vega, theta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, parentCol)
	_, err := tx.Exec(ctx, stmt,
		symbolID, parentID,
		row["opt_price"], row["opt_underlying"], row["opt_dividend"], asInt(row["opt_volume"]),
		row["opt_iv"], row["opt_oi"],
		row["opt_delta"], row["opt_gamma"], row["opt_vega"], row["opt_theta"],
	)
	if err != nil {
		return fmt.Errorf("insert greeks: %w", err)
	}
	return nil
}

func hasOptionData(row models.Row) bool {
	for _, name := range schema.OptionColumns() {
		if row[name] != nil {
			return true
		}
	}
	return false
}

// asInt coerces float cells into integers for count columns, passing
// nil and already-integer values through.
func asInt(v any) any {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int:
		return int64(x)
	default:
		return v
	}
}
