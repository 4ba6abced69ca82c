package writer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"marketstore/config"
	"marketstore/models"
	"marketstore/schema"
)

type fakeRow struct{}

func (fakeRow) Scan(dest ...any) error { return nil }

type fakeTx struct {
	commitErr  error
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{}
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.rolledBack = true
	return nil
}

type fakeConn struct {
	txs       []*fakeTx
	execs     []string
	commitErr map[int]error // transaction ordinal -> forced commit failure
	closed    bool
}

func (c *fakeConn) Begin(ctx context.Context) (Tx, error) {
	tx := &fakeTx{commitErr: c.commitErr[len(c.txs)]}
	c.txs = append(c.txs, tx)
	return tx, nil
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, sql)
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

type fakeRegistry struct {
	resolved []string
	ids      map[string]int64
}

func (r *fakeRegistry) ResolveID(ctx context.Context, tx Tx, symbol string) (int64, error) {
	r.resolved = append(r.resolved, symbol)
	if id, ok := r.ids[symbol]; ok {
		return id, nil
	}
	return int64(len(r.resolved)), nil
}

type insertedRow struct {
	kind     string
	symbolID int64
	record   models.Row
}

type fakeInserter struct {
	rows []insertedRow
	err  error
}

func (f *fakeInserter) InsertBar(ctx context.Context, tx Tx, record models.Row, symbolID int64) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, insertedRow{kind: "bar", symbolID: symbolID, record: record})
	return nil
}

func (f *fakeInserter) InsertTick(ctx context.Context, tx Tx, record models.Row, symbolID int64) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, insertedRow{kind: "tick", symbolID: symbolID, record: record})
	return nil
}

func testConfig(skip bool) *config.Config {
	cfg := &config.Config{}
	cfg.Backends = map[string]config.BackendConfig{
		"primary": {
			Enabled:   true,
			Host:      "localhost",
			Port:      5432,
			User:      "trader",
			Name:      "marketdata",
			SkipStore: skip,
		},
	}
	return cfg
}

func testWriter(cfg *config.Config, conn *fakeConn, reg *fakeRegistry, ins *fakeInserter) (*Writer, *int) {
	connects := 0
	w := New(cfg, nil)
	w.registry = reg
	w.inserter = ins
	w.connect = func(ctx context.Context, target *config.StorageTarget) (Conn, error) {
		connects++
		return conn, nil
	}
	return w, &connects
}

func barTable(t *testing.T, symbols ...string) *models.Table {
	t.Helper()
	tb := models.NewTable("symbol", "symbol_group", "asset_class",
		"open", "high", "low", "close", "volume")
	for i, sym := range symbols {
		tb.Append(time.Date(2026, 1, 5, 14, 30+i, 0, 0, time.UTC), models.Row{
			"symbol": sym, "symbol_group": sym, "asset_class": "STK",
			"open": 1.0, "high": 1.2, "low": 0.9, "close": 1.1, "volume": 100.0,
		})
	}
	return tb
}

func TestStoreGroupsRowsPerSymbol(t *testing.T) {
	conn := &fakeConn{}
	reg := &fakeRegistry{ids: map[string]int64{"AAPL": 7}}
	ins := &fakeInserter{}
	w, _ := testWriter(testConfig(false), conn, reg, ins)

	tbl := barTable(t, "AAPL", "AAPL", "MSFT")
	if err := w.Store(context.Background(), tbl, models.KindBar, "primary"); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if len(reg.resolved) != 2 {
		t.Errorf("symbol lookups = %v, want one per symbol", reg.resolved)
	}
	if len(conn.txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(conn.txs))
	}
	for i, tx := range conn.txs {
		if !tx.committed {
			t.Errorf("transaction %d not committed", i)
		}
	}
	if len(ins.rows) != 3 {
		t.Fatalf("inserted rows = %d, want 3", len(ins.rows))
	}
	if ins.rows[0].symbolID != 7 || ins.rows[1].symbolID != 7 {
		t.Errorf("AAPL rows used ids %d/%d, want 7", ins.rows[0].symbolID, ins.rows[1].symbolID)
	}
	if !conn.closed {
		t.Errorf("connection left open")
	}
}

func TestStoreFormatsTimestamps(t *testing.T) {
	conn := &fakeConn{}
	ins := &fakeInserter{}
	w, _ := testWriter(testConfig(false), conn, &fakeRegistry{}, ins)

	if err := w.Store(context.Background(), barTable(t, "AAPL"), models.KindBar, "primary"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got := ins.rows[0].record["timestamp"]
	if got != "2026-01-05 14:30:00" {
		t.Errorf("timestamp = %v", got)
	}
}

func TestStoreSkipStoreNeverConnects(t *testing.T) {
	conn := &fakeConn{}
	w, connects := testWriter(testConfig(true), conn, &fakeRegistry{}, &fakeInserter{})

	err := w.Store(context.Background(), barTable(t, "AAPL"), models.KindBar, "primary")
	var derr *BackendDisabledError
	if !errors.As(err, &derr) {
		t.Fatalf("expected BackendDisabledError, got %v", err)
	}
	if derr.Backend != "primary" {
		t.Errorf("backend = %s", derr.Backend)
	}
	if *connects != 0 {
		t.Errorf("connected %d times despite skip_store", *connects)
	}
}

func TestStoreUnknownBackend(t *testing.T) {
	w, _ := testWriter(testConfig(false), &fakeConn{}, &fakeRegistry{}, &fakeInserter{})

	err := w.Store(context.Background(), barTable(t, "AAPL"), models.KindBar, "replica")
	var uerr *BackendUnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected BackendUnavailableError, got %v", err)
	}
}

func TestStoreConnectFailure(t *testing.T) {
	w := New(testConfig(false), nil)
	boom := errors.New("refused")
	w.connect = func(ctx context.Context, target *config.StorageTarget) (Conn, error) {
		return nil, boom
	}

	err := w.Store(context.Background(), barTable(t, "AAPL"), models.KindBar, "primary")
	var uerr *BackendUnavailableError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected BackendUnavailableError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestStoreCommitFailureKeepsEarlierSymbols(t *testing.T) {
	conn := &fakeConn{commitErr: map[int]error{1: errors.New("disk full")}}
	ins := &fakeInserter{}
	w, _ := testWriter(testConfig(false), conn, &fakeRegistry{}, ins)

	err := w.Store(context.Background(), barTable(t, "AAPL", "MSFT"), models.KindBar, "primary")
	var cerr *CommitError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CommitError, got %v", err)
	}
	if cerr.Symbol != "MSFT" {
		t.Errorf("failed symbol = %s", cerr.Symbol)
	}
	if !conn.txs[0].committed {
		t.Errorf("first symbol should remain committed")
	}
}

func TestStoreInsertFailureRollsBack(t *testing.T) {
	conn := &fakeConn{}
	ins := &fakeInserter{err: errors.New("bad row")}
	w, _ := testWriter(testConfig(false), conn, &fakeRegistry{}, ins)

	if err := w.Store(context.Background(), barTable(t, "AAPL"), models.KindBar, "primary"); err == nil {
		t.Fatalf("expected insert failure")
	}
	if !conn.txs[0].rolledBack {
		t.Errorf("transaction not rolled back")
	}
}

func TestPrepareCreatesSchema(t *testing.T) {
	conn := &fakeConn{}
	w, _ := testWriter(testConfig(false), conn, &fakeRegistry{}, &fakeInserter{})

	if err := w.Prepare(context.Background(), "primary"); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(conn.execs) == 0 {
		t.Fatalf("no DDL executed")
	}
	if !strings.Contains(conn.execs[0], "CREATE TABLE IF NOT EXISTS symbols") {
		t.Errorf("first statement = %s", conn.execs[0])
	}
	if !conn.closed {
		t.Errorf("connection left open")
	}
}

func TestPrepareSkipsDisabledBackend(t *testing.T) {
	w, connects := testWriter(testConfig(true), &fakeConn{}, &fakeRegistry{}, &fakeInserter{})

	if err := w.Prepare(context.Background(), "primary"); err != nil {
		t.Fatalf("Prepare on skip_store backend: %v", err)
	}
	if *connects != 0 {
		t.Errorf("connected despite skip_store")
	}
}

func TestStoreRejectsTableWithoutSymbolColumn(t *testing.T) {
	conn := &fakeConn{}
	ins := &fakeInserter{}
	w, connects := testWriter(testConfig(false), conn, &fakeRegistry{}, ins)

	// Validates for BAR (asset_class plus OHLCV) but carries no symbol
	// descriptor to group rows by.
	tb := models.NewTable("asset_class", "open", "high", "low", "close", "volume")
	tb.Append(time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC), models.Row{
		"asset_class": "STK",
		"open":        1.0, "high": 1.2, "low": 0.9, "close": 1.1, "volume": 100.0,
	})

	err := w.Store(context.Background(), tb, models.KindBar, "primary")
	var missing *schema.MissingDescriptorError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingDescriptorError, got %v", err)
	}
	if missing.Column != models.ColSymbol {
		t.Errorf("reported column = %s", missing.Column)
	}
	if *connects != 0 {
		t.Errorf("connected despite missing symbol column")
	}
	if len(ins.rows) != 0 {
		t.Errorf("rows inserted: %d", len(ins.rows))
	}
}

func TestStoreRejectsInvalidTable(t *testing.T) {
	conn := &fakeConn{}
	w, connects := testWriter(testConfig(false), conn, &fakeRegistry{}, &fakeInserter{})

	bad := models.NewTable("symbol", "open")
	bad.Append(time.Now(), models.Row{"symbol": "AAPL", "open": 1.0})
	if err := w.Store(context.Background(), bad, models.KindBar, "primary"); err == nil {
		t.Fatalf("expected validation failure")
	}
	if *connects != 0 {
		t.Errorf("connected despite invalid table")
	}
}
