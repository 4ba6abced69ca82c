package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketstore/config"
	"marketstore/logger"
	"marketstore/models"
	"marketstore/schema"
)

// timestampLayout is the fixed precision rows are stored with.
const timestampLayout = "2006-01-02 15:04:05"

// Writer durably stores canonical market data tables, split per
// symbol so each symbol commits independently.
type Writer struct {
	cfg      *config.Config
	log      *logger.Log
	registry SymbolRegistry
	inserter rowInserter
	connect  func(ctx context.Context, target *config.StorageTarget) (Conn, error)
}

// New creates a Writer against the configured backends. A nil logger
// falls back to the process logger.
func New(cfg *config.Config, log *logger.Log) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{
		cfg:      cfg,
		log:      log,
		registry: Registry{},
		inserter: sqlInserter{},
		connect:  Connect,
	}
}

// Prepare creates the storage tables on the selected backend when they
// do not exist yet. Disabled backends are left untouched.
func (w *Writer) Prepare(ctx context.Context, backend string) error {
	target := w.cfg.DiscoverBackend(backend)
	if target == nil {
		return &BackendUnavailableError{Backend: backend}
	}
	if target.SkipStore {
		return nil
	}

	conn, err := w.connect(ctx, target)
	if err != nil {
		return &BackendUnavailableError{Backend: target.Backend, Err: err}
	}
	defer conn.Close(ctx)

	return EnsureSchema(ctx, conn)
}

// Store validates the table and persists every row into the active
// backend. Rows are grouped by symbol in first-encountered order;
// each group resolves its symbol identifier once and commits in its
// own transaction. A failed commit aborts the remaining symbols but
// never rolls back symbols already committed.
func (w *Writer) Store(ctx context.Context, t *models.Table, kind models.Kind, backend string) error {
	if kind == "" {
		kind = models.KindBar
	}
	if err := schema.ValidateColumns(t, kind); err != nil {
		return err
	}
	// The symbol descriptor drives row grouping; without it the store
	// would silently write nothing.
	if !t.HasColumn(models.ColSymbol) {
		return &schema.MissingDescriptorError{Column: models.ColSymbol}
	}

	target := w.cfg.DiscoverBackend(backend)
	if target == nil {
		return &BackendUnavailableError{Backend: backend}
	}
	if target.SkipStore {
		return &BackendDisabledError{Backend: target.Backend}
	}

	conn, err := w.connect(ctx, target)
	if err != nil {
		return &BackendUnavailableError{Backend: target.Backend, Err: err}
	}
	defer conn.Close(ctx)

	callID := uuid.New().String()
	log := w.log.WithComponent("writer").WithFields(logger.Fields{
		"call_id": callID,
		"backend": target.Backend,
		"kind":    string(kind),
	})

	for _, symbol := range t.Distinct(models.ColSymbol) {
		if err := w.storeSymbol(ctx, conn, t, kind, symbol); err != nil {
			log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Error("store failed")
			return err
		}
	}

	log.WithFields(logger.Fields{"rows": t.Len(), "symbols": len(t.Distinct(models.ColSymbol))}).Info("table stored")
	w.log.LogMetric("writer", "rows_stored", t.Len(), "counter", logger.Fields{"backend": target.Backend})
	return nil
}

// storeSymbol writes all rows of one symbol inside one transaction.
func (w *Writer) storeSymbol(ctx context.Context, conn Conn, t *models.Table, kind models.Kind, symbol string) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", symbol, err)
	}

	symbolID, err := w.registry.ResolveID(ctx, tx, symbol)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		if row[models.ColSymbol] != symbol {
			continue
		}
		record := recordFor(row, t.Time(i))
		if kind == models.KindTick {
			err = w.inserter.InsertTick(ctx, tx, record, symbolID)
		} else {
			err = w.inserter.InsertBar(ctx, tx, record, symbolID)
		}
		if err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("store %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &CommitError{Symbol: symbol, Err: err}
	}
	return nil
}

// recordFor copies a row and attaches its formatted timestamp,
// leaving the table untouched.
func recordFor(row models.Row, ts time.Time) models.Row {
	record := make(models.Row, len(row)+1)
	for k, v := range row {
		record[k] = v
	}
	record["timestamp"] = ts.UTC().Format(timestampLayout)
	return record
}
