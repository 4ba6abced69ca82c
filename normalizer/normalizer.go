package normalizer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"marketstore/internal/symbols"
	"marketstore/internal/timezone"
	"marketstore/logger"
	"marketstore/models"
	"marketstore/schema"
)

// Resolver yields the canonical identity of an instrument. The
// default implementation lives in internal/symbols; tests and callers
// with broker connections can substitute their own.
type Resolver interface {
	Resolve(inst models.Instrument) (models.ContractDetails, error)
}

// Options tune a PrepareData call. The zero value means BAR data,
// default column mapping, original index, no file output.
type Options struct {
	// Kind declares BAR or TICK data. Empty defaults to BAR.
	Kind models.Kind

	// Index overrides the source table's timestamps.
	Index []time.Time

	// ColumnMap maps canonical field names to source column names.
	// Entries are merged over the defaults; explicit entries win.
	ColumnMap map[string]string

	// OutputDir, when set, materializes the normalized table as
	// <dir>/<canonical_symbol>.csv, overwriting any prior file.
	OutputDir string

	// OptionFill is the neutral value injected for option fields the
	// source never carried.
	OptionFill float64

	Resolver Resolver
	Log      *logger.Log
}

// PrepareData converts an arbitrary source table into strict
// canonical form for the given instrument: descriptor columns
// stamped, source columns validated and renamed, extraneous columns
// pruned, index converted to UTC. The source table is never mutated.
func PrepareData(inst models.Instrument, src *models.Table, opts Options) (*models.Table, error) {
	log := opts.Log
	if log == nil {
		log = logger.GetLogger()
	}
	kind := opts.Kind
	if kind == "" {
		kind = models.KindBar
	}
	var resolver Resolver = symbols.Resolver{}
	if opts.Resolver != nil {
		resolver = opts.Resolver
	}

	t := src.Copy()
	colmap := schema.ForKind(kind).Merge(opts.ColumnMap)

	details, err := resolver.Resolve(inst)
	if err != nil {
		return nil, fmt.Errorf("resolve instrument: %w", err)
	}

	t.SetConst(models.ColSymbol, details.Symbol)
	t.SetConst(models.ColSymbolGroup, details.SymbolGroup)
	t.SetConst(models.ColAssetClass, string(details.AssetClass))

	if err := schema.ValidateMapped(t, kind, colmap); err != nil {
		return nil, err
	}

	t.Rename(colmap.Renames())

	if details.AssetClass == models.AssetOption {
		schema.ForceOptionColumns(t, opts.OptionFill)
	}

	descriptors := []string{models.ColSymbol, models.ColSymbolGroup, models.ColAssetClass}
	keep := append(descriptors, colmap.Names()...)
	t.Keep(keep)
	t.Reorder(keep)

	if opts.Index != nil {
		if err := t.SetIndex(opts.Index); err != nil {
			return nil, err
		}
	}
	timezone.ToUTC(t)

	if err := schema.ValidateColumns(t, kind); err != nil {
		return nil, err
	}

	if opts.OutputDir != "" {
		if err := writeCSV(t, opts.OutputDir, details.Symbol); err != nil {
			return nil, err
		}
		log.WithComponent("normalizer").WithFields(logger.Fields{
			"symbol": details.Symbol,
			"rows":   t.Len(),
			"dir":    opts.OutputDir,
		}).Info("normalized data written")
	}

	log.WithComponent("normalizer").WithFields(logger.Fields{
		"symbol":      details.Symbol,
		"asset_class": string(details.AssetClass),
		"kind":        string(kind),
		"rows":        t.Len(),
	}).Debug("table normalized")

	return t, nil
}

func writeCSV(t *models.Table, dir, symbol string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, symbol+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
