package models

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// Kind distinguishes aggregated bar data from point-in-time tick data.
type Kind string

const (
	KindBar  Kind = "BAR"
	KindTick Kind = "TICK"
)

// AssetClass categorises an instrument and decides which canonical
// columns a table must carry.
type AssetClass string

const (
	AssetStock  AssetClass = "STK"
	AssetOption AssetClass = "OPT"
	AssetFuture AssetClass = "FUT"
	AssetCash   AssetClass = "CASH"
	AssetIndex  AssetClass = "IDX"
)

// Valid reports whether the asset class is one of the known values.
func (a AssetClass) Valid() bool {
	switch a {
	case AssetStock, AssetOption, AssetFuture, AssetCash, AssetIndex:
		return true
	}
	return false
}

// Descriptor columns stamped onto every normalized table, and the
// fixed name of the time index.
const (
	ColSymbol      = "symbol"
	ColSymbolGroup = "symbol_group"
	ColAssetClass  = "asset_class"
	IndexName      = "datetime"
)

// Row holds one observation keyed by column name. Field values are
// float64, descriptor values are strings; a nil value marks a cell
// with no data.
type Row map[string]any

// Table is a time-indexed table of market data rows. Column order is
// tracked explicitly so exports and inserts stay deterministic.
type Table struct {
	order []string
	index []time.Time
	rows  []Row
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{order: append([]string(nil), columns...)}
}

// Append adds one observation. Only declared columns are stored;
// missing cells default to nil.
func (t *Table) Append(ts time.Time, row Row) {
	r := make(Row, len(t.order))
	for _, col := range t.order {
		if v, ok := row[col]; ok {
			r[col] = v
		}
	}
	t.index = append(t.index, ts)
	t.rows = append(t.rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.order...)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.order {
		if col == name {
			return true
		}
	}
	return false
}

// Index returns the table's timestamps.
func (t *Table) Index() []time.Time {
	return append([]time.Time(nil), t.index...)
}

// SetIndex replaces the timestamps. The length must match the row count.
func (t *Table) SetIndex(index []time.Time) error {
	if len(index) != len(t.rows) {
		return fmt.Errorf("index length %d does not match %d rows", len(index), len(t.rows))
	}
	t.index = append([]time.Time(nil), index...)
	return nil
}

// MapIndex applies fn to every timestamp in place.
func (t *Table) MapIndex(fn func(time.Time) time.Time) {
	for i, ts := range t.index {
		t.index[i] = fn(ts)
	}
}

// Value returns the cell at row i for the named column.
func (t *Table) Value(i int, col string) any {
	return t.rows[i][col]
}

// Row returns the i-th row. The returned map aliases table storage.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Time returns the i-th timestamp.
func (t *Table) Time(i int) time.Time { return t.index[i] }

// Copy returns a deep copy; mutating the copy never touches the source.
func (t *Table) Copy() *Table {
	out := &Table{
		order: append([]string(nil), t.order...),
		index: append([]time.Time(nil), t.index...),
		rows:  make([]Row, len(t.rows)),
	}
	for i, r := range t.rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.rows[i] = nr
	}
	return out
}

// SetConst adds a column holding the same value in every row,
// replacing any existing column of that name.
func (t *Table) SetConst(name string, value any) {
	if !t.HasColumn(name) {
		t.order = append(t.order, name)
	}
	for _, r := range t.rows {
		r[name] = value
	}
}

// Set assigns a cell, declaring the column if needed.
func (t *Table) Set(i int, name string, value any) {
	if !t.HasColumn(name) {
		t.order = append(t.order, name)
	}
	t.rows[i][name] = value
}

// Rename renames columns according to the old→new mapping. Unknown
// names are ignored.
func (t *Table) Rename(mapping map[string]string) {
	for i, col := range t.order {
		if to, ok := mapping[col]; ok && to != col {
			t.order[i] = to
			for _, r := range t.rows {
				if v, exists := r[col]; exists {
					r[to] = v
					delete(r, col)
				}
			}
		}
	}
}

// Drop removes a column and its cells.
func (t *Table) Drop(name string) {
	kept := t.order[:0]
	for _, col := range t.order {
		if col != name {
			kept = append(kept, col)
		}
	}
	t.order = kept
	for _, r := range t.rows {
		delete(r, name)
	}
}

// Keep drops every column not in the given set.
func (t *Table) Keep(columns []string) {
	allowed := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		allowed[c] = struct{}{}
	}
	for _, col := range t.Columns() {
		if _, ok := allowed[col]; !ok {
			t.Drop(col)
		}
	}
}

// Reorder rearranges columns into the given order. Listed columns the
// table does not have are skipped; unlisted columns keep their
// relative order after the listed ones.
func (t *Table) Reorder(columns []string) {
	seen := make(map[string]struct{}, len(columns))
	next := make([]string, 0, len(t.order))
	for _, col := range columns {
		if t.HasColumn(col) {
			next = append(next, col)
			seen[col] = struct{}{}
		}
	}
	for _, col := range t.order {
		if _, ok := seen[col]; !ok {
			next = append(next, col)
		}
	}
	t.order = next
}

// Distinct returns the distinct non-nil string values of a column in
// first-encountered order.
func (t *Table) Distinct(name string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		s, ok := r[name].(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SortByIndex orders rows by ascending timestamp, preserving the
// relative order of equal timestamps.
func (t *Table) SortByIndex() {
	idx := make([]int, len(t.index))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.index[idx[a]].Before(t.index[idx[b]])
	})
	index := make([]time.Time, len(t.index))
	rows := make([]Row, len(t.rows))
	for i, j := range idx {
		index[i] = t.index[j]
		rows[i] = t.rows[j]
	}
	t.index = index
	t.rows = rows
}

// csvIndexLayout keeps the UTC offset in exported timestamps,
// e.g. "2016-01-04 00:00:00+00:00".
const csvIndexLayout = "2006-01-02 15:04:05-07:00"

// WriteCSV writes the table as delimited text with a header row. The
// index column comes first under the fixed "datetime" name.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{IndexName}, t.order...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, r := range t.rows {
		record[0] = t.index[i].Format(csvIndexLayout)
		for j, col := range t.order {
			record[j+1] = formatCell(r[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
