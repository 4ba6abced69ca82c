package schema

import (
	"strings"

	"marketstore/models"
)

// MappedColumn pairs a canonical field name with the source column it
// is read from. The default maps are identity mappings; callers remap
// provider columns by overriding Source.
type MappedColumn struct {
	Name   string
	Source string
}

// ColumnMap is the ordered canonical field set for one data kind.
// Order is fixed and drives the column order of normalized output.
type ColumnMap []MappedColumn

// OptionPrefix marks fields that only derivative rows carry.
const OptionPrefix = "opt_"

// optionColumns is the derivative-only subset shared by both kinds.
var optionColumns = []string{
	"opt_price",
	"opt_underlying",
	"opt_dividend",
	"opt_volume",
	"opt_iv",
	"opt_oi",
	"opt_delta",
	"opt_gamma",
	"opt_vega",
	"opt_theta",
}

// Bars is the canonical column map for BAR data.
var Bars = identity(append([]string{
	"open",
	"high",
	"low",
	"close",
	"volume",
}, optionColumns...))

// Ticks is the canonical column map for TICK data.
var Ticks = identity(append([]string{
	"bid",
	"bidsize",
	"ask",
	"asksize",
	"last",
	"lastsize",
}, optionColumns...))

func identity(names []string) ColumnMap {
	m := make(ColumnMap, len(names))
	for i, n := range names {
		m[i] = MappedColumn{Name: n, Source: n}
	}
	return m
}

// ForKind returns the canonical map for the given kind. Anything that
// is not TICK is treated as BAR.
func ForKind(kind models.Kind) ColumnMap {
	if kind == models.KindTick {
		return Ticks
	}
	return Bars
}

// Merge overlays explicit canonical→source overrides on the map.
// Entries not present in the canonical set are ignored; the result is
// a fresh map and the receiver is untouched.
func (m ColumnMap) Merge(overrides map[string]string) ColumnMap {
	out := make(ColumnMap, len(m))
	copy(out, m)
	if len(overrides) == 0 {
		return out
	}
	for i, col := range out {
		if src, ok := overrides[col.Name]; ok && src != "" {
			out[i].Source = src
		}
	}
	return out
}

// Names returns the canonical field names in map order.
func (m ColumnMap) Names() []string {
	out := make([]string, len(m))
	for i, col := range m {
		out[i] = col.Name
	}
	return out
}

// Renames returns the source→canonical rename mapping.
func (m ColumnMap) Renames() map[string]string {
	out := make(map[string]string, len(m))
	for _, col := range m {
		if col.Source != col.Name {
			out[col.Source] = col.Name
		}
	}
	return out
}

// IsOptionColumn reports whether a canonical field belongs to the
// derivative-only subset.
func IsOptionColumn(name string) bool {
	return strings.HasPrefix(name, OptionPrefix)
}

// OptionColumns returns the derivative-only field names.
func OptionColumns() []string {
	return append([]string(nil), optionColumns...)
}
