package symbols

import (
	"fmt"
	"math"
	"strings"

	"marketstore/models"
)

// Resolver derives the canonical contract string, asset class and
// symbol group for an instrument. It needs no market connection; the
// identity is computed from the instrument fields alone.
type Resolver struct{}

// Resolve validates the instrument and returns its resolved identity.
func (Resolver) Resolve(inst models.Instrument) (models.ContractDetails, error) {
	if strings.TrimSpace(inst.Symbol) == "" {
		return models.ContractDetails{}, fmt.Errorf("instrument has no symbol")
	}

	if inst.SecType == "" {
		inst = Parse(inst.Symbol)
	}
	if !inst.SecType.Valid() {
		return models.ContractDetails{}, fmt.Errorf("unknown security type %q for %s", inst.SecType, inst.Symbol)
	}

	if inst.SecType == models.AssetOption {
		if inst.Expiry == "" || inst.Strike <= 0 {
			return models.ContractDetails{}, fmt.Errorf("option %s needs expiry and strike", inst.Symbol)
		}
		right := strings.ToUpper(inst.Right)
		if right != "C" && right != "P" {
			return models.ContractDetails{}, fmt.Errorf("option %s has invalid right %q", inst.Symbol, inst.Right)
		}
		inst.Right = right
	}

	contract := ContractString(inst)
	return models.ContractDetails{
		Symbol:      contract,
		AssetClass:  AssetClassOf(contract),
		SymbolGroup: SymbolGroup(contract),
	}, nil
}

// Parse interprets a bare contract-style string as an instrument.
// "AAPL" is an equity, "EURUSD_CASH" a currency pair, "ESZ6_FUT" a
// future, "SPX_IDX" an index. Option strings carry expiry, right and
// a thousandths-scaled strike, e.g. "AAPL20261218C00150000_OPT".
func Parse(s string) models.Instrument {
	sym := strings.ToUpper(strings.TrimSpace(s))
	base, class := splitClass(sym)

	inst := models.Instrument{Symbol: base, SecType: class, Exchange: "SMART", Currency: "USD"}
	if class != models.AssetOption {
		return inst
	}

	// AAPL 20261218 C 00150000
	if len(base) > 17 {
		cut := len(base) - 17
		inst.Symbol = base[:cut]
		inst.Expiry = base[cut : cut+8]
		inst.Right = base[cut+8 : cut+9]
		var milli int64
		fmt.Sscanf(base[cut+9:], "%d", &milli)
		inst.Strike = float64(milli) / 1000
	}
	return inst
}

// ContractString builds the canonical contract string for an
// instrument. Equities are the bare symbol; every other class carries
// an underscore suffix naming it.
func ContractString(inst models.Instrument) string {
	sym := strings.ToUpper(inst.Symbol)
	switch inst.SecType {
	case models.AssetOption:
		strike := int64(math.Round(inst.Strike * 1000))
		return fmt.Sprintf("%s%s%s%08d_OPT", sym, inst.Expiry, inst.Right, strike)
	case models.AssetFuture:
		return sym + inst.Expiry + "_FUT"
	case models.AssetCash:
		return sym + "_CASH"
	case models.AssetIndex:
		return sym + "_IDX"
	default:
		return sym
	}
}

// AssetClassOf reads the asset class back out of a contract string.
// Strings without a recognised suffix are equities.
func AssetClassOf(contract string) models.AssetClass {
	_, class := splitClass(contract)
	return class
}

// SymbolGroup returns the instrument family: derivatives collapse to
// their underlying root so every contract on one underlying shares a
// group, everything else groups under its own symbol.
func SymbolGroup(contract string) string {
	base, class := splitClass(contract)
	switch class {
	case models.AssetOption, models.AssetFuture:
		return root(base)
	default:
		return base
	}
}

func splitClass(s string) (string, models.AssetClass) {
	if i := strings.LastIndex(s, "_"); i >= 0 {
		if class := models.AssetClass(s[i+1:]); class.Valid() {
			return s[:i], class
		}
	}
	return s, models.AssetStock
}

// root keeps the leading letters of a contract base, stripping expiry
// and strike digits.
func root(base string) string {
	for i, r := range base {
		if r >= '0' && r <= '9' {
			return base[:i]
		}
	}
	return base
}
