package models

// Instrument identifies a tradeable contract before resolution.
// Symbol alone is enough for equities; derivatives also carry expiry,
// strike and right.
type Instrument struct {
	Symbol   string
	SecType  AssetClass
	Exchange string
	Currency string
	Expiry   string  // YYYYMMDD
	Strike   float64 // options only
	Right    string  // "C" or "P", options only
}

// ContractDetails is the resolved, immutable identity of an
// instrument: the canonical contract string plus the asset class and
// instrument family derived from it.
type ContractDetails struct {
	Symbol      string
	AssetClass  AssetClass
	SymbolGroup string
}
