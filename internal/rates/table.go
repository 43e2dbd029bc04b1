// Package rates holds the reference index table used to resolve floating and
// hybrid interest rates. The table is read-only once built; callers inject it
// instead of reaching for a global so tests can substitute their own values.
package rates

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Index identifies a reference economic rate.
type Index string

const (
	IndexCDI   Index = "CDI"
	IndexSELIC Index = "SELIC"
	IndexIPCA  Index = "IPCA"
	IndexIGPM  Index = "IGPM"
)

// FallbackRate is returned by RateFor for codes missing from the table.
// TODO: fail loudly on unknown codes once stored assets have been audited for typos.
var FallbackRate = decimal.RequireFromString("0.10")

// defaultRates are annual rates expressed as fractions (0.13 == 13% a.a.).
var defaultRates = map[Index]decimal.Decimal{
	IndexCDI:   decimal.RequireFromString("0.13"),
	IndexSELIC: decimal.RequireFromString("0.12"),
	IndexIPCA:  decimal.RequireFromString("0.04"),
	IndexIGPM:  decimal.RequireFromString("0.06"),
}

// Table maps index codes to annual rates.
type Table struct {
	rates map[Index]decimal.Decimal
}

// Default returns a table with the built-in rates.
func Default() *Table {
	return NewTable(defaultRates)
}

// NewTable copies the given rates into a new Table. Negative rates are
// clamped to zero.
func NewTable(rates map[Index]decimal.Decimal) *Table {
	t := &Table{rates: make(map[Index]decimal.Decimal, len(rates))}
	for code, rate := range rates {
		if rate.IsNegative() {
			rate = decimal.Zero
		}
		t.rates[code] = rate
	}
	return t
}

// WithOverrides returns a copy of t where the given codes take new rates.
func (t *Table) WithOverrides(overrides map[Index]decimal.Decimal) *Table {
	merged := make(map[Index]decimal.Decimal, len(t.rates)+len(overrides))
	for code, rate := range t.rates {
		merged[code] = rate
	}
	for code, rate := range overrides {
		merged[code] = rate
	}
	return NewTable(merged)
}

// Lookup returns the configured rate and whether the code is known.
func (t *Table) Lookup(code Index) (decimal.Decimal, bool) {
	rate, ok := t.rates[code]
	return rate, ok
}

// RateFor returns the configured rate, or FallbackRate for unknown codes.
func (t *Table) RateFor(code Index) decimal.Decimal {
	if rate, ok := t.rates[code]; ok {
		return rate
	}
	return FallbackRate
}

// Known reports whether code is present in the table.
func (t *Table) Known(code Index) bool {
	_, ok := t.rates[code]
	return ok
}

// Codes returns the known index codes in lexical order.
func (t *Table) Codes() []Index {
	codes := make([]Index, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
