package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style currency code, always uppercase.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyMXN Currency = "MXN"
)

// MoneyScale is the number of decimal places every stored amount carries.
const MoneyScale = 3

// NormalizeCurrency trims and uppercases a raw currency code. It does not
// check membership in the supported set; see IsSupported.
func NormalizeCurrency(raw string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(raw)))
}

// IsSupported reports whether the currency belongs to the supported set.
// The code must already be normalized.
func (c Currency) IsSupported() bool {
	switch c {
	case CurrencyUSD, CurrencyMXN:
		return true
	}
	return false
}

// defaultRates holds the static exchange rates applied when a conversion
// carries no custom rate.
var defaultRates = map[[2]Currency]decimal.Decimal{
	{CurrencyUSD, CurrencyMXN}: decimal.RequireFromString("18.70"),
	{CurrencyMXN, CurrencyUSD}: decimal.RequireFromString("0.053"),
}

// DefaultRate returns the static rate for the given pair, or false when no
// default exists for it.
func DefaultRate(from, to Currency) (decimal.Decimal, bool) {
	rate, ok := defaultRates[[2]Currency{from, to}]
	return rate, ok
}

// ResolveRate picks the rate a conversion applies: the custom rate when one
// is given, otherwise the static default for the pair.
func ResolveRate(from, to Currency, custom *decimal.Decimal) (decimal.Decimal, bool) {
	if custom != nil {
		return *custom, true
	}
	return DefaultRate(from, to)
}
