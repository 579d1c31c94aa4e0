// Package amount converts between human currency units and the integer
// fixed-point ledger units used by the Stellar contracts (scale 10^7).
//
// ToLedgerUnits rounds half away from zero, so a round trip through
// FromLedgerUnits can differ from the input by at most one ledger unit
// (1e-7). Inputs with seven or fewer fractional digits round-trip exactly.
package amount

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stellarsave/stellarsave/internal/model"
)

// Scale is the number of ledger units per whole currency unit.
const Scale int64 = 10_000_000

// Decimals is log10(Scale).
const Decimals = model.LedgerDecimals

var scale = decimal.NewFromInt(Scale)

// ToLedgerUnits converts a decimal amount into ledger units. Amounts whose
// units do not fit in an int64 are a VALIDATION_ERROR.
func ToLedgerUnits(d decimal.Decimal) (int64, error) {
	// decimal.Round rounds half away from zero.
	units := d.Mul(scale).Round(0)
	if !units.BigInt().IsInt64() {
		return 0, model.Validationf("amount", "amount %s is outside the ledger range", d.String()).
			WithDetail("max", model.MaxAmount.String())
	}
	return units.IntPart(), nil
}

// FromLedgerUnits converts ledger units back to a decimal amount.
func FromLedgerUnits(units int64) decimal.Decimal {
	return decimal.New(units, -Decimals)
}

// FromFloat converts a float to a decimal, rejecting NaN and infinities.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, model.Validationf("amount", "amount must be a finite number")
	}
	return decimal.NewFromFloat(f), nil
}

// FloatToLedgerUnits is ToLedgerUnits for float input.
func FloatToLedgerUnits(f float64) (int64, error) {
	d, err := FromFloat(f)
	if err != nil {
		return 0, err
	}
	return ToLedgerUnits(d)
}

// Parse reads a user-entered amount such as "1,250.50" or "50".
func Parse(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return decimal.Zero, model.Validationf("amount", "amount is required")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, model.Validationf("amount", "invalid amount %q", s)
	}
	return d, nil
}

var printer = message.NewPrinter(language.English)

// Format renders an amount with thousands grouping and two decimals,
// followed by the asset symbol when one is given: "1,250.50 XLM".
func Format(d decimal.Decimal, symbol string) string {
	f, _ := d.Round(2).Float64()
	out := printer.Sprintf("%.2f", f)
	if symbol == "" {
		return out
	}
	return out + " " + symbol
}
