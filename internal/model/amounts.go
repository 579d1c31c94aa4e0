package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// LedgerDecimals is the number of fractional digits the ledger stores.
const LedgerDecimals = 7

// MaxAmount is the largest amount whose ledger units fit in an int64.
var MaxAmount = decimal.New(math.MaxInt64, -LedgerDecimals)

// CheckAmount rejects an amount the ledger cannot hold exactly: zero or
// negative, finer than one ledger unit, or above MaxAmount. what names the
// amount in the message, as in "contribution amount".
func CheckAmount(field, what string, d decimal.Decimal) error {
	if err := checkAmount(field, what, d); err != nil {
		return err
	}
	return nil
}

func checkAmount(field, what string, d decimal.Decimal) *Error {
	switch {
	case !d.IsPositive():
		return Validationf(field, "%s must be greater than zero", what)
	case !d.Equal(d.Truncate(LedgerDecimals)):
		return Validationf(field, "%s has more than %d decimal places", what, LedgerDecimals).
			WithDetail("amount", d.String())
	case d.GreaterThan(MaxAmount):
		return Validationf(field, "%s exceeds the maximum of %s", what, MaxAmount.String()).
			WithDetail("amount", d.String())
	}
	return nil
}
