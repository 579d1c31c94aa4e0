package progress

import (
	"github.com/shopspring/decimal"
)

var (
	basisPointsPerYear = decimal.NewFromInt(10_000 * 365)

	// BaseFeeRate and CorridorPremiumRate are the remittance fee components.
	BaseFeeRate         = decimal.RequireFromString("0.005")
	CorridorPremiumRate = decimal.RequireFromString("0.0025")
)

// ProjectedYield estimates simple (non-compounding) yield for amount held
// days in a pool paying apyBasisPoints.
func ProjectedYield(apyBasisPoints int, amount decimal.Decimal, days int) decimal.Decimal {
	if apyBasisPoints <= 0 || days <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}
	daily := amount.Mul(decimal.NewFromInt(int64(apyBasisPoints))).Div(basisPointsPerYear)
	return daily.Mul(decimal.NewFromInt(int64(days))).Round(7)
}

// TransferQuote is the fee breakdown of a remittance.
type TransferQuote struct {
	Amount   decimal.Decimal `json:"amount"`
	Fees     decimal.Decimal `json:"fees"`
	Net      decimal.Decimal `json:"net"`
	Rate     decimal.Decimal `json:"rate"`
	Received decimal.Decimal `json:"received"`
}

// QuoteTransfer applies the base fee and corridor premium and converts the
// remainder at rate.
func QuoteTransfer(amount, rate decimal.Decimal) TransferQuote {
	if !amount.IsPositive() {
		return TransferQuote{Amount: amount, Fees: decimal.Zero, Net: decimal.Zero, Rate: rate, Received: decimal.Zero}
	}
	fees := amount.Mul(BaseFeeRate).Round(7).Add(amount.Mul(CorridorPremiumRate).Round(7))
	net := amount.Sub(fees)
	return TransferQuote{
		Amount:   amount,
		Fees:     fees,
		Net:      net,
		Rate:     rate,
		Received: net.Mul(rate).Round(7),
	}
}
