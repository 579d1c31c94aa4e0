package gateway

import "strings"

// Transaction types recorded on remittances.
const (
	TransactionYieldDeposit  = "yield_deposit"
	TransactionYieldWithdraw = "yield_withdraw"
	TransactionRemittanceOut = "remittance_out"
	TransactionRemittanceIn  = "remittance_in"
)

// UnknownCountry is the country code for currencies outside every corridor.
const UnknownCountry = "XX"

var currencyCountry = map[string]string{
	"USD":  "US",
	"USDC": "US",
	"EUR":  "EU",
	"EURC": "EU",
	"NGN":  "NG",
	"KES":  "KE",
	"MXN":  "MX",
	"PHP":  "PH",
	"INR":  "IN",
	"JMD":  "JM",
	"CAD":  "CA",
}

// Country maps a currency code to its corridor country.
func Country(currency string) string {
	if c, ok := currencyCountry[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return c
	}
	return UnknownCountry
}

// Corridor names the route between two currencies, e.g. "US-NG".
func Corridor(from, to string) string {
	return Country(from) + "-" + Country(to)
}

// CurrencyPair is the exchange-rate key for two currencies, e.g. "USDC-NGN".
func CurrencyPair(from, to string) string {
	return strings.ToUpper(strings.TrimSpace(from)) + "-" + strings.ToUpper(strings.TrimSpace(to))
}
