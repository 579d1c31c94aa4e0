package amount

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/model"
)

func units(t *testing.T, d decimal.Decimal) int64 {
	t.Helper()
	u, err := ToLedgerUnits(d)
	require.NoError(t, err)
	return u
}

func TestToLedgerUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 10_000_000},
		{"50", 500_000_000},
		{"0.0000001", 1},
		{"1234.5678901", 12_345_678_901},
		{"0.00000005", 1}, // half rounds away from zero
		{"0.00000004", 0},
		{"-0.00000005", -1}, // and away from zero when negative
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, units(t, decimal.RequireFromString(tt.in)))
		})
	}
}

func TestToLedgerUnits_Range(t *testing.T) {
	assert.Equal(t, int64(math.MaxInt64), units(t, model.MaxAmount))
	assert.Equal(t, int64(math.MinInt64+1), units(t, model.MaxAmount.Neg()))

	over := []string{
		"922337203685.4775808",
		"922337203686",
		"-922337203686",
		"1e30",
	}
	for _, in := range over {
		_, err := ToLedgerUnits(decimal.RequireFromString(in))
		require.Error(t, err, in)
		assert.True(t, model.IsKind(err, model.KindValidationError), in)
	}

	_, err := FloatToLedgerUnits(1e300)
	assert.True(t, model.IsKind(err, model.KindValidationError))
}

func TestRoundTrip_SevenDigitsExact(t *testing.T) {
	inputs := []string{"0", "0.1", "12.3456789", "1000", "999999.9999999", "0.0000001"}
	for _, in := range inputs {
		d := decimal.RequireFromString(in)
		got := FromLedgerUnits(units(t, d))
		assert.True(t, got.Equal(d), "round trip of %s gave %s", in, got)
	}
}

func TestRoundTrip_ArbitraryWithinOneUnit(t *testing.T) {
	tolerance := decimal.New(1, -Decimals)
	inputs := []string{"0.123456789", "3.14159265358979", "100.00000006", "7.77777777777"}
	for _, in := range inputs {
		d := decimal.RequireFromString(in)
		got := FromLedgerUnits(units(t, d))
		assert.True(t, got.Sub(d).Abs().LessThanOrEqual(tolerance), "error for %s exceeds one ledger unit", in)
	}
}

func TestFromFloat_NonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := FromFloat(f)
		require.Error(t, err)
		assert.True(t, model.IsKind(err, model.KindValidationError))

		_, err = FloatToLedgerUnits(f)
		assert.True(t, model.IsKind(err, model.KindValidationError))
	}

	units, err := FloatToLedgerUnits(2.5)
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), units)
}

func TestParse(t *testing.T) {
	d, err := Parse(" 1,250.50 ")
	require.NoError(t, err)
	assert.Equal(t, "1250.5", d.String())

	_, err = Parse("")
	assert.True(t, model.IsKind(err, model.KindValidationError))

	_, err = Parse("twelve")
	assert.True(t, model.IsKind(err, model.KindValidationError))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "1,250.50 XLM", Format(decimal.RequireFromString("1250.5"), "XLM"))
	assert.Equal(t, "0.00", Format(decimal.Zero, ""))
	assert.Equal(t, "50.00 SAVE", Format(decimal.NewFromInt(50), "SAVE"))
}
