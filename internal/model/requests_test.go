package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"1", true},
		{"0.0000001", true},
		{"1.1234567", true},
		{"1.50000000", true}, // trailing zeros are not extra precision
		{"922337203685.4775807", true},
		{"0", false},
		{"-5", false},
		{"0.00000004", false},
		{"0.00000005", false},
		{"1.00000005", false},
		{"922337203685.4775808", false},
		{"1e20", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := CheckAmount("amount", "amount", dec(tt.in))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidationError))
		})
	}
}

func TestRequests_RejectAmountsOutsideLedgerRange(t *testing.T) {
	over := MaxAmount.Add(decimal.New(1, -LedgerDecimals))
	tiny := dec("0.00000004")

	challenge := func(goal, weekly decimal.Decimal) CreateChallengeRequest {
		return CreateChallengeRequest{
			Creator: "GALICE", Name: "Rainy day", GoalAmount: goal, WeeklyAmount: weekly, DurationWeeks: 4,
		}.Normalize()
	}
	pool := func(minDeposit, maxDeposit decimal.Decimal) CreatePoolRequest {
		return CreatePoolRequest{
			Admin: "GADMIN", Name: "USDC to MXN", BaseCurrency: "USDC", TargetCurrency: "MXN",
			MinDeposit: minDeposit, MaxDeposit: maxDeposit,
		}
	}

	tests := []struct {
		name  string
		err   error
		field string
	}{
		{"goal too large", challenge(over, dec("10")).Validate(), "goal_amount"},
		{"weekly too fine", challenge(dec("100"), dec("1.00000005")).Validate(), "weekly_amount"},
		{"contribution too large", ContributeRequest{ChallengeID: "1", Contributor: "GALICE", Amount: over}.Validate(), "amount"},
		{"contribution below one unit", ContributeRequest{ChallengeID: "1", Contributor: "GALICE", Amount: tiny}.Validate(), "amount"},
		{"deposit too large", DepositRequest{User: "GALICE", PoolID: "1", Amount: over}.Validate(), "amount"},
		{"deposit too fine", DepositRequest{User: "GALICE", PoolID: "1", Amount: dec("2.123456789")}.Validate(), "amount"},
		{"transfer too large", SendCrossBorderRequest{Sender: "GALICE", Recipient: "maria", FromCurrency: "USDC", ToCurrency: "MXN", Amount: over}.Validate(), "amount"},
		{"transfer below one unit", SendCrossBorderRequest{Sender: "GALICE", Recipient: "maria", FromCurrency: "USDC", ToCurrency: "MXN", Amount: tiny}.Validate(), "amount"},
		{"pool max too large", pool(dec("1"), over).Validate(), "max_deposit"},
		{"pool min too fine", pool(tiny, dec("100")).Validate(), "min_deposit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			e := AsError(tt.err)
			require.NotNil(t, e)
			assert.Equal(t, KindValidationError, e.Kind)
			assert.Equal(t, tt.field, e.Details["field"])
		})
	}

	assert.NoError(t, challenge(dec("1000"), dec("50")).Validate())
	assert.NoError(t, pool(decimal.Zero, dec("5000")).Validate())
	assert.NoError(t, ContributeRequest{ChallengeID: "1", Contributor: "GALICE", Amount: dec("0.0000001")}.Validate())
}
