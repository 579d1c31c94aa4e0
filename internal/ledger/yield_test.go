package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarsave/stellarsave/internal/model"
)

func (f *fixture) createPool(t *testing.T, lockDays int) string {
	t.Helper()
	rcpt, err := f.contracts.CreatePool(context.Background(), model.CreatePoolRequest{
		Admin:          DefaultAdmin,
		Name:           "Naira corridor",
		BaseCurrency:   "USDC",
		TargetCurrency: "NGN",
		APYBasisPoints: 800,
		MinDeposit:     dec("10"),
		MaxDeposit:     dec("5000"),
		LockDays:       lockDays,
	})
	require.NoError(t, err)
	return rcpt.ID
}

func (f *fixture) deposit(t *testing.T, user, pool, amt string, compound bool) error {
	t.Helper()
	_, err := f.contracts.Deposit(context.Background(), model.DepositRequest{
		User: user, PoolID: pool, Amount: dec(amt), AutoCompound: compound,
	})
	return err
}

func TestCreatePool_AdminOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.contracts.CreatePool(context.Background(), model.CreatePoolRequest{
		Admin: "GALICE", Name: "Nope", BaseCurrency: "USDC", TargetCurrency: "NGN",
		MinDeposit: dec("1"), MaxDeposit: dec("2"),
	})
	assert.True(t, model.IsKind(err, model.KindUnauthorized))
}

func TestDeposit_LimitsAndPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.createPool(t, 30)

	assert.True(t, model.IsKind(f.deposit(t, "GALICE", pool, "5", false), model.KindMinDepositNotMet))
	assert.True(t, model.IsKind(f.deposit(t, "GALICE", pool, "6000", false), model.KindMaxDepositExceeded))
	assert.True(t, model.IsKind(f.deposit(t, "GALICE", "42", "100", false), model.KindPoolNotFound))

	require.NoError(t, f.deposit(t, "GALICE", pool, "100", true))
	require.NoError(t, f.deposit(t, "GBOB", pool, "300", false))

	p, err := f.contracts.Pool(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, "US-NG", p.Corridor)
	assert.Equal(t, "400", p.TotalDeposited.String())
	assert.Equal(t, []string{"GALICE", "GBOB"}, p.Participants)
	assert.Equal(t, 30*24*time.Hour, p.LockDuration)

	positions, err := f.contracts.Positions(ctx, "GALICE")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, epoch.Add(30*24*time.Hour), positions[0].LockUntil)
	assert.True(t, positions[0].IsLocked(f.clock.Now()))
	assert.NotEmpty(t, positions[0].TransactionHash)

	tvl, err := f.contracts.TotalValueLocked(ctx)
	require.NoError(t, err)
	assert.Equal(t, "400", tvl.String())
}

func TestDistributeYield_ProRataWithCompounding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.createPool(t, 0)
	require.NoError(t, f.deposit(t, "GALICE", pool, "100", true))
	require.NoError(t, f.deposit(t, "GBOB", pool, "300", false))

	_, err := f.contracts.DistributeYield(ctx, "GALICE", pool, dec("40"))
	assert.True(t, model.IsKind(err, model.KindUnauthorized))

	_, err = f.contracts.DistributeYield(ctx, DefaultAdmin, pool, dec("40"))
	require.NoError(t, err)

	alice, err := f.contracts.Positions(ctx, "GALICE")
	require.NoError(t, err)
	assert.Equal(t, "10", alice[0].YieldEarned.String())
	assert.Equal(t, "110", alice[0].Principal.String())

	bob, err := f.contracts.Positions(ctx, "GBOB")
	require.NoError(t, err)
	assert.Equal(t, "30", bob[0].YieldEarned.String())
	assert.Equal(t, "300", bob[0].Principal.String())

	p, err := f.contracts.Pool(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, "410", p.TotalDeposited.String())
	assert.Equal(t, "40", p.TotalYieldEarned.String())
}

func TestProjectedYield(t *testing.T) {
	f := newFixture(t)
	pool := f.createPool(t, 0)

	y, err := f.contracts.ProjectedYield(context.Background(), pool, dec("3650"), 30)
	require.NoError(t, err)
	assert.Equal(t, "24", y.String(), "800bps on 3650 is 0.8/day")

	_, err = f.contracts.ProjectedYield(context.Background(), "9", dec("1"), 1)
	assert.True(t, model.IsKind(err, model.KindPoolNotFound))
}

func TestSendCrossBorder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rcpt, err := f.contracts.SendCrossBorder(ctx, model.SendCrossBorderRequest{
		Sender: "GALICE", Recipient: "+2348000000", FromCurrency: "USDC", ToCurrency: "NGN", Amount: dec("200"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1", rcpt.ID)

	list, err := f.contracts.Transfers(ctx, "GALICE")
	require.NoError(t, err)
	require.Len(t, list, 1)
	tr := list[0]
	assert.Equal(t, "1.5", tr.Fees.String())
	assert.Equal(t, "1", tr.ExchangeRate.String())
	assert.Equal(t, "US-NG", tr.Corridor)
	assert.Equal(t, "SSAVE1", tr.MoneyGramRef)
	assert.Equal(t, model.TransferPending, tr.Status)
	assert.Equal(t, rcpt.TransactionHash, tr.TransactionHash)
}

func TestSendCrossBorder_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	send := func(from, to, amt string) error {
		_, err := f.contracts.SendCrossBorder(ctx, model.SendCrossBorderRequest{
			Sender: "GALICE", Recipient: "r", FromCurrency: from, ToCurrency: to, Amount: dec(amt),
		})
		return err
	}

	assert.True(t, model.IsKind(send("USDC", "BTC", "10"), model.KindUnsupportedCorridor))
	assert.True(t, model.IsKind(send("EURC", "MXN", "10"), model.KindUnsupportedCorridor))
	assert.True(t, model.IsKind(send("USDC", "NGN", "10000.01"), model.KindComplianceError))
	assert.NoError(t, send("CAD", "JMD", "10000"))
}

func TestSendCrossBorder_FromYieldPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pool := f.createPool(t, 7)
	require.NoError(t, f.deposit(t, "GALICE", pool, "100", false))

	send := func(amt string) error {
		_, err := f.contracts.SendCrossBorder(ctx, model.SendCrossBorderRequest{
			Sender: "GALICE", Recipient: "r", FromCurrency: "USDC", ToCurrency: "KES",
			Amount: dec(amt), UseYieldPool: true,
		})
		return err
	}

	assert.True(t, model.IsKind(send("50"), model.KindPositionLocked))

	f.clock.Advance(8 * 24 * time.Hour)
	assert.True(t, model.IsKind(send("150"), model.KindInsufficientBalance))
	require.NoError(t, send("60"))

	positions, err := f.contracts.Positions(ctx, "GALICE")
	require.NoError(t, err)
	assert.Equal(t, "40", positions[0].Principal.String())

	list, err := f.contracts.Transfers(ctx, "GALICE")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].UseYieldPool)
}

func TestExchangeRate_DefaultAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rate, err := f.contracts.ExchangeRate(ctx, "USDC-PHP")
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())

	_, err = f.contracts.UpdateExchangeRate(ctx, "GALICE", "USDC-PHP", dec("56.1"))
	assert.True(t, model.IsKind(err, model.KindUnauthorized))

	_, err = f.contracts.UpdateExchangeRate(ctx, DefaultAdmin, "USDC-PHP", dec("56.1"))
	require.NoError(t, err)
	rate, err = f.contracts.ExchangeRate(ctx, "USDC-PHP")
	require.NoError(t, err)
	assert.Equal(t, "56.1", rate.String())

	corridors, err := f.contracts.Corridors(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultCorridors, corridors)
}
