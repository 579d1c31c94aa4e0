package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/model"
)

// Addresses are the deployed contract ids.
type Addresses struct {
	Savings     string `yaml:"savings" json:"savings"`
	RewardToken string `yaml:"reward_token" json:"reward_token"`
	CrossBorder string `yaml:"cross_border" json:"cross_border"`
}

// DefaultAddresses are the contract ids used by the fixture ledger.
var DefaultAddresses = Addresses{
	Savings:     "CSAVINGSCHALLENGE",
	RewardToken: "CSAVECOINTOKEN",
	CrossBorder: "CCROSSBORDERYIELD",
}

// Receipt identifies the outcome of a submitted mutation.
type Receipt struct {
	ID              string `json:"id,omitempty"`
	TransactionHash string `json:"transaction_hash"`
}

// Contracts is the typed client over a Gateway. All decimal amounts cross the
// boundary as ledger units.
type Contracts struct {
	gw        Gateway
	addr      Addresses
	preflight bool
	fanout    int
}

// ContractsOption configures Contracts.
type ContractsOption func(*Contracts)

// WithPreflight simulates every mutation before submitting it, so contract
// errors surface without a submitted transaction.
func WithPreflight(enabled bool) ContractsOption {
	return func(c *Contracts) { c.preflight = enabled }
}

// WithFanout bounds concurrent per-id reads (e.g. resolving a user's
// challenge ids). Defaults to 4.
func WithFanout(n int) ContractsOption {
	return func(c *Contracts) {
		if n > 0 {
			c.fanout = n
		}
	}
}

// NewContracts creates a typed client.
func NewContracts(gw Gateway, addr Addresses, opts ...ContractsOption) *Contracts {
	c := &Contracts{gw: gw, addr: addr, fanout: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addresses returns the contract ids in use.
func (c *Contracts) Addresses() Addresses {
	return c.addr
}

func (c *Contracts) query(ctx context.Context, contract string, method Method, args any, out any) error {
	res, err := c.gw.Invoke(ctx, Call{Contract: contract, Method: method, Args: args})
	if err != nil {
		return err
	}
	if err := res.Decode(out); err != nil {
		return model.WrapError(model.KindContractError, fmt.Sprintf("decode %s result", method), err)
	}
	return nil
}

func (c *Contracts) submit(ctx context.Context, contract string, method Method, args any) (Result, error) {
	if c.preflight {
		if _, err := c.gw.Invoke(ctx, Call{Contract: contract, Method: method, Args: args, Simulate: true}); err != nil {
			return Result{}, err
		}
	}
	return c.gw.Invoke(ctx, Call{Contract: contract, Method: method, Args: args})
}

// ParseID converts a client-facing id into the contract's u32 counter.
func ParseID(id string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil || n == 0 {
		return 0, model.Validationf("id", "invalid id %q", id).WithEntity(id)
	}
	return uint32(n), nil
}

// FormatID is the inverse of ParseID.
func FormatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// --- savings-challenge ---

// CreateChallenge submits a validated request. The receipt carries the new id.
func (c *Contracts) CreateChallenge(ctx context.Context, req model.CreateChallengeRequest) (Receipt, error) {
	goal, err := amount.ToLedgerUnits(req.GoalAmount)
	if err != nil {
		return Receipt{}, err
	}
	weekly, err := amount.ToLedgerUnits(req.WeeklyAmount)
	if err != nil {
		return Receipt{}, err
	}
	args := CreateChallengeArgs{
		Creator:              req.Creator,
		Name:                 req.Name,
		Description:          req.Description,
		GoalAmount:           goal,
		WeeklyAmount:         weekly,
		Participants:         req.Participants,
		DurationWeeks:        uint32(req.DurationWeeks),
		MinWeeklyRequired:    req.MinWeeklyRequired,
		AllowEarlyWithdrawal: req.AllowEarlyWithdrawal,
	}
	res, err := c.submit(ctx, c.addr.Savings, MethodCreateChallenge, args)
	if err != nil {
		return Receipt{}, err
	}
	var id uint32
	if err := res.Decode(&id); err != nil {
		return Receipt{}, model.WrapError(model.KindContractError, "decode challenge id", err)
	}
	return Receipt{ID: FormatID(id), TransactionHash: res.TransactionHash}, nil
}

// Contribute deposits into a challenge and returns the transaction hash.
func (c *Contracts) Contribute(ctx context.Context, req model.ContributeRequest) (string, error) {
	id, err := ParseID(req.ChallengeID)
	if err != nil {
		return "", err
	}
	units, err := amount.ToLedgerUnits(req.Amount)
	if err != nil {
		return "", err
	}
	res, err := c.submit(ctx, c.addr.Savings, MethodContribute, ContributeArgs{
		ChallengeID: id,
		Contributor: req.Contributor,
		Amount:      units,
	})
	if err != nil {
		return "", err
	}
	return res.TransactionHash, nil
}

// FinalizeChallenge closes a challenge.
func (c *Contracts) FinalizeChallenge(ctx context.Context, req model.FinalizeRequest) (string, error) {
	id, err := ParseID(req.ChallengeID)
	if err != nil {
		return "", err
	}
	res, err := c.submit(ctx, c.addr.Savings, MethodFinalizeChallenge, FinalizeArgs{ChallengeID: id, Finalizer: req.Finalizer})
	if err != nil {
		return "", err
	}
	return res.TransactionHash, nil
}

// Challenge fetches one challenge.
func (c *Contracts) Challenge(ctx context.Context, challengeID string) (model.Challenge, error) {
	id, err := ParseID(challengeID)
	if err != nil {
		return model.Challenge{}, err
	}
	var rec ChallengeRecord
	if err := c.query(ctx, c.addr.Savings, MethodGetChallenge, ChallengeArgs{ChallengeID: id}, &rec); err != nil {
		return model.Challenge{}, err
	}
	return c.challengeFromRecord(rec), nil
}

// UserChallenges resolves every challenge the user belongs to, in id order.
func (c *Contracts) UserChallenges(ctx context.Context, user string) ([]model.Challenge, error) {
	var ids []uint32
	if err := c.query(ctx, c.addr.Savings, MethodGetUserChallenges, UserArgs{User: user}, &ids); err != nil {
		return nil, err
	}

	out := make([]model.Challenge, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, id := range ids {
		g.Go(func() error {
			var rec ChallengeRecord
			if err := c.query(gctx, c.addr.Savings, MethodGetChallenge, ChallengeArgs{ChallengeID: id}, &rec); err != nil {
				return err
			}
			out[i] = c.challengeFromRecord(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Contributions lists a challenge's contributions in ledger order.
func (c *Contracts) Contributions(ctx context.Context, challengeID string) ([]model.Contribution, error) {
	id, err := ParseID(challengeID)
	if err != nil {
		return nil, err
	}
	var recs []ContributionRecord
	if err := c.query(ctx, c.addr.Savings, MethodGetContributions, ChallengeArgs{ChallengeID: id}, &recs); err != nil {
		return nil, err
	}
	out := make([]model.Contribution, 0, len(recs))
	for _, r := range recs {
		out = append(out, contributionFromRecord(r))
	}
	return out, nil
}

// ParticipantStats returns the contract's per-participant counters. Share is
// left for the caller, which knows the challenge total.
func (c *Contracts) ParticipantStats(ctx context.Context, challengeID, participant string) (model.ParticipantProgress, error) {
	id, err := ParseID(challengeID)
	if err != nil {
		return model.ParticipantProgress{}, err
	}
	var rec ParticipantStatsRecord
	if err := c.query(ctx, c.addr.Savings, MethodGetParticipantStats, ParticipantArgs{ChallengeID: id, Participant: participant}, &rec); err != nil {
		return model.ParticipantProgress{}, err
	}
	return model.ParticipantProgress{
		ChallengeID:       challengeID,
		Participant:       participant,
		TotalContributed:  amount.FromLedgerUnits(rec.TotalContributed),
		ContributionCount: int(rec.ContributionCount),
		LastContribution:  unixTime(rec.LastContribution),
		CurrentStreak:     int(rec.CurrentStreak),
		SharePercentage:   decimal.Zero,
	}, nil
}

func (c *Contracts) challengeFromRecord(r ChallengeRecord) model.Challenge {
	ch := model.Challenge{
		ID:                   FormatID(r.ID),
		Name:                 r.Name,
		Description:          r.Description,
		GoalAmount:           amount.FromLedgerUnits(r.GoalAmount),
		WeeklyAmount:         amount.FromLedgerUnits(r.WeeklyAmount),
		CurrentAmount:        amount.FromLedgerUnits(r.CurrentAmount),
		Participants:         append([]string(nil), r.Participants...),
		Creator:              r.Creator,
		CreatedAt:            unixTime(r.CreatedAt),
		Deadline:             unixTime(r.Deadline),
		IsActive:             r.IsActive,
		ContractAddress:      c.addr.Savings,
		MinWeeklyRequired:    r.MinWeeklyRequired,
		AllowEarlyWithdrawal: r.AllowEarlyWithdrawal,
	}
	ch.IsCompleted = ch.CurrentAmount.GreaterThanOrEqual(ch.GoalAmount)
	return ch
}

func contributionFromRecord(r ContributionRecord) model.Contribution {
	return model.Contribution{
		ChallengeID:     FormatID(r.ChallengeID),
		Contributor:     r.Contributor,
		Amount:          amount.FromLedgerUnits(r.Amount),
		Timestamp:       unixTime(r.Timestamp),
		TransactionHash: r.TransactionHash,
		WeekNumber:      int(r.WeekNumber),
	}
}

// --- reward-token ---

// Balance returns the user's SaveCoin balance.
func (c *Contracts) Balance(ctx context.Context, user string) (decimal.Decimal, error) {
	var units int64
	if err := c.query(ctx, c.addr.RewardToken, MethodGetBalance, UserArgs{User: user}, &units); err != nil {
		return decimal.Zero, err
	}
	return amount.FromLedgerUnits(units), nil
}

// RewardHistory lists the user's SaveCoin mints, oldest first.
func (c *Contracts) RewardHistory(ctx context.Context, user string) ([]model.RewardRecord, error) {
	var recs []RewardRecord
	if err := c.query(ctx, c.addr.RewardToken, MethodGetRewardHistory, UserArgs{User: user}, &recs); err != nil {
		return nil, err
	}
	out := make([]model.RewardRecord, 0, len(recs))
	for _, r := range recs {
		rr := model.RewardRecord{
			Recipient: r.Recipient,
			Amount:    amount.FromLedgerUnits(r.Amount),
			Type:      model.RewardType(r.RewardType),
			Timestamp: unixTime(r.Timestamp),
		}
		if r.ChallengeID != 0 {
			rr.ChallengeID = FormatID(r.ChallengeID)
		}
		out = append(out, rr)
	}
	return out, nil
}

// --- cross-border-yield ---

// CreatePool creates a yield pool. The corridor is derived from the
// currencies the same way the contract derives remittance corridors.
func (c *Contracts) CreatePool(ctx context.Context, req model.CreatePoolRequest) (Receipt, error) {
	minDeposit, err := amount.ToLedgerUnits(req.MinDeposit)
	if err != nil {
		return Receipt{}, err
	}
	maxDeposit, err := amount.ToLedgerUnits(req.MaxDeposit)
	if err != nil {
		return Receipt{}, err
	}
	res, err := c.submit(ctx, c.addr.CrossBorder, MethodCreateYieldPool, CreatePoolArgs{
		Admin:               req.Admin,
		Name:                strings.TrimSpace(req.Name),
		BaseCurrency:        req.BaseCurrency,
		TargetCurrency:      req.TargetCurrency,
		Corridor:            Corridor(req.BaseCurrency, req.TargetCurrency),
		APYBasisPoints:      uint32(req.APYBasisPoints),
		MinDeposit:          minDeposit,
		MaxDeposit:          maxDeposit,
		LockDuration:        uint64(req.LockDays) * 24 * 60 * 60,
		MoneyGramCorridorID: req.MoneyGramCorridorID,
	})
	if err != nil {
		return Receipt{}, err
	}
	var id uint32
	if err := res.Decode(&id); err != nil {
		return Receipt{}, model.WrapError(model.KindContractError, "decode pool id", err)
	}
	return Receipt{ID: FormatID(id), TransactionHash: res.TransactionHash}, nil
}

// Deposit adds funds to a pool.
func (c *Contracts) Deposit(ctx context.Context, req model.DepositRequest) (string, error) {
	id, err := ParseID(req.PoolID)
	if err != nil {
		return "", err
	}
	units, err := amount.ToLedgerUnits(req.Amount)
	if err != nil {
		return "", err
	}
	res, err := c.submit(ctx, c.addr.CrossBorder, MethodDepositToPool, DepositArgs{
		User:         req.User,
		PoolID:       id,
		Amount:       units,
		AutoCompound: req.AutoCompound,
	})
	if err != nil {
		return "", err
	}
	return res.TransactionHash, nil
}

// DistributeYield credits totalYield to a pool's positions pro rata (admin).
func (c *Contracts) DistributeYield(ctx context.Context, admin, poolID string, totalYield decimal.Decimal) (string, error) {
	id, err := ParseID(poolID)
	if err != nil {
		return "", err
	}
	units, err := amount.ToLedgerUnits(totalYield)
	if err != nil {
		return "", err
	}
	res, err := c.submit(ctx, c.addr.CrossBorder, MethodDistributeYield, DistributeYieldArgs{
		Admin:      admin,
		PoolID:     id,
		TotalYield: units,
	})
	if err != nil {
		return "", err
	}
	return res.TransactionHash, nil
}

// SendCrossBorder initiates a remittance. The receipt carries the transfer id.
func (c *Contracts) SendCrossBorder(ctx context.Context, req model.SendCrossBorderRequest) (Receipt, error) {
	units, err := amount.ToLedgerUnits(req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	res, err := c.submit(ctx, c.addr.CrossBorder, MethodSendCrossBorder, SendCrossBorderArgs{
		Sender:       req.Sender,
		ToAddress:    req.Recipient,
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Amount:       units,
		UseYieldPool: req.UseYieldPool,
	})
	if err != nil {
		return Receipt{}, err
	}
	var id uint32
	if err := res.Decode(&id); err != nil {
		return Receipt{}, model.WrapError(model.KindContractError, "decode transfer id", err)
	}
	return Receipt{ID: FormatID(id), TransactionHash: res.TransactionHash}, nil
}

// UpdateExchangeRate sets the rate for a currency pair (admin).
func (c *Contracts) UpdateExchangeRate(ctx context.Context, admin, pair string, rate decimal.Decimal) (string, error) {
	units, err := amount.ToLedgerUnits(rate)
	if err != nil {
		return "", err
	}
	res, err := c.submit(ctx, c.addr.CrossBorder, MethodUpdateExchangeRate, UpdateExchangeRateArgs{
		Admin:        admin,
		CurrencyPair: pair,
		NewRate:      units,
	})
	if err != nil {
		return "", err
	}
	return res.TransactionHash, nil
}

// Pool fetches one pool.
func (c *Contracts) Pool(ctx context.Context, poolID string) (model.YieldPool, error) {
	id, err := ParseID(poolID)
	if err != nil {
		return model.YieldPool{}, err
	}
	var rec PoolRecord
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetPool, PoolArgs{PoolID: id}, &rec); err != nil {
		return model.YieldPool{}, err
	}
	return poolFromRecord(rec), nil
}

// Pools lists every pool in id order.
func (c *Contracts) Pools(ctx context.Context) ([]model.YieldPool, error) {
	var recs []PoolRecord
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetPools, struct{}{}, &recs); err != nil {
		return nil, err
	}
	out := make([]model.YieldPool, 0, len(recs))
	for _, r := range recs {
		out = append(out, poolFromRecord(r))
	}
	return out, nil
}

// Positions lists the user's pool positions.
func (c *Contracts) Positions(ctx context.Context, user string) ([]model.YieldPosition, error) {
	var recs []PositionRecord
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetUserPositions, UserArgs{User: user}, &recs); err != nil {
		return nil, err
	}
	out := make([]model.YieldPosition, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.YieldPosition{
			User:            r.User,
			PoolID:          FormatID(r.PoolID),
			Principal:       amount.FromLedgerUnits(r.Principal),
			YieldEarned:     amount.FromLedgerUnits(r.YieldEarned),
			DepositedAt:     unixTime(r.DepositTimestamp),
			LastClaimAt:     unixTime(r.LastClaimTimestamp),
			LockUntil:       unixTime(r.LockUntil),
			AutoCompound:    r.AutoCompound,
			TransactionHash: r.TransactionHash,
		})
	}
	return out, nil
}

// Transfers lists the user's remittances, oldest first.
func (c *Contracts) Transfers(ctx context.Context, user string) ([]model.CrossBorderTransfer, error) {
	var recs []TransferRecord
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetUserTransfers, UserArgs{User: user}, &recs); err != nil {
		return nil, err
	}
	out := make([]model.CrossBorderTransfer, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.CrossBorderTransfer{
			ID:              FormatID(r.ID),
			From:            r.FromUser,
			To:              r.ToAddress,
			FromCurrency:    r.FromCurrency,
			ToCurrency:      r.ToCurrency,
			Amount:          amount.FromLedgerUnits(r.Amount),
			ExchangeRate:    amount.FromLedgerUnits(r.ExchangeRate),
			Fees:            amount.FromLedgerUnits(r.Fees),
			Corridor:        r.Corridor,
			UseYieldPool:    r.TransactionType == TransactionYieldWithdraw,
			Status:          model.TransferStatus(r.Status),
			Timestamp:       unixTime(r.Timestamp),
			MoneyGramRef:    r.MoneyGramRef,
			TransactionHash: r.TransactionHash,
		})
	}
	return out, nil
}

// ExchangeRate returns the rate for a pair such as "USDC-NGN".
func (c *Contracts) ExchangeRate(ctx context.Context, pair string) (decimal.Decimal, error) {
	var units int64
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetExchangeRate, ExchangeRateArgs{CurrencyPair: pair}, &units); err != nil {
		return decimal.Zero, err
	}
	return amount.FromLedgerUnits(units), nil
}

// Corridors lists the supported remittance corridors ("US-NG", ...).
func (c *Contracts) Corridors(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetCorridors, struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TotalValueLocked sums the principal held across all pools.
func (c *Contracts) TotalValueLocked(ctx context.Context) (decimal.Decimal, error) {
	var units int64
	if err := c.query(ctx, c.addr.CrossBorder, MethodGetTotalValueLocked, struct{}{}, &units); err != nil {
		return decimal.Zero, err
	}
	return amount.FromLedgerUnits(units), nil
}

// ProjectedYield asks the contract for simple yield on amount over days.
func (c *Contracts) ProjectedYield(ctx context.Context, poolID string, amt decimal.Decimal, days int) (decimal.Decimal, error) {
	id, err := ParseID(poolID)
	if err != nil {
		return decimal.Zero, err
	}
	if days < 0 {
		return decimal.Zero, model.Validationf("duration_days", "duration cannot be negative")
	}
	principal, err := amount.ToLedgerUnits(amt)
	if err != nil {
		return decimal.Zero, err
	}
	var units int64
	args := ProjectedYieldArgs{PoolID: id, Amount: principal, DurationDays: uint32(days)}
	if err := c.query(ctx, c.addr.CrossBorder, MethodCalculateProjectedYield, args, &units); err != nil {
		return decimal.Zero, err
	}
	return amount.FromLedgerUnits(units), nil
}

func poolFromRecord(r PoolRecord) model.YieldPool {
	return model.YieldPool{
		ID:                  FormatID(r.ID),
		Name:                r.Name,
		BaseCurrency:        r.BaseCurrency,
		TargetCurrency:      r.TargetCurrency,
		Corridor:            r.Corridor,
		TotalDeposited:      amount.FromLedgerUnits(r.TotalDeposited),
		TotalYieldEarned:    amount.FromLedgerUnits(r.TotalYieldEarned),
		APYBasisPoints:      int(r.APYBasisPoints),
		Participants:        append([]string(nil), r.Participants...),
		IsActive:            r.IsActive,
		MinDeposit:          amount.FromLedgerUnits(r.MinDeposit),
		MaxDeposit:          amount.FromLedgerUnits(r.MaxDeposit),
		LockDuration:        time.Duration(r.LockDuration) * time.Second,
		MoneyGramCorridorID: r.MoneyGramCorridorID,
	}
}
