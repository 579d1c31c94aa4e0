package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
	"github.com/stellarsave/stellarsave/internal/query"
)

func challengeLane(id string) string { return "challenge:" + id }
func poolLane(id string) string      { return "pool:" + id }

// CreateChallenge creates a challenge. There is no optimistic patch: on
// success the challenge is loaded, stored, and the create modal is closed.
func (e *Engine) CreateChallenge(ctx context.Context, req model.CreateChallengeRequest) (model.Challenge, error) {
	req = req.Normalize()
	return query.RunMutation(ctx, e.cache, query.Mutation[model.CreateChallengeRequest, model.Challenge]{
		Name:     "create_challenge",
		Validate: model.CreateChallengeRequest.Validate,
		Call: func(ctx context.Context, r model.CreateChallengeRequest) (model.Challenge, error) {
			receipt, err := e.contracts.CreateChallenge(ctx, r)
			if err != nil {
				return model.Challenge{}, err
			}
			return e.contracts.Challenge(ctx, receipt.ID)
		},
		Invalidate: func(r model.CreateChallengeRequest, _ model.Challenge) []query.Key {
			keys := make([]query.Key, 0, 2*len(r.Participants))
			for _, p := range r.Participants {
				keys = append(keys, UserChallengesKey(p), StatsKey(p))
			}
			return keys
		},
		OnSuccess: func(_ model.CreateChallengeRequest, c model.Challenge) {
			e.store.AddOrUpdateChallenge(c)
			e.cache.SetData(ChallengeKey(c.ID), c)
			e.store.SetModal(ModalCreateChallenge, false)
			e.logger.Info("challenge created", "id", c.ID, "creator", c.Creator)
		},
		OnError: func(_ model.CreateChallengeRequest, err error) {
			e.notifyFailure("Creating challenge", "", err)
		},
	}, req)
}

// Contribute deposits into a challenge. The contribution is applied to the
// store at once under a pending placeholder hash and replaced by the
// confirmed hash on success; failure removes it and restores the total.
func (e *Engine) Contribute(ctx context.Context, req model.ContributeRequest) (model.Contribution, error) {
	now := e.clock.Now()
	placeholder := model.Contribution{
		ChallengeID:     req.ChallengeID,
		Contributor:     req.Contributor,
		Amount:          req.Amount,
		Timestamp:       now,
		TransactionHash: model.PendingHashPrefix + e.ids.Generate(),
		WeekNumber:      1,
	}

	var before, after model.Challenge
	var known bool

	hash, err := query.RunMutation(ctx, e.cache, query.Mutation[model.ContributeRequest, string]{
		Name:     "contribute",
		Lane:     func(r model.ContributeRequest) string { return challengeLane(r.ChallengeID) },
		Validate: model.ContributeRequest.Validate,
		Affected: func(r model.ContributeRequest) []query.Key {
			return []query.Key{
				ChallengeKey(r.ChallengeID),
				ProgressKey(r.ChallengeID),
				ParticipantsKey(r.ChallengeID),
				ChallengeContributionsKey(r.ChallengeID),
				UserChallengesKey(r.Contributor),
			}
		},
		Optimistic: func(r model.ContributeRequest) func() {
			before, known = e.store.Challenge(r.ChallengeID)
			if known {
				placeholder.WeekNumber = progress.ChallengeWeek(before.CreatedAt, now)
			}
			undo := e.store.ApplyContribution(placeholder)
			after, _ = e.store.Challenge(r.ChallengeID)
			query.Update(e.cache, ChallengeKey(r.ChallengeID), func(c model.Challenge) model.Challenge {
				c = c.Clone()
				c.CurrentAmount = c.CurrentAmount.Add(r.Amount)
				c.IsCompleted = progress.IsCompleted(c)
				return c
			})
			if known {
				query.Update(e.cache, ProgressKey(r.ChallengeID), func(model.ChallengeProgress) model.ChallengeProgress {
					return progress.Compute(after, now)
				})
			}
			e.store.SetLoading("contribute", true)
			return func() {
				undo()
				e.store.SetLoading("contribute", false)
			}
		},
		Call: e.contracts.Contribute,
		Invalidate: func(r model.ContributeRequest, _ string) []query.Key {
			return []query.Key{
				ChallengeKey(r.ChallengeID),
				ProgressKey(r.ChallengeID),
				ParticipantsKey(r.ChallengeID),
				UserChallengesKey(r.Contributor),
				StatsKey(r.Contributor),
				BalanceKey(r.Contributor),
				RewardsKey(r.Contributor),
				UserContributionsKey(r.Contributor),
				ChallengeContributionsKey(r.ChallengeID),
			}
		},
		Settle: func(r model.ContributeRequest) []query.Key {
			return []query.Key{ChallengeKey(r.ChallengeID), ProgressKey(r.ChallengeID)}
		},
		OnSuccess: func(r model.ContributeRequest, hash string) {
			e.store.ConfirmContribution(placeholder.TransactionHash, hash)
			e.store.SetLoading("contribute", false)
			e.store.SetModal(ModalContribute, false)
			if known {
				e.notifyContribution(before, after, r.Amount)
			}
			e.logger.Info("contribution confirmed",
				"challenge", r.ChallengeID, "contributor", r.Contributor, "amount", r.Amount.String(), "tx", hash)
		},
		OnError: func(r model.ContributeRequest, err error) {
			e.notifyFailure("Contribution of "+amount.Format(r.Amount, Symbol), r.ChallengeID, err)
		},
	}, req)
	if err != nil {
		return model.Contribution{}, err
	}

	confirmed := placeholder
	confirmed.TransactionHash = hash
	return confirmed, nil
}

// FinalizeChallenge closes a challenge. It is marked inactive at once and
// restored if the contract refuses.
func (e *Engine) FinalizeChallenge(ctx context.Context, req model.FinalizeRequest) (string, error) {
	return query.RunMutation(ctx, e.cache, query.Mutation[model.FinalizeRequest, string]{
		Name:     "finalize_challenge",
		Lane:     func(r model.FinalizeRequest) string { return challengeLane(r.ChallengeID) },
		Validate: model.FinalizeRequest.Validate,
		Affected: func(r model.FinalizeRequest) []query.Key {
			return []query.Key{ChallengeKey(r.ChallengeID), ProgressKey(r.ChallengeID), UserChallengesKey(r.Finalizer)}
		},
		Optimistic: func(r model.FinalizeRequest) func() {
			undo, _ := e.store.PatchChallenge(r.ChallengeID, func(c *model.Challenge) { c.IsActive = false })
			query.Update(e.cache, ChallengeKey(r.ChallengeID), func(c model.Challenge) model.Challenge {
				c = c.Clone()
				c.IsActive = false
				return c
			})
			return undo
		},
		Call: e.contracts.FinalizeChallenge,
		Invalidate: func(r model.FinalizeRequest, _ string) []query.Key {
			keys := []query.Key{ChallengeKey(r.ChallengeID), ProgressKey(r.ChallengeID)}
			participants := []string{r.Finalizer}
			if c, ok := e.store.Challenge(r.ChallengeID); ok {
				participants = append(participants, c.Participants...)
			}
			for _, p := range participants {
				keys = append(keys, UserChallengesKey(p), StatsKey(p))
			}
			return keys
		},
		Settle: func(r model.FinalizeRequest) []query.Key {
			return []query.Key{ChallengeKey(r.ChallengeID), ProgressKey(r.ChallengeID)}
		},
		OnSuccess: func(r model.FinalizeRequest, _ string) {
			c, ok := e.store.Challenge(r.ChallengeID)
			if !ok {
				return
			}
			if progress.IsCompleted(c) {
				e.notify(model.NotificationCompletion, model.PriorityHigh, c.ID, "%s finalized with its goal reached", c.Name)
				return
			}
			e.notify(model.NotificationWarning, model.PriorityMedium, c.ID,
				"%s finalized at %s of %s", c.Name, amount.Format(c.CurrentAmount, Symbol), amount.Format(c.GoalAmount, Symbol))
		},
		OnError: func(r model.FinalizeRequest, err error) {
			e.notifyFailure("Finalizing challenge", r.ChallengeID, err)
		},
	}, req)
}

// --- cross-border yield ---

// CreatePool creates a yield pool (admin).
func (e *Engine) CreatePool(ctx context.Context, req model.CreatePoolRequest) (model.YieldPool, error) {
	return query.RunMutation(ctx, e.cache, query.Mutation[model.CreatePoolRequest, model.YieldPool]{
		Name:     "create_pool",
		Validate: model.CreatePoolRequest.Validate,
		Call: func(ctx context.Context, r model.CreatePoolRequest) (model.YieldPool, error) {
			receipt, err := e.contracts.CreatePool(ctx, r)
			if err != nil {
				return model.YieldPool{}, err
			}
			return e.contracts.Pool(ctx, receipt.ID)
		},
		Invalidate: func(model.CreatePoolRequest, model.YieldPool) []query.Key {
			return []query.Key{PoolsPrefix(), CorridorsKey()}
		},
		OnSuccess: func(_ model.CreatePoolRequest, p model.YieldPool) {
			e.store.UpsertPool(p)
			e.cache.SetData(PoolKey(p.ID), p)
		},
		OnError: func(_ model.CreatePoolRequest, err error) {
			e.notifyFailure("Creating pool", "", err)
		},
	}, req)
}

// Deposit adds funds to a yield pool. The position and the pool total are
// applied at once and restored on failure.
func (e *Engine) Deposit(ctx context.Context, req model.DepositRequest) (string, error) {
	now := e.clock.Now()
	return query.RunMutation(ctx, e.cache, query.Mutation[model.DepositRequest, string]{
		Name:     "deposit",
		Lane:     func(r model.DepositRequest) string { return poolLane(r.PoolID) },
		Validate: model.DepositRequest.Validate,
		Affected: func(r model.DepositRequest) []query.Key {
			return []query.Key{PoolKey(r.PoolID), PoolListKey(), TVLKey(), PositionsKey(r.User)}
		},
		Optimistic: func(r model.DepositRequest) func() {
			pos := model.YieldPosition{
				User:            r.User,
				PoolID:          r.PoolID,
				Principal:       r.Amount,
				YieldEarned:     decimal.Zero,
				DepositedAt:     now,
				LastClaimAt:     now,
				AutoCompound:    r.AutoCompound,
				TransactionHash: model.PendingHashPrefix + e.ids.Generate(),
			}
			if p, ok := e.store.Pool(r.PoolID); ok {
				pos.LockUntil = now.Add(p.LockDuration)
			}
			return e.store.ApplyDeposit(pos)
		},
		Call: e.contracts.Deposit,
		Invalidate: func(r model.DepositRequest, _ string) []query.Key {
			return []query.Key{PoolsPrefix(), PositionsKey(r.User)}
		},
		Settle: func(r model.DepositRequest) []query.Key {
			return []query.Key{PoolKey(r.PoolID), PositionsKey(r.User)}
		},
		OnSuccess: func(r model.DepositRequest, _ string) {
			e.notify(model.NotificationContribution, model.PriorityLow, "",
				"Deposited %s into pool %s", amount.Format(r.Amount, Symbol), r.PoolID)
		},
		OnError: func(r model.DepositRequest, err error) {
			e.notifyFailure("Deposit", r.PoolID, err)
		},
	}, req)
}

// DistributeYield spreads totalYield across a pool's depositors (admin).
func (e *Engine) DistributeYield(ctx context.Context, admin, poolID string, totalYield decimal.Decimal) (string, error) {
	type distribute struct {
		admin, pool string
		total       decimal.Decimal
	}
	return query.RunMutation(ctx, e.cache, query.Mutation[distribute, string]{
		Name: "distribute_yield",
		Lane: func(d distribute) string { return poolLane(d.pool) },
		Validate: func(d distribute) error {
			if err := model.CheckAmount("total_yield", "yield to distribute", d.total); err != nil {
				return model.AsError(err).WithEntity(d.pool)
			}
			return nil
		},
		Call: func(ctx context.Context, d distribute) (string, error) {
			return e.contracts.DistributeYield(ctx, d.admin, d.pool, d.total)
		},
		Invalidate: func(distribute, string) []query.Key {
			return []query.Key{PoolsPrefix(), query.NewKey("positions")}
		},
		OnError: func(d distribute, err error) {
			e.notifyFailure("Yield distribution", d.pool, err)
		},
	}, distribute{admin: admin, pool: poolID, total: totalYield})
}

// SendCrossBorder sends a remittance and returns the recorded transfer.
func (e *Engine) SendCrossBorder(ctx context.Context, req model.SendCrossBorderRequest) (model.CrossBorderTransfer, error) {
	receipt, err := query.RunMutation(ctx, e.cache, query.Mutation[model.SendCrossBorderRequest, string]{
		Name:     "send_cross_border",
		Lane:     func(r model.SendCrossBorderRequest) string { return "transfers:" + r.Sender },
		Validate: model.SendCrossBorderRequest.Validate,
		Call: func(ctx context.Context, r model.SendCrossBorderRequest) (string, error) {
			rec, err := e.contracts.SendCrossBorder(ctx, r)
			return rec.ID, err
		},
		Invalidate: func(r model.SendCrossBorderRequest, _ string) []query.Key {
			keys := []query.Key{TransfersKey(r.Sender)}
			if r.UseYieldPool {
				keys = append(keys, PositionsKey(r.Sender), PoolsPrefix())
			}
			return keys
		},
		OnError: func(r model.SendCrossBorderRequest, err error) {
			e.notifyFailure("Transfer of "+amount.Format(r.Amount, r.FromCurrency), "", err)
		},
	}, req)
	if err != nil {
		return model.CrossBorderTransfer{}, err
	}

	list, err := e.contracts.Transfers(ctx, req.Sender)
	if err != nil {
		return model.CrossBorderTransfer{}, err
	}
	e.store.SetTransfers(req.Sender, list)
	for _, t := range list {
		if t.ID == receipt {
			e.notify(model.NotificationContribution, model.PriorityLow, "",
				"Sent %s to %s (ref %s)", amount.Format(t.Amount, t.FromCurrency), t.To, t.MoneyGramRef)
			return t, nil
		}
	}
	return model.CrossBorderTransfer{}, model.Errorf(model.KindContractError, "transfer %s not found after send", receipt)
}

// UpdateExchangeRate sets the rate of a currency pair (admin).
func (e *Engine) UpdateExchangeRate(ctx context.Context, admin, pair string, rate decimal.Decimal) (string, error) {
	type update struct {
		admin, pair string
		rate        decimal.Decimal
	}
	return query.RunMutation(ctx, e.cache, query.Mutation[update, string]{
		Name: "update_exchange_rate",
		Validate: func(u update) error {
			if u.pair == "" {
				return model.Validationf("currency_pair", "currency pair is required")
			}
			return model.CheckAmount("rate", "exchange rate", u.rate)
		},
		Affected: func(u update) []query.Key { return []query.Key{RateKey(u.pair)} },
		Optimistic: func(u update) func() {
			prior, had := e.store.Rate(u.pair)
			e.store.SetRate(u.pair, u.rate)
			return func() {
				if had {
					e.store.SetRate(u.pair, prior)
					return
				}
				e.store.ClearRate(u.pair)
			}
		},
		Call: func(ctx context.Context, u update) (string, error) {
			return e.contracts.UpdateExchangeRate(ctx, u.admin, u.pair, u.rate)
		},
		Invalidate: func(u update, _ string) []query.Key { return []query.Key{RateKey(u.pair)} },
		OnError: func(u update, err error) {
			e.notifyFailure("Rate update", "", err)
		},
	}, update{admin: admin, pair: pair, rate: rate})
}
