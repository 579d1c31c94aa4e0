package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
	"github.com/stellarsave/stellarsave/internal/query"
	"github.com/stellarsave/stellarsave/internal/store"
)

// --- savings challenge ---
//
// Loaders are pure: they read the gateway and return a query.Commit that
// writes the store. The cache runs the commit only when the result is
// still current, so a read overlapping a mutation cannot undo its
// optimistic patch.

// Challenge reads one challenge.
func (e *Engine) Challenge(ctx context.Context, id string) (model.Challenge, error) {
	return query.Load(ctx, e.cache, ChallengeKey(id), e.timing.Challenge, func(ctx context.Context) (model.Challenge, query.Commit, error) {
		return e.loadChallenge(ctx, id)
	})
}

func (e *Engine) loadChallenge(ctx context.Context, id string) (model.Challenge, query.Commit, error) {
	c, err := e.contracts.Challenge(ctx, id)
	if err != nil {
		return model.Challenge{}, nil, err
	}
	return c, func(g query.Guard) {
		if g.Allows(ChallengeKey(id)) {
			e.store.AddOrUpdateChallenge(c)
		}
	}, nil
}

// commitChallenges merges fetched challenges into the store, skipping any
// a mutation is working on.
func (e *Engine) commitChallenges(list []model.Challenge) query.Commit {
	return func(g query.Guard) {
		kept := make([]model.Challenge, 0, len(list))
		for _, c := range list {
			if g.Allows(ChallengeKey(c.ID)) {
				kept = append(kept, c)
			}
		}
		e.store.MergeChallenges(kept)
	}
}

// UserChallenges reads the user's challenges through filter f.
func (e *Engine) UserChallenges(ctx context.Context, user string, f store.Filter) ([]model.Challenge, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return query.Load(ctx, e.cache, UserChallengesFilterKey(user, f), e.timing.List, func(ctx context.Context) ([]model.Challenge, query.Commit, error) {
		return e.loadUserChallenges(ctx, user, f)
	})
}

func (e *Engine) loadUserChallenges(ctx context.Context, user string, f store.Filter) ([]model.Challenge, query.Commit, error) {
	list, err := e.contracts.UserChallenges(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return f.Apply(list, e.clock.Now()), e.commitChallenges(list), nil
}

// Progress reads a challenge's derived progress.
func (e *Engine) Progress(ctx context.Context, id string) (model.ChallengeProgress, error) {
	return query.Load(ctx, e.cache, ProgressKey(id), e.timing.Progress, func(ctx context.Context) (model.ChallengeProgress, query.Commit, error) {
		return e.loadProgress(ctx, id)
	})
}

func (e *Engine) loadProgress(ctx context.Context, id string) (model.ChallengeProgress, query.Commit, error) {
	c, commit, err := e.loadChallenge(ctx, id)
	if err != nil {
		return model.ChallengeProgress{}, nil, err
	}
	p := progress.Compute(c, e.clock.Now())
	return p, func(g query.Guard) {
		commit(g)
		if g.Allows(ProgressKey(id)) {
			e.store.SetProgress(p)
		}
	}, nil
}

// ParticipantProgress reads one member's standing in a challenge. Counters
// come from the contract; the share is computed against the current total.
func (e *Engine) ParticipantProgress(ctx context.Context, id, user string) (model.ParticipantProgress, error) {
	return query.Fetch(ctx, e.cache, ParticipantKey(id, user), e.timing.Progress, func(ctx context.Context) (model.ParticipantProgress, error) {
		c, err := e.contracts.Challenge(ctx, id)
		if err != nil {
			return model.ParticipantProgress{}, err
		}
		if !c.HasParticipant(user) {
			return model.ParticipantProgress{}, model.Errorf(model.KindNotParticipant, "%s is not a participant", user).WithEntity(id)
		}
		pp, err := e.contracts.ParticipantStats(ctx, id, user)
		if err != nil {
			return model.ParticipantProgress{}, err
		}
		pp.SharePercentage = progress.Share(pp.TotalContributed, c.CurrentAmount)
		return pp, nil
	})
}

// Contributions reads a challenge's history, most recent first.
func (e *Engine) Contributions(ctx context.Context, id string) ([]model.Contribution, error) {
	return query.Load(ctx, e.cache, ChallengeContributionsKey(id), e.timing.Challenge, func(ctx context.Context) ([]model.Contribution, query.Commit, error) {
		list, err := e.contracts.Contributions(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return store.SortContributions(list), func(query.Guard) {
			e.store.ReplaceContributions(id, list)
		}, nil
	})
}

// UserContributions reads every contribution the user made, most recent
// first.
func (e *Engine) UserContributions(ctx context.Context, user string) ([]model.Contribution, error) {
	return query.Load(ctx, e.cache, UserContributionsKey(user), e.timing.Stats, func(ctx context.Context) ([]model.Contribution, query.Commit, error) {
		return e.loadUserContributions(ctx, user)
	})
}

func (e *Engine) loadUserContributions(ctx context.Context, user string) ([]model.Contribution, query.Commit, error) {
	challenges, err := e.contracts.UserChallenges(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	histories := make(map[string][]model.Contribution, len(challenges))
	var mine []model.Contribution
	for _, c := range challenges {
		list, err := e.contracts.Contributions(ctx, c.ID)
		if err != nil {
			return nil, nil, err
		}
		histories[c.ID] = list
		for _, x := range list {
			if x.Contributor == user {
				mine = append(mine, x)
			}
		}
	}
	commitChallenges := e.commitChallenges(challenges)
	return store.SortContributions(mine), func(g query.Guard) {
		commitChallenges(g)
		for id, list := range histories {
			// A held history still carries a pending placeholder.
			if g.Allows(ChallengeContributionsKey(id)) {
				e.store.ReplaceContributions(id, list)
			}
		}
	}, nil
}

// Stats reads the user's aggregate.
func (e *Engine) Stats(ctx context.Context, user string) (model.SavingsStats, error) {
	return query.Load(ctx, e.cache, StatsKey(user), e.timing.Stats, func(ctx context.Context) (model.SavingsStats, query.Commit, error) {
		return e.loadStats(ctx, user)
	})
}

// loadStats recomputes the aggregate from freshly loaded challenges,
// contributions and balance, and installs those inputs in the cache.
func (e *Engine) loadStats(ctx context.Context, user string) (model.SavingsStats, query.Commit, error) {
	all := store.Filter{}
	challenges, commitChallenges, err := e.loadUserChallenges(ctx, user, all)
	if err != nil {
		return model.SavingsStats{}, nil, err
	}
	contributions, commitContributions, err := e.loadUserContributions(ctx, user)
	if err != nil {
		return model.SavingsStats{}, nil, err
	}
	balance, commitBalance, err := e.loadBalance(ctx, user)
	if err != nil {
		return model.SavingsStats{}, nil, err
	}

	st := progress.Stats(user, challenges, contributions, balance, e.clock.Now())
	return st, func(g query.Guard) {
		commitChallenges(g)
		commitContributions(g)
		commitBalance(g)
		inputs := []struct {
			key query.Key
			v   any
		}{
			{UserChallengesFilterKey(user, all), challenges},
			{UserContributionsKey(user), contributions},
			{BalanceKey(user), balance},
		}
		for _, in := range inputs {
			if g.Allows(in.key) {
				e.cache.SetData(in.key, in.v)
			}
		}
		e.store.SetStats(st)
	}, nil
}

// --- reward token ---

// Balance reads the user's SaveCoin balance.
func (e *Engine) Balance(ctx context.Context, user string) (decimal.Decimal, error) {
	return query.Load(ctx, e.cache, BalanceKey(user), e.timing.Balance, func(ctx context.Context) (decimal.Decimal, query.Commit, error) {
		return e.loadBalance(ctx, user)
	})
}

func (e *Engine) loadBalance(ctx context.Context, user string) (decimal.Decimal, query.Commit, error) {
	bal, err := e.contracts.Balance(ctx, user)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return bal, func(g query.Guard) {
		if g.Allows(BalanceKey(user)) {
			e.store.SetBalance(user, bal)
		}
	}, nil
}

// RewardHistory reads the user's SaveCoin mints.
func (e *Engine) RewardHistory(ctx context.Context, user string) ([]model.RewardRecord, error) {
	return query.Load(ctx, e.cache, RewardsKey(user), e.timing.Balance, func(ctx context.Context) ([]model.RewardRecord, query.Commit, error) {
		list, err := e.contracts.RewardHistory(ctx, user)
		if err != nil {
			return nil, nil, err
		}
		return list, func(query.Guard) { e.store.SetRewards(user, list) }, nil
	})
}

// --- cross-border yield ---

// Pools reads every yield pool.
func (e *Engine) Pools(ctx context.Context) ([]model.YieldPool, error) {
	return query.Load(ctx, e.cache, PoolListKey(), e.timing.Yield, func(ctx context.Context) ([]model.YieldPool, query.Commit, error) {
		list, err := e.contracts.Pools(ctx)
		if err != nil {
			return nil, nil, err
		}
		return list, func(query.Guard) { e.store.SetPools(list) }, nil
	})
}

// Pool reads one yield pool.
func (e *Engine) Pool(ctx context.Context, id string) (model.YieldPool, error) {
	return query.Load(ctx, e.cache, PoolKey(id), e.timing.Yield, func(ctx context.Context) (model.YieldPool, query.Commit, error) {
		p, err := e.contracts.Pool(ctx, id)
		if err != nil {
			return model.YieldPool{}, nil, err
		}
		return p, func(query.Guard) { e.store.UpsertPool(p) }, nil
	})
}

// Positions reads the user's pool positions.
func (e *Engine) Positions(ctx context.Context, user string) ([]model.YieldPosition, error) {
	return query.Load(ctx, e.cache, PositionsKey(user), e.timing.Yield, func(ctx context.Context) ([]model.YieldPosition, query.Commit, error) {
		list, err := e.contracts.Positions(ctx, user)
		if err != nil {
			return nil, nil, err
		}
		return list, func(query.Guard) { e.store.SetPositions(user, list) }, nil
	})
}

// Transfers reads the user's remittances.
func (e *Engine) Transfers(ctx context.Context, user string) ([]model.CrossBorderTransfer, error) {
	return query.Load(ctx, e.cache, TransfersKey(user), e.timing.Yield, func(ctx context.Context) ([]model.CrossBorderTransfer, query.Commit, error) {
		list, err := e.contracts.Transfers(ctx, user)
		if err != nil {
			return nil, nil, err
		}
		return list, func(query.Guard) { e.store.SetTransfers(user, list) }, nil
	})
}

// ExchangeRate reads the rate of a currency pair such as "USDC-MXN".
func (e *Engine) ExchangeRate(ctx context.Context, pair string) (decimal.Decimal, error) {
	return query.Load(ctx, e.cache, RateKey(pair), e.timing.Yield, func(ctx context.Context) (decimal.Decimal, query.Commit, error) {
		rate, err := e.contracts.ExchangeRate(ctx, pair)
		if err != nil {
			return decimal.Zero, nil, err
		}
		return rate, func(query.Guard) { e.store.SetRate(pair, rate) }, nil
	})
}

// Corridors reads the supported remittance corridors.
func (e *Engine) Corridors(ctx context.Context) ([]string, error) {
	return query.Load(ctx, e.cache, CorridorsKey(), e.timing.Yield, func(ctx context.Context) ([]string, query.Commit, error) {
		list, err := e.contracts.Corridors(ctx)
		if err != nil {
			return nil, nil, err
		}
		return list, func(query.Guard) { e.store.SetCorridors(list) }, nil
	})
}

// TotalValueLocked reads the sum of all pool deposits.
func (e *Engine) TotalValueLocked(ctx context.Context) (decimal.Decimal, error) {
	return query.Load(ctx, e.cache, TVLKey(), e.timing.Yield, func(ctx context.Context) (decimal.Decimal, query.Commit, error) {
		tvl, err := e.contracts.TotalValueLocked(ctx)
		if err != nil {
			return decimal.Zero, nil, err
		}
		return tvl, func(query.Guard) { e.store.SetTotalValueLocked(tvl) }, nil
	})
}

// ProjectedYield estimates the yield of amt held in a pool for days.
func (e *Engine) ProjectedYield(ctx context.Context, poolID string, amt decimal.Decimal, days int) (decimal.Decimal, error) {
	if err := model.CheckAmount("amount", "amount", amt); err != nil {
		return decimal.Zero, err
	}
	if days <= 0 {
		return decimal.Zero, model.Validationf("days", "duration must be at least one day")
	}
	return query.Fetch(ctx, e.cache, ProjectionKey(poolID, amt, days), e.timing.Yield, func(ctx context.Context) (decimal.Decimal, error) {
		return e.contracts.ProjectedYield(ctx, poolID, amt, days)
	})
}

// QuoteTransfer prices a remittance at the current rate without sending it.
func (e *Engine) QuoteTransfer(ctx context.Context, from, to string, amt decimal.Decimal) (progress.TransferQuote, error) {
	if err := model.CheckAmount("amount", "transfer amount", amt); err != nil {
		return progress.TransferQuote{}, err
	}
	rate, err := e.ExchangeRate(ctx, gateway.CurrencyPair(from, to))
	if err != nil {
		return progress.TransferQuote{}, err
	}
	return progress.QuoteTransfer(amt, rate), nil
}
