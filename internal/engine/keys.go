package engine

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/query"
	"github.com/stellarsave/stellarsave/internal/store"
)

// Cache keys. Every key starts with its entity kind so related queries can
// be invalidated as a group.

func ChallengeKey(id string) query.Key {
	return query.NewKey("challenge", "detail", id)
}

func ProgressKey(id string) query.Key {
	return query.NewKey("challenge", "progress", id)
}

// ParticipantsKey groups every participant-progress entry of a challenge.
func ParticipantsKey(id string) query.Key {
	return query.NewKey("challenge", "participant", id)
}

func ParticipantKey(id, user string) query.Key {
	return ParticipantsKey(id).With(user)
}

func ChallengeContributionsKey(id string) query.Key {
	return query.NewKey("challenge", "contributions", id)
}

// UserChallengesKey groups every list query of user, whatever the filter.
func UserChallengesKey(user string) query.Key {
	return query.NewKey("challenges", "list", user)
}

func UserChallengesFilterKey(user string, f store.Filter) query.Key {
	return UserChallengesKey(user).With(f.Key())
}

func StatsKey(user string) query.Key {
	return query.NewKey("stats", user)
}

func BalanceKey(user string) query.Key {
	return query.NewKey("savecoin", "balance", user)
}

func RewardsKey(user string) query.Key {
	return query.NewKey("savecoin", "rewards", user)
}

func UserContributionsKey(user string) query.Key {
	return query.NewKey("contributions", "user", user)
}

// PoolsPrefix groups the pool list, pool details and TVL.
func PoolsPrefix() query.Key {
	return query.NewKey("pools")
}

func PoolListKey() query.Key {
	return query.NewKey("pools", "list")
}

func PoolKey(id string) query.Key {
	return query.NewKey("pools", "detail", id)
}

func TVLKey() query.Key {
	return query.NewKey("pools", "tvl")
}

func ProjectionKey(poolID string, amt decimal.Decimal, days int) query.Key {
	return query.NewKey("pools", "projection", poolID, amt.String(), strconv.Itoa(days))
}

func PositionsKey(user string) query.Key {
	return query.NewKey("positions", user)
}

func TransfersKey(user string) query.Key {
	return query.NewKey("transfers", user)
}

func RateKey(pair string) query.Key {
	return query.NewKey("rates", pair)
}

func CorridorsKey() query.Key {
	return query.NewKey("corridors")
}
