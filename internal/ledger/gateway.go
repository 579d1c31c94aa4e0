package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

// Gateway serves contract calls from the ledger. It is the fixture adapter
// behind gateway.Gateway.
type Gateway struct {
	ledger *Ledger
	addr   gateway.Addresses
}

// NewGateway adapts l. Calls addressed to contracts other than addr are
// rejected.
func NewGateway(l *Ledger, addr gateway.Addresses) *Gateway {
	return &Gateway{ledger: l, addr: addr}
}

// decodeArgs converts call arguments to the method's wire type. Arguments
// arrive typed from in-process callers and as JSON maps from the relay.
func decodeArgs[T any](args any) (T, error) {
	var out T
	if v, ok := args.(T); ok {
		return v, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, model.WrapError(model.KindValidationError, "encode arguments", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, model.WrapError(model.KindValidationError, "invalid arguments", err)
	}
	return out, nil
}

func encode(v any, hash string) (gateway.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return gateway.Result{}, fmt.Errorf("encode result: %w", err)
	}
	return gateway.Result{Value: raw, TransactionHash: hash}, nil
}

func (g *Gateway) contractFor(m gateway.Method) string {
	switch m {
	case gateway.MethodCreateChallenge, gateway.MethodContribute, gateway.MethodFinalizeChallenge,
		gateway.MethodGetChallenge, gateway.MethodGetUserChallenges, gateway.MethodGetContributions,
		gateway.MethodGetParticipantStats:
		return g.addr.Savings
	case gateway.MethodGetBalance, gateway.MethodGetRewardHistory:
		return g.addr.RewardToken
	default:
		return g.addr.CrossBorder
	}
}

// Invoke implements gateway.Gateway.
func (g *Gateway) Invoke(ctx context.Context, call gateway.Call) (gateway.Result, error) {
	if want := g.contractFor(call.Method); call.Contract != want {
		return gateway.Result{}, model.Errorf(model.KindContractError, "contract %q does not export %s", call.Contract, call.Method)
	}
	if err := ctx.Err(); err != nil {
		return gateway.Result{}, model.WrapError(model.KindNetworkError, "call cancelled", err)
	}

	if call.Method.IsMutation() {
		fn, err := g.mutation(call)
		if err != nil {
			return gateway.Result{}, err
		}
		out, hash, err := g.ledger.mutate(ctx, string(call.Method), call.Args, call.Simulate, fn)
		if err != nil {
			return gateway.Result{}, err
		}
		return encode(out, hash)
	}

	fn, err := g.read(call)
	if err != nil {
		return gateway.Result{}, err
	}
	out, err := g.ledger.view(ctx, fn)
	if err != nil {
		return gateway.Result{}, err
	}
	return encode(out, "")
}

func (g *Gateway) mutation(call gateway.Call) (txFunc, error) {
	l := g.ledger
	switch call.Method {
	case gateway.MethodCreateChallenge:
		a, err := decodeArgs[gateway.CreateChallengeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return l.createChallenge(t, a) }, nil
	case gateway.MethodContribute:
		a, err := decodeArgs[gateway.ContributeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return nil, l.contribute(t, a) }, nil
	case gateway.MethodFinalizeChallenge:
		a, err := decodeArgs[gateway.FinalizeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return nil, l.finalizeChallenge(t, a) }, nil
	case gateway.MethodCreateYieldPool:
		a, err := decodeArgs[gateway.CreatePoolArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return l.createPool(t, a) }, nil
	case gateway.MethodDepositToPool:
		a, err := decodeArgs[gateway.DepositArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return nil, l.depositToPool(t, a) }, nil
	case gateway.MethodDistributeYield:
		a, err := decodeArgs[gateway.DistributeYieldArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return nil, l.distributeYield(t, a) }, nil
	case gateway.MethodSendCrossBorder:
		a, err := decodeArgs[gateway.SendCrossBorderArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return l.sendCrossBorder(t, a) }, nil
	case gateway.MethodUpdateExchangeRate:
		a, err := decodeArgs[gateway.UpdateExchangeRateArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return nil, l.updateExchangeRate(t, a) }, nil
	}
	return nil, model.Errorf(model.KindContractError, "unknown method %s", call.Method)
}

func (g *Gateway) read(call gateway.Call) (txFunc, error) {
	switch call.Method {
	case gateway.MethodGetChallenge:
		a, err := decodeArgs[gateway.ChallengeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return loadChallenge(t, a.ChallengeID) }, nil
	case gateway.MethodGetUserChallenges:
		a, err := decodeArgs[gateway.UserArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return userChallenges(t, a.User) }, nil
	case gateway.MethodGetContributions:
		a, err := decodeArgs[gateway.ChallengeArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return contributions(t, a.ChallengeID) }, nil
	case gateway.MethodGetParticipantStats:
		a, err := decodeArgs[gateway.ParticipantArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return participantStats(t, a.ChallengeID, a.Participant) }, nil
	case gateway.MethodGetBalance:
		a, err := decodeArgs[gateway.UserArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return balance(t, a.User) }, nil
	case gateway.MethodGetRewardHistory:
		a, err := decodeArgs[gateway.UserArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return rewardHistory(t, a.User) }, nil
	case gateway.MethodGetPool:
		a, err := decodeArgs[gateway.PoolArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return loadPool(t, a.PoolID) }, nil
	case gateway.MethodGetPools:
		return func(t *txn) (any, error) { return pools(t) }, nil
	case gateway.MethodGetUserPositions:
		a, err := decodeArgs[gateway.UserArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return positions(t, a.User) }, nil
	case gateway.MethodGetUserTransfers:
		a, err := decodeArgs[gateway.UserArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return transfers(t, a.User) }, nil
	case gateway.MethodGetExchangeRate:
		a, err := decodeArgs[gateway.ExchangeRateArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return exchangeRate(t, a.CurrencyPair) }, nil
	case gateway.MethodGetCorridors:
		return func(t *txn) (any, error) { return corridors(t) }, nil
	case gateway.MethodGetTotalValueLocked:
		return func(t *txn) (any, error) { return totalValueLocked(t) }, nil
	case gateway.MethodCalculateProjectedYield:
		a, err := decodeArgs[gateway.ProjectedYieldArgs](call.Args)
		if err != nil {
			return nil, err
		}
		return func(t *txn) (any, error) { return projectedYield(t, a) }, nil
	}
	return nil, model.Errorf(model.KindContractError, "unknown method %s", call.Method)
}
