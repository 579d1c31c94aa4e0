// Package gateway is the boundary to the remote Soroban contracts.
//
// Gateway is the opaque async RPC capability: one Invoke per contract
// method call, which may fail, be simulated, or time out. Implementations
// are chosen once at composition time and never branched per call:
//
//   - ledger.Gateway: the fixture adapter over the sqlite contract simulation
//   - RPC: JSON over HTTP to a signing relay in front of Soroban RPC
//
// Decorators add cross-cutting behavior without touching adapters:
// Limited (rate limiting), Instrumented (metrics and logging), and Faulty
// (scripted failures for tests and scenarios).
//
// Contracts sits on top of any Gateway and is the only place where decimal
// amounts are converted to ledger units and back.
package gateway

import (
	"context"
	"encoding/json"
)

// Method names a contract entry point.
type Method string

// Savings-challenge contract.
const (
	MethodCreateChallenge     Method = "create_challenge"
	MethodContribute          Method = "contribute"
	MethodFinalizeChallenge   Method = "finalize_challenge"
	MethodGetChallenge        Method = "get_challenge"
	MethodGetUserChallenges   Method = "get_user_challenges"
	MethodGetContributions    Method = "get_contributions"
	MethodGetParticipantStats Method = "get_participant_stats"
)

// Reward-token (SaveCoin) contract.
const (
	MethodGetBalance       Method = "balance"
	MethodGetRewardHistory Method = "get_reward_history"
)

// Cross-border-yield contract.
const (
	MethodCreateYieldPool         Method = "create_yield_pool"
	MethodDepositToPool           Method = "deposit_to_pool"
	MethodDistributeYield         Method = "distribute_yield"
	MethodSendCrossBorder         Method = "send_cross_border"
	MethodUpdateExchangeRate      Method = "update_exchange_rate"
	MethodGetExchangeRate         Method = "get_exchange_rate"
	MethodGetCorridors            Method = "get_supported_corridors"
	MethodGetPool                 Method = "get_yield_pool"
	MethodGetPools                Method = "get_yield_pools"
	MethodGetUserPositions        Method = "get_user_positions"
	MethodGetUserTransfers        Method = "get_user_transfers"
	MethodGetTotalValueLocked     Method = "get_total_value_locked"
	MethodCalculateProjectedYield Method = "calculate_projected_yield"
)

// IsMutation reports whether the method changes ledger state.
func (m Method) IsMutation() bool {
	switch m {
	case MethodCreateChallenge, MethodContribute, MethodFinalizeChallenge,
		MethodCreateYieldPool, MethodDepositToPool, MethodDistributeYield,
		MethodSendCrossBorder, MethodUpdateExchangeRate:
		return true
	}
	return false
}

// Call is a single contract invocation.
type Call struct {
	Contract string `json:"contract"`
	Method   Method `json:"method"`
	Args     any    `json:"args"`
	Simulate bool   `json:"simulate,omitempty"`
}

// Result is the decoded response of an invocation. TransactionHash is set
// only for submitted (non-simulated) mutations.
type Result struct {
	Value           json.RawMessage `json:"result"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
}

// Decode unmarshals the result value into v.
func (r Result) Decode(v any) error {
	if len(r.Value) == 0 {
		return nil
	}
	return json.Unmarshal(r.Value, v)
}

// Gateway invokes contract methods. Errors are *model.Error values whose
// kind describes the failure (NETWORK_ERROR, CHALLENGE_NOT_FOUND, ...).
type Gateway interface {
	Invoke(ctx context.Context, call Call) (Result, error)
}

// Func adapts a function to the Gateway interface.
type Func func(ctx context.Context, call Call) (Result, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, call Call) (Result, error) {
	return f(ctx, call)
}
