package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// YieldPool is a cross-border yield pool for one remittance corridor.
type YieldPool struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	BaseCurrency        string          `json:"base_currency"`
	TargetCurrency      string          `json:"target_currency"`
	Corridor            string          `json:"corridor"`
	TotalDeposited      decimal.Decimal `json:"total_deposited"`
	TotalYieldEarned    decimal.Decimal `json:"total_yield_earned"`
	APYBasisPoints      int             `json:"apy_basis_points"`
	Participants        []string        `json:"participants"`
	IsActive            bool            `json:"is_active"`
	MinDeposit          decimal.Decimal `json:"min_deposit"`
	MaxDeposit          decimal.Decimal `json:"max_deposit"`
	LockDuration        time.Duration   `json:"lock_duration"`
	MoneyGramCorridorID string          `json:"moneygram_corridor_id,omitempty"`
}

// APY returns the annual yield as a percentage (basis points / 100).
func (p YieldPool) APY() decimal.Decimal {
	return decimal.NewFromInt(int64(p.APYBasisPoints)).Div(decimal.NewFromInt(100))
}

// YieldPosition is one user deposit into a pool.
type YieldPosition struct {
	User            string          `json:"user"`
	PoolID          string          `json:"pool_id"`
	Principal       decimal.Decimal `json:"principal"`
	YieldEarned     decimal.Decimal `json:"yield_earned"`
	DepositedAt     time.Time       `json:"deposited_at"`
	LastClaimAt     time.Time       `json:"last_claim_at"`
	LockUntil       time.Time       `json:"lock_until"`
	AutoCompound    bool            `json:"auto_compound"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
}

// IsLocked reports whether the position cannot be withdrawn at now.
func (p YieldPosition) IsLocked(now time.Time) bool {
	return now.Before(p.LockUntil)
}

// TransferStatus tracks a remittance through the corridor.
type TransferStatus string

const (
	TransferPending    TransferStatus = "pending"
	TransferProcessing TransferStatus = "processing"
	TransferCompleted  TransferStatus = "completed"
	TransferFailed     TransferStatus = "failed"
	TransferCancelled  TransferStatus = "cancelled"
)

// CrossBorderTransfer is a remittance initiated through the yield contract.
type CrossBorderTransfer struct {
	ID              string          `json:"id"`
	From            string          `json:"from"`
	To              string          `json:"to"`
	FromCurrency    string          `json:"from_currency"`
	ToCurrency      string          `json:"to_currency"`
	Amount          decimal.Decimal `json:"amount"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
	Fees            decimal.Decimal `json:"fees"`
	Corridor        string          `json:"corridor"`
	UseYieldPool    bool            `json:"use_yield_pool"`
	Status          TransferStatus  `json:"status"`
	Timestamp       time.Time       `json:"timestamp"`
	MoneyGramRef    string          `json:"moneygram_ref"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
}
