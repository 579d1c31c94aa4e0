package gateway

// Wire types mirror the contract structs. Amounts are ledger units,
// timestamps are unix seconds, ids are the contract's u32 counters.

// CreateChallengeArgs are the create_challenge parameters.
type CreateChallengeArgs struct {
	Creator              string   `json:"creator"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	GoalAmount           int64    `json:"goal_amount"`
	WeeklyAmount         int64    `json:"weekly_amount"`
	Participants         []string `json:"participants"`
	DurationWeeks        uint32   `json:"duration_weeks"`
	MinWeeklyRequired    bool     `json:"min_weekly_required"`
	AllowEarlyWithdrawal bool     `json:"allow_early_withdrawal"`
}

// ContributeArgs are the contribute parameters.
type ContributeArgs struct {
	ChallengeID uint32 `json:"challenge_id"`
	Contributor string `json:"contributor"`
	Amount      int64  `json:"amount"`
}

// FinalizeArgs are the finalize_challenge parameters.
type FinalizeArgs struct {
	ChallengeID uint32 `json:"challenge_id"`
	Finalizer   string `json:"finalizer"`
}

// ChallengeArgs identify a challenge.
type ChallengeArgs struct {
	ChallengeID uint32 `json:"challenge_id"`
}

// ParticipantArgs identify a participant within a challenge.
type ParticipantArgs struct {
	ChallengeID uint32 `json:"challenge_id"`
	Participant string `json:"participant"`
}

// UserArgs identify an account.
type UserArgs struct {
	User string `json:"user"`
}

// CreatePoolArgs are the create_yield_pool parameters.
type CreatePoolArgs struct {
	Admin               string `json:"admin"`
	Name                string `json:"name"`
	BaseCurrency        string `json:"base_currency"`
	TargetCurrency      string `json:"target_currency"`
	Corridor            string `json:"corridor"`
	APYBasisPoints      uint32 `json:"apy_basis_points"`
	MinDeposit          int64  `json:"min_deposit"`
	MaxDeposit          int64  `json:"max_deposit"`
	LockDuration        uint64 `json:"lock_duration"`
	MoneyGramCorridorID string `json:"moneygram_corridor_id"`
}

// DepositArgs are the deposit_to_pool parameters.
type DepositArgs struct {
	User         string `json:"user"`
	PoolID       uint32 `json:"pool_id"`
	Amount       int64  `json:"amount"`
	AutoCompound bool   `json:"auto_compound"`
}

// PoolArgs identify a yield pool.
type PoolArgs struct {
	PoolID uint32 `json:"pool_id"`
}

// DistributeYieldArgs are the distribute_yield parameters.
type DistributeYieldArgs struct {
	Admin      string `json:"admin"`
	PoolID     uint32 `json:"pool_id"`
	TotalYield int64  `json:"total_yield"`
}

// UpdateExchangeRateArgs are the update_exchange_rate parameters.
type UpdateExchangeRateArgs struct {
	Admin        string `json:"admin"`
	CurrencyPair string `json:"currency_pair"`
	NewRate      int64  `json:"new_rate"`
}

// SendCrossBorderArgs are the send_cross_border parameters.
type SendCrossBorderArgs struct {
	Sender       string `json:"sender"`
	ToAddress    string `json:"to_address"`
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	Amount       int64  `json:"amount"`
	UseYieldPool bool   `json:"use_yield_pool"`
}

// ExchangeRateArgs identify a currency pair such as "USDC-NGN".
type ExchangeRateArgs struct {
	CurrencyPair string `json:"currency_pair"`
}

// ProjectedYieldArgs are the calculate_projected_yield parameters.
type ProjectedYieldArgs struct {
	PoolID       uint32 `json:"pool_id"`
	Amount       int64  `json:"amount"`
	DurationDays uint32 `json:"duration_days"`
}

// ChallengeRecord is the on-chain SavingsChallenge.
type ChallengeRecord struct {
	ID                   uint32   `json:"id"`
	Creator              string   `json:"creator"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	GoalAmount           int64    `json:"goal_amount"`
	WeeklyAmount         int64    `json:"weekly_amount"`
	CurrentAmount        int64    `json:"current_amount"`
	Participants         []string `json:"participants"`
	CreatedAt            int64    `json:"created_at"`
	Deadline             int64    `json:"deadline"`
	IsActive             bool     `json:"is_active"`
	MinWeeklyRequired    bool     `json:"min_weekly_required"`
	AllowEarlyWithdrawal bool     `json:"allow_early_withdrawal"`
}

// ContributionRecord is the on-chain Contribution.
type ContributionRecord struct {
	ChallengeID     uint32 `json:"challenge_id"`
	Contributor     string `json:"contributor"`
	Amount          int64  `json:"amount"`
	Timestamp       int64  `json:"timestamp"`
	WeekNumber      uint32 `json:"week_number"`
	TransactionHash string `json:"transaction_hash"`
}

// ParticipantStatsRecord is the on-chain ParticipantStats.
type ParticipantStatsRecord struct {
	TotalContributed  int64  `json:"total_contributed"`
	ContributionCount uint32 `json:"contribution_count"`
	LastContribution  int64  `json:"last_contribution"`
	CurrentStreak     uint32 `json:"current_streak"`
}

// RewardRecord is one SaveCoin mint.
type RewardRecord struct {
	Recipient   string `json:"recipient"`
	Amount      int64  `json:"amount"`
	RewardType  string `json:"reward_type"`
	ChallengeID uint32 `json:"challenge_id"`
	Timestamp   int64  `json:"timestamp"`
	Multiplier  uint32 `json:"multiplier"`
}

// PoolRecord is the on-chain YieldPool.
type PoolRecord struct {
	ID                  uint32   `json:"id"`
	Name                string   `json:"name"`
	BaseCurrency        string   `json:"base_currency"`
	TargetCurrency      string   `json:"target_currency"`
	Corridor            string   `json:"corridor"`
	TotalDeposited      int64    `json:"total_deposited"`
	TotalYieldEarned    int64    `json:"total_yield_earned"`
	APYBasisPoints      uint32   `json:"apy_basis_points"`
	Participants        []string `json:"participants"`
	IsActive            bool     `json:"is_active"`
	MinDeposit          int64    `json:"min_deposit"`
	MaxDeposit          int64    `json:"max_deposit"`
	LockDuration        uint64   `json:"lock_duration"`
	MoneyGramCorridorID string   `json:"moneygram_corridor_id"`
}

// PositionRecord is the on-chain YieldPosition.
type PositionRecord struct {
	User               string `json:"user"`
	PoolID             uint32 `json:"pool_id"`
	Principal          int64  `json:"principal"`
	YieldEarned        int64  `json:"yield_earned"`
	DepositTimestamp   int64  `json:"deposit_timestamp"`
	LastClaimTimestamp int64  `json:"last_claim_timestamp"`
	LockUntil          int64  `json:"lock_until"`
	AutoCompound       bool   `json:"auto_compound"`
	TransactionHash    string `json:"transaction_hash"`
}

// TransferRecord is the on-chain CrossBorderTransaction.
type TransferRecord struct {
	ID              uint32 `json:"id"`
	FromUser        string `json:"from_user"`
	ToAddress       string `json:"to_address"`
	FromCurrency    string `json:"from_currency"`
	ToCurrency      string `json:"to_currency"`
	Amount          int64  `json:"amount"`
	ExchangeRate    int64  `json:"exchange_rate"`
	Fees            int64  `json:"fees"`
	Corridor        string `json:"corridor"`
	TransactionType string `json:"transaction_type"`
	Status          string `json:"status"`
	Timestamp       int64  `json:"timestamp"`
	MoneyGramRef    string `json:"moneygram_ref"`
	TransactionHash string `json:"transaction_hash"`
}
