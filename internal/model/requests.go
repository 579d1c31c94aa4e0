package model

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Validation limits enforced before any gateway call.
const (
	MinNameLength        = 3
	MaxNameLength        = 50
	MaxDescriptionLength = 500
	MinParticipants      = 1
	MaxParticipants      = 20
	MinDurationWeeks     = 1
	MaxDurationWeeks     = 104
)

// CreateChallengeRequest carries user input for a new challenge.
type CreateChallengeRequest struct {
	Creator              string          `json:"creator" yaml:"creator"`
	Name                 string          `json:"name" yaml:"name"`
	Description          string          `json:"description,omitempty" yaml:"description,omitempty"`
	GoalAmount           decimal.Decimal `json:"goal_amount" yaml:"goal"`
	WeeklyAmount         decimal.Decimal `json:"weekly_amount" yaml:"weekly"`
	DurationWeeks        int             `json:"duration_weeks" yaml:"weeks"`
	Participants         []string        `json:"participants" yaml:"participants"`
	MinWeeklyRequired    bool            `json:"min_weekly_required" yaml:"min_weekly_required"`
	AllowEarlyWithdrawal bool            `json:"allow_early_withdrawal" yaml:"allow_early_withdrawal"`
}

// Normalize trims and NFC-normalizes text fields and makes sure the creator
// is a participant exactly once. It returns a new request.
func (r CreateChallengeRequest) Normalize() CreateChallengeRequest {
	out := r
	out.Creator = strings.TrimSpace(r.Creator)
	out.Name = norm.NFC.String(strings.TrimSpace(r.Name))
	out.Description = norm.NFC.String(strings.TrimSpace(r.Description))

	seen := make(map[string]bool, len(r.Participants)+1)
	participants := make([]string, 0, len(r.Participants)+1)
	if out.Creator != "" {
		seen[out.Creator] = true
		participants = append(participants, out.Creator)
	}
	for _, p := range r.Participants {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		participants = append(participants, p)
	}
	out.Participants = participants
	return out
}

// Validate checks a normalized request. Call Normalize first.
func (r CreateChallengeRequest) Validate() error {
	if r.Creator == "" {
		return Validationf("creator", "creator address is required")
	}
	if n := utf8.RuneCountInString(r.Name); n < MinNameLength || n > MaxNameLength {
		return Validationf("name", "name must be between %d and %d characters", MinNameLength, MaxNameLength)
	}
	if utf8.RuneCountInString(r.Description) > MaxDescriptionLength {
		return Validationf("description", "description must be at most %d characters", MaxDescriptionLength)
	}
	if err := checkAmount("goal_amount", "goal amount", r.GoalAmount); err != nil {
		return err
	}
	if err := checkAmount("weekly_amount", "weekly amount", r.WeeklyAmount); err != nil {
		return err
	}
	if r.WeeklyAmount.GreaterThan(r.GoalAmount) {
		return Validationf("weekly_amount", "weekly amount cannot exceed goal amount")
	}
	if r.DurationWeeks < MinDurationWeeks || r.DurationWeeks > MaxDurationWeeks {
		return Validationf("duration_weeks", "duration must be between %d and %d weeks", MinDurationWeeks, MaxDurationWeeks)
	}
	if n := len(r.Participants); n < MinParticipants || n > MaxParticipants {
		return Validationf("participants", "participant count must be between %d and %d", MinParticipants, MaxParticipants).
			WithDetail("count", n)
	}
	return nil
}

// ContributeRequest deposits into a challenge.
type ContributeRequest struct {
	ChallengeID string          `json:"challenge_id" yaml:"challenge"`
	Contributor string          `json:"contributor" yaml:"from"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
}

// Validate checks the request shape. Membership is left to the ledger.
func (r ContributeRequest) Validate() error {
	if strings.TrimSpace(r.ChallengeID) == "" {
		return Validationf("challenge_id", "challenge id is required")
	}
	if strings.TrimSpace(r.Contributor) == "" {
		return Validationf("contributor", "contributor address is required")
	}
	if err := checkAmount("amount", "contribution amount", r.Amount); err != nil {
		return err.WithEntity(r.ChallengeID)
	}
	return nil
}

// FinalizeRequest closes a challenge that reached its goal or deadline.
type FinalizeRequest struct {
	ChallengeID string `json:"challenge_id" yaml:"challenge"`
	Finalizer   string `json:"finalizer" yaml:"by"`
}

// Validate checks the request shape.
func (r FinalizeRequest) Validate() error {
	if strings.TrimSpace(r.ChallengeID) == "" {
		return Validationf("challenge_id", "challenge id is required")
	}
	if strings.TrimSpace(r.Finalizer) == "" {
		return Validationf("finalizer", "finalizer address is required")
	}
	return nil
}

// CreatePoolRequest creates a cross-border yield pool (admin only).
type CreatePoolRequest struct {
	Admin               string          `json:"admin" yaml:"admin"`
	Name                string          `json:"name" yaml:"name"`
	BaseCurrency        string          `json:"base_currency" yaml:"base"`
	TargetCurrency      string          `json:"target_currency" yaml:"target"`
	APYBasisPoints      int             `json:"apy_basis_points" yaml:"apy_bps"`
	MinDeposit          decimal.Decimal `json:"min_deposit" yaml:"min_deposit"`
	MaxDeposit          decimal.Decimal `json:"max_deposit" yaml:"max_deposit"`
	LockDays            int             `json:"lock_days" yaml:"lock_days"`
	MoneyGramCorridorID string          `json:"moneygram_corridor_id,omitempty" yaml:"moneygram_corridor_id,omitempty"`
}

// Validate checks pool parameters.
func (r CreatePoolRequest) Validate() error {
	if strings.TrimSpace(r.Admin) == "" {
		return Validationf("admin", "admin address is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Name)) < MinNameLength {
		return Validationf("name", "pool name must be at least %d characters", MinNameLength)
	}
	if r.BaseCurrency == "" || r.TargetCurrency == "" {
		return Validationf("currency", "base and target currencies are required")
	}
	if r.APYBasisPoints < 0 {
		return Validationf("apy_basis_points", "apy cannot be negative")
	}
	if r.MinDeposit.IsNegative() || !r.MaxDeposit.IsPositive() || r.MinDeposit.GreaterThan(r.MaxDeposit) {
		return Validationf("deposit_limits", "deposit limits must satisfy 0 <= min <= max and max > 0")
	}
	if err := checkAmount("max_deposit", "maximum deposit", r.MaxDeposit); err != nil {
		return err
	}
	if !r.MinDeposit.IsZero() {
		if err := checkAmount("min_deposit", "minimum deposit", r.MinDeposit); err != nil {
			return err
		}
	}
	if r.LockDays < 0 {
		return Validationf("lock_days", "lock period cannot be negative")
	}
	return nil
}

// DepositRequest adds funds to a yield pool.
type DepositRequest struct {
	User         string          `json:"user" yaml:"user"`
	PoolID       string          `json:"pool_id" yaml:"pool"`
	Amount       decimal.Decimal `json:"amount" yaml:"amount"`
	AutoCompound bool            `json:"auto_compound" yaml:"auto_compound"`
}

// Validate checks the request shape. Pool limits are enforced by the ledger.
func (r DepositRequest) Validate() error {
	if strings.TrimSpace(r.User) == "" {
		return Validationf("user", "user address is required")
	}
	if strings.TrimSpace(r.PoolID) == "" {
		return Validationf("pool_id", "pool id is required")
	}
	if err := checkAmount("amount", "deposit amount", r.Amount); err != nil {
		return err.WithEntity(r.PoolID)
	}
	return nil
}

// SendCrossBorderRequest initiates a remittance.
type SendCrossBorderRequest struct {
	Sender       string          `json:"sender" yaml:"sender"`
	Recipient    string          `json:"recipient" yaml:"recipient"`
	FromCurrency string          `json:"from_currency" yaml:"from"`
	ToCurrency   string          `json:"to_currency" yaml:"to"`
	Amount       decimal.Decimal `json:"amount" yaml:"amount"`
	UseYieldPool bool            `json:"use_yield_pool" yaml:"use_yield_pool"`
}

// Validate checks the request shape.
func (r SendCrossBorderRequest) Validate() error {
	if strings.TrimSpace(r.Sender) == "" {
		return Validationf("sender", "sender address is required")
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return Validationf("recipient", "recipient is required")
	}
	if r.FromCurrency == "" || r.ToCurrency == "" {
		return Validationf("currency", "source and destination currencies are required")
	}
	if strings.EqualFold(r.FromCurrency, r.ToCurrency) {
		return Validationf("currency", "source and destination currencies must differ")
	}
	if err := checkAmount("amount", "transfer amount", r.Amount); err != nil {
		return err
	}
	return nil
}
