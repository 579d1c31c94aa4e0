package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Challenge is a group savings goal backed by the savings-challenge contract.
type Challenge struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	GoalAmount      decimal.Decimal `json:"goal_amount"`
	WeeklyAmount    decimal.Decimal `json:"weekly_amount"`
	CurrentAmount   decimal.Decimal `json:"current_amount"`
	Participants    []string        `json:"participants"`
	Creator         string          `json:"creator"`
	CreatedAt       time.Time       `json:"created_at"`
	Deadline        time.Time       `json:"deadline"`
	IsActive        bool            `json:"is_active"`
	IsCompleted     bool            `json:"is_completed"`
	ContractAddress string          `json:"contract_address,omitempty"`

	// Contract-level rules carried from the on-chain record.
	MinWeeklyRequired    bool `json:"min_weekly_required"`
	AllowEarlyWithdrawal bool `json:"allow_early_withdrawal"`
}

// HasParticipant reports whether addr is a member of the challenge.
func (c Challenge) HasParticipant(addr string) bool {
	for _, p := range c.Participants {
		if p == addr {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing the
// participant slice held by the store or cache.
func (c Challenge) Clone() Challenge {
	out := c
	if c.Participants != nil {
		out.Participants = append([]string(nil), c.Participants...)
	}
	return out
}

// Contribution is a single deposit into a challenge.
//
// TransactionHash carries PendingHashPrefix until the ledger confirms the
// contribution; refetched authoritative records supersede placeholders.
type Contribution struct {
	ChallengeID     string          `json:"challenge_id"`
	Contributor     string          `json:"contributor"`
	Amount          decimal.Decimal `json:"amount"`
	Timestamp       time.Time       `json:"timestamp"`
	TransactionHash string          `json:"transaction_hash"`
	WeekNumber      int             `json:"week_number"`
}

// PendingHashPrefix marks a contribution that has not been confirmed on-chain.
const PendingHashPrefix = "pending-"

// IsPending reports whether the contribution is an unconfirmed placeholder.
func (c Contribution) IsPending() bool {
	return len(c.TransactionHash) >= len(PendingHashPrefix) &&
		c.TransactionHash[:len(PendingHashPrefix)] == PendingHashPrefix
}

// ChallengeProgress is derived from a Challenge and the current time.
type ChallengeProgress struct {
	ChallengeID        string          `json:"challenge_id"`
	ProgressPercentage decimal.Decimal `json:"progress_percentage"`
	RemainingAmount    decimal.Decimal `json:"remaining_amount"`
	DaysLeft           int             `json:"days_left"`
	WeeksPassed        int             `json:"weeks_passed"`
	TotalWeeks         int             `json:"total_weeks"`
	OnTrack            bool            `json:"on_track"`
	ExpectedAmount     decimal.Decimal `json:"expected_amount"`
	WeeklyTarget       decimal.Decimal `json:"weekly_target"`
}

// ParticipantProgress summarizes one member's contributions to a challenge.
type ParticipantProgress struct {
	ChallengeID       string          `json:"challenge_id"`
	Participant       string          `json:"participant"`
	TotalContributed  decimal.Decimal `json:"total_contributed"`
	ContributionCount int             `json:"contribution_count"`
	LastContribution  time.Time       `json:"last_contribution,omitempty"`
	CurrentStreak     int             `json:"current_streak"`
	SharePercentage   decimal.Decimal `json:"share_percentage"`
}

// SavingsStats aggregates a user's challenges and contributions.
// It is always fully recomputed, never incrementally maintained.
type SavingsStats struct {
	User                      string          `json:"user"`
	TotalSaved                decimal.Decimal `json:"total_saved"`
	ActiveChallenges          int             `json:"active_challenges"`
	CompletedChallenges       int             `json:"completed_challenges"`
	SaveCoinBalance           decimal.Decimal `json:"save_coin_balance"`
	CurrentStreak             int             `json:"current_streak"`
	LongestStreak             int             `json:"longest_streak"`
	TotalContributions        int             `json:"total_contributions"`
	AverageWeeklyContribution decimal.Decimal `json:"average_weekly_contribution"`
}

// RewardType mirrors the reward-token contract's reward categories.
type RewardType string

const (
	RewardWeeklyContribution RewardType = "weekly_contribution"
	RewardMilestoneReached   RewardType = "milestone_reached"
	RewardChallengeCompleted RewardType = "challenge_completed"
	RewardStreakBonus        RewardType = "streak_bonus"
	RewardReferralBonus      RewardType = "referral_bonus"
)

// RewardRecord is one SaveCoin mint.
type RewardRecord struct {
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Type        RewardType      `json:"type"`
	ChallengeID string          `json:"challenge_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
