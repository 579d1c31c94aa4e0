package ledger

import (
	"fmt"

	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

// RewardConfig is the SaveCoin reward schedule. Amounts are ledger units,
// multipliers are basis points (10000 = 1x).
type RewardConfig struct {
	BaseWeeklyReward         int64
	MilestoneMultiplier      int64
	CompletionMultiplier     int64
	StreakBonusPerWeek       int64
	MaxStreakBonus           int64
	MinContributionForReward int64
}

// DefaultRewardConfig matches the reward-token contract's initialization.
var DefaultRewardConfig = RewardConfig{
	BaseWeeklyReward:         10_0000000,
	MilestoneMultiplier:      15000,
	CompletionMultiplier:     50000,
	StreakBonusPerWeek:       1_0000000,
	MaxStreakBonus:           10_0000000,
	MinContributionForReward: 1_0000000,
}

const (
	bpsOne = 10000

	// Contribution-size scaling thresholds (ledger units).
	largeContribution  = 100_0000000
	mediumContribution = 50_0000000

	// milestonePercent is the progress at which the milestone reward mints.
	milestonePercent = 50
)

// contributionFactor scales rewards up for larger contributions.
func contributionFactor(amt int64) int64 {
	switch {
	case amt >= largeContribution:
		return 12000
	case amt >= mediumContribution:
		return 11000
	default:
		return bpsOne
	}
}

// calculateReward returns the unscaled reward for a reward type.
func (c RewardConfig) calculateReward(kind model.RewardType, streakWeeks uint32) int64 {
	switch kind {
	case model.RewardWeeklyContribution:
		return c.BaseWeeklyReward
	case model.RewardMilestoneReached:
		return c.BaseWeeklyReward * c.MilestoneMultiplier / bpsOne
	case model.RewardChallengeCompleted:
		return c.BaseWeeklyReward * c.CompletionMultiplier / bpsOne
	case model.RewardStreakBonus:
		return min(int64(streakWeeks)*c.StreakBonusPerWeek, c.MaxStreakBonus)
	}
	return 0
}

// mintContributionRewards issues every reward a contribution earns: the
// weekly reward and streak bonus to the contributor, the milestone reward
// when the challenge crosses half its goal, and the completion reward to
// every participant when it reaches the goal.
func (l *Ledger) mintContributionRewards(t *txn, ch gateway.ChallengeRecord, contributor string, amt, before, after int64, streak uint32) error {
	cfg := l.rewards
	if amt < cfg.MinContributionForReward {
		return nil
	}
	factor := contributionFactor(amt)

	if err := mint(t, contributor, cfg.calculateReward(model.RewardWeeklyContribution, streak), model.RewardWeeklyContribution, ch.ID, factor); err != nil {
		return err
	}
	if streak >= 2 {
		if err := mint(t, contributor, cfg.calculateReward(model.RewardStreakBonus, streak), model.RewardStreakBonus, ch.ID, factor); err != nil {
			return err
		}
	}

	half := ch.GoalAmount * milestonePercent / 100
	if before < half && after >= half {
		if err := mint(t, contributor, cfg.calculateReward(model.RewardMilestoneReached, streak), model.RewardMilestoneReached, ch.ID, factor); err != nil {
			return err
		}
	}
	if before < ch.GoalAmount && after >= ch.GoalAmount {
		reward := cfg.calculateReward(model.RewardChallengeCompleted, streak)
		for _, p := range ch.Participants {
			if err := mint(t, p, reward, model.RewardChallengeCompleted, ch.ID, bpsOne); err != nil {
				return err
			}
		}
	}
	return nil
}

// mint credits amt*multiplier/10000 SaveCoin to the recipient and records it.
func mint(t *txn, to string, amt int64, kind model.RewardType, challengeID uint32, multiplier int64) error {
	if amt <= 0 {
		return nil
	}
	final := amt * multiplier / bpsOne

	if _, err := t.Exec(`
		INSERT INTO balances (account, amount) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET amount = amount + excluded.amount
	`, to, final); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if _, err := t.Exec(`
		INSERT INTO rewards (recipient, amount, reward_type, challenge_id, timestamp, multiplier)
		VALUES (?, ?, ?, ?, ?, ?)
	`, to, final, string(kind), challengeID, t.now.Unix(), multiplier); err != nil {
		return fmt.Errorf("record reward: %w", err)
	}
	return nil
}

func balance(t *txn, account string) (int64, error) {
	var amt int64
	err := t.QueryRow(`SELECT COALESCE((SELECT amount FROM balances WHERE account = ?), 0)`, account).Scan(&amt)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return amt, nil
}

func rewardHistory(t *txn, account string) ([]gateway.RewardRecord, error) {
	rows, err := t.Query(`
		SELECT recipient, amount, reward_type, challenge_id, timestamp, multiplier
		FROM rewards WHERE recipient = ? ORDER BY seq
	`, account)
	if err != nil {
		return nil, fmt.Errorf("reward history: %w", err)
	}
	defer rows.Close()

	out := []gateway.RewardRecord{}
	for rows.Next() {
		var r gateway.RewardRecord
		if err := rows.Scan(&r.Recipient, &r.Amount, &r.RewardType, &r.ChallengeID, &r.Timestamp, &r.Multiplier); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
