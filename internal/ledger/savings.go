package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

const (
	secondsPerWeek = 7 * 24 * 60 * 60

	// streakWindow is the longest gap between two contributions that still
	// extends a participant's streak.
	streakWindow = 8 * 24 * 60 * 60

	maxDurationWeeks = 104
)

func challengeNotFound(id uint32) error {
	return model.Errorf(model.KindChallengeNotFound, "challenge %d not found", id).WithEntity(gateway.FormatID(id))
}

func (l *Ledger) createChallenge(t *txn, a gateway.CreateChallengeArgs) (uint32, error) {
	switch {
	case a.GoalAmount <= 0 || a.WeeklyAmount <= 0:
		return 0, model.Validationf("amount", "goal and weekly amounts must be positive")
	case a.DurationWeeks == 0 || a.DurationWeeks > maxDurationWeeks:
		return 0, model.Validationf("duration_weeks", "duration must be between 1 and %d weeks", maxDurationWeeks)
	case len(a.Participants) == 0:
		return 0, model.Validationf("participants", "at least one participant is required")
	case utf8.RuneCountInString(a.Name) < 3:
		return 0, model.Validationf("name", "name must be at least 3 characters")
	}

	created := t.now.Unix()
	deadline := created + int64(a.DurationWeeks)*secondsPerWeek

	res, err := t.Exec(`
		INSERT INTO challenges
		(creator, name, description, goal_amount, weekly_amount, created_at, deadline,
		 is_active, min_weekly_required, allow_early_withdrawal)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, a.Creator, a.Name, a.Description, a.GoalAmount, a.WeeklyAmount, created, deadline,
		boolInt(a.MinWeeklyRequired), boolInt(a.AllowEarlyWithdrawal))
	if err != nil {
		return 0, fmt.Errorf("insert challenge: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("challenge id: %w", err)
	}
	id := uint32(id64)

	for i, p := range a.Participants {
		if _, err := t.Exec(`
			INSERT OR IGNORE INTO challenge_participants (challenge_id, participant, position)
			VALUES (?, ?, ?)
		`, id, p, i); err != nil {
			return 0, fmt.Errorf("insert participant: %w", err)
		}
		if _, err := t.Exec(`
			INSERT OR IGNORE INTO participant_stats (challenge_id, participant) VALUES (?, ?)
		`, id, p); err != nil {
			return 0, fmt.Errorf("init participant stats: %w", err)
		}
	}

	l.logger.Info("challenge created", "id", id, "creator", a.Creator, "goal", a.GoalAmount)
	return id, nil
}

func (l *Ledger) contribute(t *txn, a gateway.ContributeArgs) error {
	if a.Amount <= 0 {
		return model.Validationf("amount", "contribution must be positive").WithEntity(gateway.FormatID(a.ChallengeID))
	}

	ch, err := loadChallenge(t, a.ChallengeID)
	if err != nil {
		return err
	}
	entity := gateway.FormatID(ch.ID)
	if !ch.IsActive {
		return model.NewError(model.KindChallengeInactive, "challenge is not active").WithEntity(entity)
	}
	now := t.now.Unix()
	if now > ch.Deadline {
		return model.NewError(model.KindChallengeExpired, "challenge deadline has passed").WithEntity(entity)
	}
	if !contains(ch.Participants, a.Contributor) {
		return model.Errorf(model.KindNotParticipant, "%s is not a participant", a.Contributor).WithEntity(entity)
	}

	week := uint32((now-ch.CreatedAt)/secondsPerWeek) + 1
	if _, err := t.Exec(`
		INSERT INTO contributions (challenge_id, contributor, amount, timestamp, week_number, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ch.ID, a.Contributor, a.Amount, now, week, t.hash); err != nil {
		return fmt.Errorf("insert contribution: %w", err)
	}

	before := ch.CurrentAmount
	after := before + a.Amount
	if _, err := t.Exec(`UPDATE challenges SET current_amount = ? WHERE id = ?`, after, ch.ID); err != nil {
		return fmt.Errorf("update challenge amount: %w", err)
	}

	streak, err := updateParticipantStats(t, ch.ID, a.Contributor, a.Amount, now)
	if err != nil {
		return err
	}

	if err := l.mintContributionRewards(t, ch, a.Contributor, a.Amount, before, after, streak); err != nil {
		return err
	}

	l.logger.Info("contribution", "challenge", ch.ID, "contributor", a.Contributor, "amount", a.Amount, "total", after)
	if after >= ch.GoalAmount && before < ch.GoalAmount {
		l.logger.Info("challenge goal reached", "challenge", ch.ID)
	}
	return nil
}

func updateParticipantStats(t *txn, id uint32, participant string, amt, now int64) (uint32, error) {
	var last int64
	var streak uint32
	err := t.QueryRow(`
		SELECT last_contribution, current_streak FROM participant_stats
		WHERE challenge_id = ? AND participant = ?
	`, id, participant).Scan(&last, &streak)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read participant stats: %w", err)
	}

	if last > 0 && now-last <= streakWindow {
		streak++
	} else {
		streak = 1
	}

	if _, err := t.Exec(`
		INSERT INTO participant_stats
		(challenge_id, participant, total_contributed, contribution_count, last_contribution, current_streak)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(challenge_id, participant) DO UPDATE SET
			total_contributed = total_contributed + excluded.total_contributed,
			contribution_count = contribution_count + 1,
			last_contribution = excluded.last_contribution,
			current_streak = excluded.current_streak
	`, id, participant, amt, now, streak); err != nil {
		return 0, fmt.Errorf("update participant stats: %w", err)
	}
	return streak, nil
}

func (l *Ledger) finalizeChallenge(t *txn, a gateway.FinalizeArgs) error {
	ch, err := loadChallenge(t, a.ChallengeID)
	if err != nil {
		return err
	}
	entity := gateway.FormatID(ch.ID)
	if ch.Creator != a.Finalizer && !contains(ch.Participants, a.Finalizer) {
		return model.Errorf(model.KindUnauthorized, "%s may not finalize this challenge", a.Finalizer).WithEntity(entity)
	}
	if !ch.IsActive {
		return model.NewError(model.KindChallengeInactive, "challenge already finalized").WithEntity(entity)
	}

	goalReached := ch.CurrentAmount >= ch.GoalAmount
	expired := t.now.Unix() > ch.Deadline
	if !goalReached && !expired {
		return model.NewError(model.KindContractError, "challenge can be finalized only after the goal is reached or the deadline passes").
			WithEntity(entity).
			WithDetail("current_amount", ch.CurrentAmount).
			WithDetail("goal_amount", ch.GoalAmount)
	}

	if _, err := t.Exec(`UPDATE challenges SET is_active = 0 WHERE id = ?`, ch.ID); err != nil {
		return fmt.Errorf("finalize challenge: %w", err)
	}
	l.logger.Info("challenge finalized", "challenge", ch.ID, "goal_reached", goalReached)
	return nil
}

func loadChallenge(t *txn, id uint32) (gateway.ChallengeRecord, error) {
	var c gateway.ChallengeRecord
	var active, minWeekly, early int
	err := t.QueryRow(`
		SELECT id, creator, name, description, goal_amount, weekly_amount, current_amount,
		       created_at, deadline, is_active, min_weekly_required, allow_early_withdrawal
		FROM challenges WHERE id = ?
	`, id).Scan(&c.ID, &c.Creator, &c.Name, &c.Description, &c.GoalAmount, &c.WeeklyAmount,
		&c.CurrentAmount, &c.CreatedAt, &c.Deadline, &active, &minWeekly, &early)
	if errors.Is(err, sql.ErrNoRows) {
		return c, challengeNotFound(id)
	}
	if err != nil {
		return c, fmt.Errorf("load challenge: %w", err)
	}
	c.IsActive = active != 0
	c.MinWeeklyRequired = minWeekly != 0
	c.AllowEarlyWithdrawal = early != 0

	rows, err := t.Query(`
		SELECT participant FROM challenge_participants WHERE challenge_id = ? ORDER BY position
	`, id)
	if err != nil {
		return c, fmt.Errorf("load participants: %w", err)
	}
	defer rows.Close()
	c.Participants = []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return c, fmt.Errorf("scan participant: %w", err)
		}
		c.Participants = append(c.Participants, p)
	}
	return c, rows.Err()
}

func userChallenges(t *txn, user string) ([]uint32, error) {
	rows, err := t.Query(`
		SELECT challenge_id FROM challenge_participants WHERE participant = ? ORDER BY challenge_id
	`, user)
	if err != nil {
		return nil, fmt.Errorf("user challenges: %w", err)
	}
	defer rows.Close()

	ids := []uint32{}
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan challenge id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func contributions(t *txn, id uint32) ([]gateway.ContributionRecord, error) {
	if err := challengeExists(t, id); err != nil {
		return nil, err
	}
	rows, err := t.Query(`
		SELECT challenge_id, contributor, amount, timestamp, week_number, tx_hash
		FROM contributions WHERE challenge_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("contributions: %w", err)
	}
	defer rows.Close()

	out := []gateway.ContributionRecord{}
	for rows.Next() {
		var r gateway.ContributionRecord
		if err := rows.Scan(&r.ChallengeID, &r.Contributor, &r.Amount, &r.Timestamp, &r.WeekNumber, &r.TransactionHash); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func participantStats(t *txn, id uint32, participant string) (gateway.ParticipantStatsRecord, error) {
	var s gateway.ParticipantStatsRecord
	if err := challengeExists(t, id); err != nil {
		return s, err
	}
	err := t.QueryRow(`
		SELECT total_contributed, contribution_count, last_contribution, current_streak
		FROM participant_stats WHERE challenge_id = ? AND participant = ?
	`, id, participant).Scan(&s.TotalContributed, &s.ContributionCount, &s.LastContribution, &s.CurrentStreak)
	if errors.Is(err, sql.ErrNoRows) {
		return gateway.ParticipantStatsRecord{}, nil
	}
	if err != nil {
		return s, fmt.Errorf("participant stats: %w", err)
	}
	return s, nil
}

func challengeExists(t *txn, id uint32) error {
	var one int
	err := t.QueryRow(`SELECT 1 FROM challenges WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return challengeNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("challenge exists: %w", err)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
