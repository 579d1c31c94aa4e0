package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/engine"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
)

const dateLayout = "2006-01-02"

func xlm(d decimal.Decimal) string {
	return amount.Format(d, engine.Symbol)
}

func table(w io.Writer, header string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	tw.Flush()
}

type challengeView struct {
	Challenge model.Challenge         `json:"challenge"`
	Progress  model.ChallengeProgress `json:"progress"`
	Status    progress.Status         `json:"status"`
}

func renderChallenge(v challengeView) func(io.Writer) {
	return func(w io.Writer) {
		c, p := v.Challenge, v.Progress
		track := "on track"
		if !p.OnTrack {
			track = "behind schedule"
		}
		fmt.Fprintf(w, "Challenge %s: %s\n", c.ID, c.Name)
		if c.Description != "" {
			fmt.Fprintf(w, "  %-14s%s\n", "Description:", c.Description)
		}
		fmt.Fprintf(w, "  %-14s%s\n", "Creator:", c.Creator)
		fmt.Fprintf(w, "  %-14s%s\n", "Participants:", strings.Join(c.Participants, ", "))
		fmt.Fprintf(w, "  %-14s%s\n", "Goal:", xlm(c.GoalAmount))
		fmt.Fprintf(w, "  %-14s%s (%s%%)\n", "Saved:", xlm(c.CurrentAmount), p.ProgressPercentage.Round(2).String())
		fmt.Fprintf(w, "  %-14s%s\n", "Remaining:", xlm(p.RemainingAmount))
		fmt.Fprintf(w, "  %-14s%s per week, week %d of %d\n", "Schedule:", xlm(c.WeeklyAmount), p.WeeksPassed+1, p.TotalWeeks)
		fmt.Fprintf(w, "  %-14s%s (%d days left)\n", "Deadline:", c.Deadline.UTC().Format(dateLayout), p.DaysLeft)
		fmt.Fprintf(w, "  %-14s%s, %s\n", "Status:", v.Status, track)
	}
}

func renderChallenges(list []model.Challenge, now time.Time) func(io.Writer) {
	return func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No challenges found.")
			return
		}
		rows := make([][]string, 0, len(list))
		for _, c := range list {
			rows = append(rows, []string{
				c.ID,
				c.Name,
				xlm(c.CurrentAmount),
				xlm(c.GoalAmount),
				progress.Percentage(c).Round(2).String() + "%",
				string(progress.StatusOf(c, now)),
				c.Deadline.UTC().Format(dateLayout),
			})
		}
		table(w, "ID\tNAME\tSAVED\tGOAL\tPROGRESS\tSTATUS\tDEADLINE", rows)
	}
}

func renderNotifications(w io.Writer, list []model.Notification) {
	// Stored newest first; print in the order they happened.
	for i := len(list) - 1; i >= 0; i-- {
		n := list[i]
		fmt.Fprintf(w, "  [%s] %s\n", n.Type, n.Message)
	}
}

type statsView struct {
	Stats   model.SavingsStats   `json:"stats"`
	Rewards []model.RewardRecord `json:"rewards"`
}

func renderStats(v statsView) func(io.Writer) {
	return func(w io.Writer) {
		s := v.Stats
		fmt.Fprintf(w, "Savings for %s\n", s.User)
		fmt.Fprintf(w, "  %-20s%s\n", "Total saved:", xlm(s.TotalSaved))
		fmt.Fprintf(w, "  %-20s%d active, %d completed\n", "Challenges:", s.ActiveChallenges, s.CompletedChallenges)
		fmt.Fprintf(w, "  %-20s%d\n", "Contributions:", s.TotalContributions)
		fmt.Fprintf(w, "  %-20s%s\n", "Weekly average:", xlm(s.AverageWeeklyContribution))
		fmt.Fprintf(w, "  %-20s%d weeks (longest %d)\n", "Streak:", s.CurrentStreak, s.LongestStreak)
		fmt.Fprintf(w, "  %-20s%s\n", "SaveCoin:", amount.Format(s.SaveCoinBalance, "SAVE"))
		if len(v.Rewards) > 0 {
			fmt.Fprintf(w, "  %-20s%d\n", "Rewards earned:", len(v.Rewards))
		}
	}
}

func renderPools(list []model.YieldPool) func(io.Writer) {
	return func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No pools found.")
			return
		}
		rows := make([][]string, 0, len(list))
		for _, p := range list {
			state := "active"
			if !p.IsActive {
				state = "inactive"
			}
			rows = append(rows, []string{
				p.ID,
				p.Name,
				p.Corridor,
				p.APY().String() + "%",
				amount.Format(p.TotalDeposited, p.BaseCurrency),
				fmt.Sprint(len(p.Participants)),
				state,
			})
		}
		table(w, "ID\tNAME\tCORRIDOR\tAPY\tDEPOSITED\tUSERS\tSTATE", rows)
	}
}

func renderPositions(list []model.YieldPosition) func(io.Writer) {
	return func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No positions found.")
			return
		}
		rows := make([][]string, 0, len(list))
		for _, p := range list {
			rows = append(rows, []string{
				p.PoolID,
				amount.Format(p.Principal, ""),
				amount.Format(p.YieldEarned, ""),
				p.LockUntil.UTC().Format(dateLayout),
				fmt.Sprint(p.AutoCompound),
			})
		}
		table(w, "POOL\tPRINCIPAL\tYIELD\tLOCKED UNTIL\tCOMPOUND", rows)
	}
}

func renderTransfer(t model.CrossBorderTransfer) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "Transfer %s via %s\n", t.ID, t.Corridor)
		fmt.Fprintf(w, "  %-12s%s\n", "Amount:", amount.Format(t.Amount, t.FromCurrency))
		fmt.Fprintf(w, "  %-12s%s\n", "Fees:", amount.Format(t.Fees, t.FromCurrency))
		fmt.Fprintf(w, "  %-12s%s\n", "Rate:", t.ExchangeRate.String())
		fmt.Fprintf(w, "  %-12s%s\n", "Recipient:", t.To)
		fmt.Fprintf(w, "  %-12s%s\n", "Reference:", t.MoneyGramRef)
		fmt.Fprintf(w, "  %-12s%s\n", "Status:", t.Status)
	}
}

func renderQuote(from, to string, q progress.TransferQuote) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "Quote %s -> %s\n", from, to)
		fmt.Fprintf(w, "  %-12s%s\n", "Amount:", amount.Format(q.Amount, from))
		fmt.Fprintf(w, "  %-12s%s\n", "Fees:", amount.Format(q.Fees, from))
		fmt.Fprintf(w, "  %-12s%s\n", "Rate:", q.Rate.String())
		fmt.Fprintf(w, "  %-12s%s\n", "Received:", amount.Format(q.Received, to))
	}
}
