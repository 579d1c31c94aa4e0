package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
	"github.com/stellarsave/stellarsave/internal/store"
)

// NewChallengeCommand groups the savings challenge commands.
func NewChallengeCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Create and inspect savings challenges",
	}
	cmd.AddCommand(newChallengeCreateCommand(opts))
	cmd.AddCommand(newChallengeListCommand(opts))
	cmd.AddCommand(newChallengeShowCommand(opts))
	return cmd
}

type challengeCreateFlags struct {
	creator, name, description string
	goal, weekly               string
	weeks                      int
	participants               []string
	minWeekly, earlyWithdrawal bool
}

func newChallengeCreateCommand(opts *RootOptions) *cobra.Command {
	var f challengeCreateFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a savings challenge",
		Long: `Create a savings challenge. The creator always joins as a participant.

Example:
  stellarsave challenge create --creator GALICE --name "Emergency fund" \
    --goal 1000 --weekly 50 --weeks 20 --participant GBOB`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := amount.Parse(f.goal)
			if err != nil {
				return err
			}
			weekly, err := amount.Parse(f.weekly)
			if err != nil {
				return err
			}
			req := model.CreateChallengeRequest{
				Creator:              f.creator,
				Name:                 f.name,
				Description:          f.description,
				GoalAmount:           goal,
				WeeklyAmount:         weekly,
				DurationWeeks:        f.weeks,
				Participants:         f.participants,
				MinWeeklyRequired:    f.minWeekly,
				AllowEarlyWithdrawal: f.earlyWithdrawal,
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := app.Engine.CreateChallenge(ctx, req)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(c, func(w io.Writer) {
					fmt.Fprintf(w, "Created challenge %s %q for %s, ends %s\n",
						c.ID, c.Name, xlm(c.GoalAmount), c.Deadline.UTC().Format(dateLayout))
				})
			})
		},
	}
	cmd.Flags().StringVar(&f.creator, "creator", "", "creator account")
	cmd.Flags().StringVar(&f.name, "name", "", "challenge name")
	cmd.Flags().StringVar(&f.description, "description", "", "challenge description")
	cmd.Flags().StringVar(&f.goal, "goal", "", "goal amount")
	cmd.Flags().StringVar(&f.weekly, "weekly", "", "weekly target amount")
	cmd.Flags().IntVar(&f.weeks, "weeks", 0, "duration in weeks")
	cmd.Flags().StringSliceVar(&f.participants, "participant", nil, "participant account (repeatable)")
	cmd.Flags().BoolVar(&f.minWeekly, "min-weekly", false, "require the weekly amount every week")
	cmd.Flags().BoolVar(&f.earlyWithdrawal, "early-withdrawal", false, "allow early withdrawal")
	for _, name := range []string{"creator", "name", "goal", "weekly", "weeks"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newChallengeListCommand(opts *RootOptions) *cobra.Command {
	var status, sortBy, order string
	cmd := &cobra.Command{
		Use:   "list <user>",
		Short: "List a user's challenges",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.Filter{
				Status: store.StatusFilter(status),
				SortBy: store.SortField(sortBy),
				Order:  store.Order(order),
			}
			if err := filter.Validate(); err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				list, err := app.Engine.UserChallenges(ctx, args[0], filter)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(list, renderChallenges(list, opts.clock.Now()))
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (all|active|completed|expired|cancelled)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "sort by (createdAt|deadline|progress|participantCount)")
	cmd.Flags().StringVar(&order, "order", "", "sort order (asc|desc)")
	return cmd
}

func newChallengeShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <challenge-id>",
		Short: "Show a challenge and its progress",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				c, err := app.Engine.Challenge(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := app.Engine.Progress(ctx, args[0])
				if err != nil {
					return err
				}
				v := challengeView{Challenge: c, Progress: p, Status: progress.StatusOf(c, opts.clock.Now())}
				return opts.formatter(cmd).Success(v, renderChallenge(v))
			})
		},
	}
}

// NewContributeCommand creates the contribute command.
func NewContributeCommand(opts *RootOptions) *cobra.Command {
	var from, amt string
	cmd := &cobra.Command{
		Use:   "contribute <challenge-id>",
		Short: "Contribute to a challenge",
		Long: `Contribute to a challenge. Milestone and completion notifications
raised by the contribution are printed after the receipt.

Example:
  stellarsave contribute 1 --from GALICE --amount 50`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := amount.Parse(amt)
			if err != nil {
				return err
			}
			req := model.ContributeRequest{ChallengeID: args[0], Contributor: from, Amount: value}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				// Load the challenge first so milestones can be detected.
				if _, err := app.Engine.Challenge(ctx, req.ChallengeID); err != nil {
					return err
				}
				c, err := app.Engine.Contribute(ctx, req)
				if err != nil {
					return err
				}
				notes := app.Engine.Store().Notifications()
				return opts.formatter(cmd).Success(map[string]any{"contribution": c, "notifications": notes}, func(w io.Writer) {
					fmt.Fprintf(w, "Contributed %s to challenge %s (week %d)\n", xlm(c.Amount), c.ChallengeID, c.WeekNumber)
					renderNotifications(w, notes)
				})
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "contributor account")
	cmd.Flags().StringVar(&amt, "amount", "", "amount to contribute")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(opts *RootOptions) *cobra.Command {
	var by string
	cmd := &cobra.Command{
		Use:   "finalize <challenge-id>",
		Short: "Close a challenge that reached its goal or deadline",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := model.FinalizeRequest{ChallengeID: args[0], Finalizer: by}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if _, err := app.Engine.Challenge(ctx, req.ChallengeID); err != nil {
					return err
				}
				hash, err := app.Engine.FinalizeChallenge(ctx, req)
				if err != nil {
					return err
				}
				notes := app.Engine.Store().Notifications()
				return opts.formatter(cmd).Success(map[string]any{"transaction_hash": hash, "notifications": notes}, func(w io.Writer) {
					fmt.Fprintf(w, "Finalized challenge %s\n", req.ChallengeID)
					renderNotifications(w, notes)
				})
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "finalizing account (creator or participant)")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <user>",
		Short: "Show a user's savings statistics and SaveCoin balance",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				s, err := app.Engine.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				rewards, err := app.Engine.RewardHistory(ctx, args[0])
				if err != nil {
					return err
				}
				v := statsView{Stats: s, Rewards: rewards}
				return opts.formatter(cmd).Success(v, renderStats(v))
			})
		},
	}
}

// NewNotificationsCommand creates the notifications command. It checks the
// user's active challenges and reports reminders and deadline warnings.
func NewNotificationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications <user>",
		Short: "Report reminders and deadline warnings for a user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				list, err := app.Engine.Remind(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(list, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "All challenges are on track.")
						return
					}
					for _, n := range list {
						fmt.Fprintf(w, "[%s] %s\n", n.Type, n.Message)
					}
				})
			})
		},
	}
}
