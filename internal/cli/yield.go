package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellarsave/stellarsave/internal/amount"
	"github.com/stellarsave/stellarsave/internal/gateway"
	"github.com/stellarsave/stellarsave/internal/model"
)

// NewPoolCommand groups the cross-border yield pool commands.
func NewPoolCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Cross-border yield pools",
	}
	cmd.AddCommand(newPoolListCommand(opts))
	cmd.AddCommand(newPoolCreateCommand(opts))
	cmd.AddCommand(newPoolDepositCommand(opts))
	cmd.AddCommand(newPoolPositionsCommand(opts))
	cmd.AddCommand(newPoolDistributeCommand(opts))
	cmd.AddCommand(newPoolProjectCommand(opts))
	return cmd
}

func newPoolListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List yield pools",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				list, err := app.Engine.Pools(ctx)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(list, renderPools(list))
			})
		},
	}
}

func newPoolCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		req           model.CreatePoolRequest
		minDep, maxDep string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a yield pool (admin)",
		Long: `Create a yield pool for a remittance corridor.

Example:
  stellarsave pool create --admin GADMIN --name "Naira corridor" \
    --base USDC --target NGN --apy-bps 800 --min 10 --max 5000 --lock-days 7`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.MinDeposit, err = amount.Parse(minDep); err != nil {
				return err
			}
			if req.MaxDeposit, err = amount.Parse(maxDep); err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				p, err := app.Engine.CreatePool(ctx, req)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(p, func(w io.Writer) {
					fmt.Fprintf(w, "Created pool %s %q on corridor %s at %s%% APY\n", p.ID, p.Name, p.Corridor, p.APY())
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.Admin, "admin", "", "admin account")
	cmd.Flags().StringVar(&req.Name, "name", "", "pool name")
	cmd.Flags().StringVar(&req.BaseCurrency, "base", "USDC", "deposit currency")
	cmd.Flags().StringVar(&req.TargetCurrency, "target", "", "payout currency")
	cmd.Flags().IntVar(&req.APYBasisPoints, "apy-bps", 0, "annual yield in basis points")
	cmd.Flags().StringVar(&minDep, "min", "1", "minimum deposit")
	cmd.Flags().StringVar(&maxDep, "max", "100000", "maximum deposit")
	cmd.Flags().IntVar(&req.LockDays, "lock-days", 0, "lock period in days")
	cmd.Flags().StringVar(&req.MoneyGramCorridorID, "moneygram-corridor", "", "MoneyGram corridor id")
	for _, name := range []string{"admin", "name", "target"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newPoolDepositCommand(opts *RootOptions) *cobra.Command {
	var (
		req model.DepositRequest
		amt string
	)
	cmd := &cobra.Command{
		Use:   "deposit <pool-id>",
		Short: "Deposit into a yield pool",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.Amount, err = amount.Parse(amt); err != nil {
				return err
			}
			req.PoolID = args[0]
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if _, err := app.Engine.Pool(ctx, req.PoolID); err != nil {
					return err
				}
				hash, err := app.Engine.Deposit(ctx, req)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(map[string]any{"transaction_hash": hash}, func(w io.Writer) {
					fmt.Fprintf(w, "Deposited %s into pool %s\n", amount.Format(req.Amount, ""), req.PoolID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.User, "user", "", "depositing account")
	cmd.Flags().StringVar(&amt, "amount", "", "amount to deposit")
	cmd.Flags().BoolVar(&req.AutoCompound, "auto-compound", false, "compound yield into the principal")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPoolPositionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "positions <user>",
		Short: "List a user's pool positions",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				list, err := app.Engine.Positions(ctx, args[0])
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(list, renderPositions(list))
			})
		},
	}
}

func newPoolDistributeCommand(opts *RootOptions) *cobra.Command {
	var admin, total string
	cmd := &cobra.Command{
		Use:   "distribute <pool-id>",
		Short: "Distribute yield across a pool's depositors (admin)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := amount.Parse(total)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				hash, err := app.Engine.DistributeYield(ctx, admin, args[0], value)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(map[string]any{"transaction_hash": hash}, func(w io.Writer) {
					fmt.Fprintf(w, "Distributed %s across pool %s\n", amount.Format(value, ""), args[0])
				})
			})
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "admin account")
	cmd.Flags().StringVar(&total, "total", "", "total yield to distribute")
	_ = cmd.MarkFlagRequired("admin")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func newPoolProjectCommand(opts *RootOptions) *cobra.Command {
	var amt string
	var days int
	cmd := &cobra.Command{
		Use:   "project <pool-id>",
		Short: "Project the yield of a deposit",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := amount.Parse(amt)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				y, err := app.Engine.ProjectedYield(ctx, args[0], value, days)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(map[string]any{"pool_id": args[0], "amount": value, "days": days, "projected_yield": y}, func(w io.Writer) {
					fmt.Fprintf(w, "%s in pool %s for %d days earns %s\n", amount.Format(value, ""), args[0], days, amount.Format(y, ""))
				})
			})
		},
	}
	cmd.Flags().StringVar(&amt, "amount", "", "deposit amount")
	cmd.Flags().IntVar(&days, "days", 365, "holding period in days")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(opts *RootOptions) *cobra.Command {
	var (
		req   model.SendCrossBorderRequest
		amt   string
		quote bool
	)
	cmd := &cobra.Command{
		Use:   "transfer <recipient>",
		Short: "Send a cross-border remittance",
		Long: `Send a remittance through a supported MoneyGram corridor. With --quote
the fees and received amount are shown without sending.

Example:
  stellarsave transfer +2348000000 --sender GALICE --from USDC --to NGN --amount 200`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.Amount, err = amount.Parse(amt); err != nil {
				return err
			}
			req.Recipient = args[0]
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if quote {
					q, err := app.Engine.QuoteTransfer(ctx, req.FromCurrency, req.ToCurrency, req.Amount)
					if err != nil {
						return err
					}
					return opts.formatter(cmd).Success(q, renderQuote(req.FromCurrency, req.ToCurrency, q))
				}
				t, err := app.Engine.SendCrossBorder(ctx, req)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(t, renderTransfer(t))
			})
		},
	}
	cmd.Flags().StringVar(&req.Sender, "sender", "", "sending account")
	cmd.Flags().StringVar(&req.FromCurrency, "from", "USDC", "source currency")
	cmd.Flags().StringVar(&req.ToCurrency, "to", "", "destination currency")
	cmd.Flags().StringVar(&amt, "amount", "", "amount to send")
	cmd.Flags().BoolVar(&req.UseYieldPool, "use-yield-pool", false, "fund the transfer from yield pool positions")
	cmd.Flags().BoolVar(&quote, "quote", false, "show fees and received amount without sending")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

// NewRateCommand creates the rate command.
func NewRateCommand(opts *RootOptions) *cobra.Command {
	var set, admin string
	cmd := &cobra.Command{
		Use:   "rate <from> <to>",
		Short: "Show or update an exchange rate",
		Long: `Show the exchange rate of a currency pair. With --set and --admin the
rate is updated first.

Example:
  stellarsave rate USDC NGN
  stellarsave rate USDC NGN --set 1550.25 --admin GADMIN`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := gateway.CurrencyPair(strings.ToUpper(args[0]), strings.ToUpper(args[1]))
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if set != "" {
					value, err := amount.Parse(set)
					if err != nil {
						return err
					}
					if _, err := app.Engine.UpdateExchangeRate(ctx, admin, pair, value); err != nil {
						return err
					}
				}
				rate, err := app.Engine.ExchangeRate(ctx, pair)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(map[string]any{"pair": pair, "rate": rate}, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s\n", pair, rate)
				})
			})
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "new rate")
	cmd.Flags().StringVar(&admin, "admin", "", "admin account (required with --set)")
	cmd.MarkFlagsRequiredTogether("set", "admin")
	return cmd
}

// NewCorridorsCommand creates the corridors command.
func NewCorridorsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "corridors",
		Short: "List supported corridors and the total value locked",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				list, err := app.Engine.Corridors(ctx)
				if err != nil {
					return err
				}
				tvl, err := app.Engine.TotalValueLocked(ctx)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(map[string]any{"corridors": list, "total_value_locked": tvl}, func(w io.Writer) {
					fmt.Fprintf(w, "Corridors: %s\n", strings.Join(list, ", "))
					fmt.Fprintf(w, "Total value locked: %s\n", amount.Format(tvl, ""))
				})
			})
		},
	}
}
