package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/waa-mobile/waapos/internal/auth"
	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/platform/db"
)

func newMigrateCmd(rt *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := rt.database(ctx)
			if err != nil {
				return err
			}
			applied, err := db.Migrate(ctx, pool, rt.logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema already up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
}

func newCreateUserCmd(rt *cliEnv) *cobra.Command {
	var username, password, role string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a login for a cashier or admin",
		Example: `  posctl create-user --username ali --password s3cretpass
  posctl create-user --username owner --password s3cretpass --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			svc, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			user, err := svc.Auth.CreateUser(cmd.Context(), auth.CreateUserInput{
				Username: username,
				Password: password,
				Role:     parsed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, role %s)\n", user.Username, user.ID, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "initial password (min 8 characters)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleCashier), "cashier or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newBalanceCmd(rt *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <customer|supplier> <name>",
		Short: "Print a party's running balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parties.ParseKind(args[0])
			if err != nil {
				return err
			}
			svc, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			bal, err := svc.Ledger.Balance(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", bal.Kind, bal.Party)
			fmt.Fprintf(out, "  opening   %s\n", bal.Opening.StringFixed(2))
			fmt.Fprintf(out, "  sales     %s\n", bal.Sales.StringFixed(2))
			fmt.Fprintf(out, "  payments  %s\n", bal.Payments.StringFixed(2))
			fmt.Fprintf(out, "  returns   %s\n", bal.Returns.StringFixed(2))
			fmt.Fprintf(out, "  balance   %s\n", bal.Balance.StringFixed(2))
			return nil
		},
	}
}

func newStockCmd(rt *cliEnv) *cobra.Command {
	stock := &cobra.Command{
		Use:   "stock",
		Short: "Inventory corrections",
	}

	var cost, price, reason string
	adjust := &cobra.Command{
		Use:     "adjust <item> <delta>",
		Short:   "Apply a signed quantity change, creating the item when missing",
		Example: `  posctl stock adjust "Type-C Cable" 25 --cost 180 --price 300`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := adjustInput(args[0], args[1], cost, price, reason)
			if err != nil {
				return err
			}
			svc, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			item, err := svc.Inventory.Adjust(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d on hand\n", item.Name, item.QuantityOnHand)
			return nil
		},
	}
	adjust.Flags().StringVar(&cost, "cost", "", "unit cost to record")
	adjust.Flags().StringVar(&price, "price", "", "unit sale price to record")
	adjust.Flags().StringVar(&reason, "reason", "", "why the stock changed")

	stock.AddCommand(adjust)
	return stock
}

func adjustInput(item, rawDelta, cost, price, reason string) (inventory.AdjustInput, error) {
	delta, err := strconv.ParseInt(rawDelta, 10, 64)
	if err != nil {
		return inventory.AdjustInput{}, fmt.Errorf("delta must be an integer: %w", err)
	}
	input := inventory.AdjustInput{ItemName: item, Delta: delta, Reason: reason}
	if cost != "" {
		d, err := decimal.NewFromString(cost)
		if err != nil {
			return inventory.AdjustInput{}, fmt.Errorf("cost: %w", err)
		}
		input.UnitCost = inventory.Money(d)
	}
	if price != "" {
		d, err := decimal.NewFromString(price)
		if err != nil {
			return inventory.AdjustInput{}, fmt.Errorf("price: %w", err)
		}
		input.UnitPrice = inventory.Money(d)
	}
	return input, nil
}

func newJobsCmd(rt *cliEnv) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Enqueue background tasks",
	}

	lowStock := &cobra.Command{
		Use:   "low-stock",
		Short: "Run the low-stock scan now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rt.jobsClient()
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueLowStockScan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}

	var date string
	summary := &cobra.Command{
		Use:   "daily-summary",
		Short: "Compute and log the profit summary of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			client, err := rt.jobsClient()
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueDailySummary(cmd.Context(), day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}
	summary.Flags().StringVar(&date, "date", "", "day to summarise (YYYY-MM-DD, default today)")

	receipt := &cobra.Command{
		Use:   "receipt <number>",
		Short: "Render an invoice receipt through Gotenberg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || number <= 0 {
				return fmt.Errorf("invoice number must be a positive integer")
			}
			client, err := rt.jobsClient()
			if err != nil {
				return err
			}
			defer client.Close()
			info, err := client.EnqueueReceiptRender(cmd.Context(), number)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}

	jobsCmd.AddCommand(lowStock, summary, receipt)
	return jobsCmd
}

// parseDay reads a YYYY-MM-DD flag. Empty means the zero time, which the job treats as today.
func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return day, nil
}
