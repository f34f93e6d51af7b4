package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/waa-mobile/waapos/internal/app"
	"github.com/waa-mobile/waapos/internal/inventory"
	"github.com/waa-mobile/waapos/internal/parties"
	"github.com/waa-mobile/waapos/internal/shared"
)

type seedItem struct {
	name     string
	category string
	cost     int64
	price    int64
	qty      int64
	minStock int64
}

type seedParty struct {
	kind    parties.Kind
	name    string
	phone   string
	opening int64
}

var demoItems = []seedItem{
	{"Type-C Cable 1m", "Cables", 180, 300, 40, 10},
	{"Lightning Cable 1m", "Cables", 220, 400, 25, 10},
	{"Samsung 25W Adapter", "Chargers", 1450, 2200, 12, 4},
	{"20W USB-C PD Charger", "Chargers", 950, 1500, 15, 5},
	{"iPhone 13 Silicone Case", "Covers", 250, 450, 20, 5},
	{"Redmi Note 12 Back Cover", "Covers", 150, 300, 18, 5},
	{"Tempered Glass Universal", "Protectors", 60, 150, 100, 25},
	{"10000mAh Power Bank", "Power Banks", 2300, 3200, 6, 2},
	{"Wireless Earbuds", "Audio", 1800, 2800, 8, 3},
}

var demoParties = []seedParty{
	{parties.KindCustomer, "Bilal Traders", "03001234567", 0},
	{parties.KindCustomer, "City Mobile Repair", "03217654321", 1500},
	{parties.KindSupplier, "Hall Road Wholesale", "04237112233", 0},
	{parties.KindSupplier, "Karachi Accessories Hub", "02132445566", 12000},
}

func newSeedCmd(rt *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a demo catalogue and a few customers and suppliers",
		Long: `Load a demo catalogue and a few customers and suppliers.

Existing parties are left alone and existing items keep their stock, so the
command can be re-run safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.services(cmd.Context())
			if err != nil {
				return err
			}
			return seed(cmd.Context(), svc, cmd.OutOrStdout())
		},
	}
}

func seed(ctx context.Context, svc *app.Services, out io.Writer) error {
	fmt.Fprintln(out, "→ Seeding items...")
	for _, it := range demoItems {
		minStock := it.minStock
		if _, err := svc.Inventory.UpsertItem(ctx, inventory.UpsertItemInput{
			Name:            it.name,
			Category:        it.category,
			UnitCost:        decimal.NewFromInt(it.cost),
			UnitPrice:       decimal.NewFromInt(it.price),
			MinStock:        &minStock,
			OpeningQuantity: it.qty,
		}); err != nil {
			return fmt.Errorf("seed item %s: %w", it.name, err)
		}
	}

	fmt.Fprintln(out, "→ Seeding parties...")
	for _, p := range demoParties {
		_, err := svc.Parties.Get(ctx, p.kind, p.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("seed %s %s: %w", p.kind, p.name, err)
		}
		if _, err := svc.Parties.Register(ctx, p.kind, parties.RegisterRequest{
			Name:           p.name,
			Phone:          p.phone,
			OpeningBalance: decimal.NewFromInt(p.opening),
		}, 0); err != nil {
			return fmt.Errorf("seed %s %s: %w", p.kind, p.name, err)
		}
	}

	fmt.Fprintf(out, "✓ Seeded %d items and %d parties\n", len(demoItems), len(demoParties))
	return nil
}
