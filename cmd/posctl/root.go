package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/waa-mobile/waapos/internal/app"
	"github.com/waa-mobile/waapos/internal/platform/db"
	"github.com/waa-mobile/waapos/jobs"
)

// cliEnv lazily opens the connections a command needs.
type cliEnv struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func (rt *cliEnv) config() (*app.Config, error) {
	if rt.cfg != nil {
		return rt.cfg, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	rt.cfg = cfg
	rt.logger = app.NewLogger(cfg)
	return cfg, nil
}

func (rt *cliEnv) database(ctx context.Context) (*pgxpool.Pool, error) {
	if rt.pool != nil {
		return rt.pool, nil
	}
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	return pool, nil
}

// services wires the domain layer without Redis: the CLI posts no invoices.
func (rt *cliEnv) services(ctx context.Context) (*app.Services, error) {
	pool, err := rt.database(ctx)
	if err != nil {
		return nil, err
	}
	return app.NewServices(app.ServiceDeps{Config: rt.cfg, Pool: pool, Logger: rt.logger})
}

func (rt *cliEnv) jobsClient() (*jobs.Client, error) {
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	return jobs.NewClient(cfg.Redis().Queue()), nil
}

func (rt *cliEnv) close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
}

func newRootCmd() *cobra.Command {
	rt := &cliEnv{}
	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Administer the WAA POS ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			rt.close()
		},
	}
	root.AddCommand(
		newMigrateCmd(rt),
		newCreateUserCmd(rt),
		newBalanceCmd(rt),
		newStockCmd(rt),
		newJobsCmd(rt),
		newSeedCmd(rt),
	)
	return root
}
