package main

import (
	"context"
	"flag"

	"pricesync/internal/db"

	"github.com/google/subcommands"
)

type fetchCmd struct {
	providers string
}

func (*fetchCmd) Name() string { return "fetch" }
func (*fetchCmd) Synopsis() string {
	return "fetch daily closes and write one price table per provider"
}
func (*fetchCmd) Usage() string {
	return `fetch [-providers twelvedata,yahoo_finance]

Fetches end-of-day prices for every registry asset tracked on each provider,
reusing cached responses younger than CACHE_TTL unless FORCE_REFRESH is set,
and writes OUT_DIR/<provider>_prices.csv.
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.providers, "providers", defaultProviders, "comma separated providers to fetch from")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(true)
	if err != nil {
		return exit(nil, err)
	}
	strategies, err := a.strategies(c.providers, true)
	if err != nil {
		return exit(a.logger, err)
	}

	return exit(a.logger, a.service(a.fetcher(), nil).Fetch(ctx, strategies))
}

type syncCmd struct {
	providers string
}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "reconcile the price tables with prices_snapshots" }
func (*syncCmd) Usage() string {
	return `sync [-providers twelvedata,yahoo_finance]

Validates OUT_DIR/<provider>_prices.csv, then inserts new prices and updates
changed ones in a single transaction per provider. Every change is appended to
OUT_DIR/<provider>_sync_<run id>.jsonl before it is written.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.providers, "providers", defaultProviders, "comma separated providers to sync")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(true)
	if err != nil {
		return exit(nil, err)
	}
	strategies, err := a.strategies(c.providers, false)
	if err != nil {
		return exit(a.logger, err)
	}
	syncer, err := a.syncer()
	if err != nil {
		return exit(a.logger, err)
	}
	defer syncer.Db.Close()

	return exit(a.logger, a.service(nil, syncer).Sync(ctx, providerNames(strategies)))
}

type runCmd struct {
	providers string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "fetch then sync every provider" }
func (*runCmd) Usage() string {
	return `run [-providers twelvedata,yahoo_finance]

Runs fetch and sync for each provider under one run id. A provider whose
fetch yields no data is not synced.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.providers, "providers", defaultProviders, "comma separated providers to run")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(true)
	if err != nil {
		return exit(nil, err)
	}
	strategies, err := a.strategies(c.providers, true)
	if err != nil {
		return exit(a.logger, err)
	}
	syncer, err := a.syncer()
	if err != nil {
		return exit(a.logger, err)
	}
	defer syncer.Db.Close()

	return exit(a.logger, a.service(a.fetcher(), syncer).Run(ctx, strategies))
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or upgrade the prices_snapshots table" }
func (*migrateCmd) Usage() string {
	return `migrate

Applies pending schema migrations to DATABASE_URL.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(false)
	if err != nil {
		return exit(nil, err)
	}
	if err := a.cfg.RequireSync(); err != nil {
		return exit(a.logger, err)
	}
	dbConn, err := db.New(a.cfg.DatabaseURL)
	if err != nil {
		return exit(a.logger, err)
	}
	defer dbConn.Close()

	return exit(a.logger, db.Migrate(dbConn, a.logger))
}
