package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/assets"
	"pricesync/internal/config"
	"pricesync/internal/db"
	"pricesync/internal/domain"
	"pricesync/internal/logging"
	"pricesync/internal/prices"
	"pricesync/internal/reconcile"
	"pricesync/internal/repository"
	"pricesync/internal/service"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

const defaultProviders = "twelvedata,yahoo_finance"

// app is the state shared by the pipeline commands, built once per process
// before any network or store activity.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	registry *assets.Registry
	runID    string
}

func newApp(withRegistry bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, pricesync_errors.ConfigError("%v", err)
	}
	cfg.LogPublic(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		runID:  cfg.NewRunID(time.Now()),
	}
	if withRegistry {
		a.registry, err = assets.LoadFile(cfg.AssetsPath)
		if err != nil {
			return nil, err
		}
		logger.WithField("run_id", a.runID).Infof("loaded %d assets", len(a.registry.Assets))
	}
	return a, nil
}

// strategies resolves a comma separated provider list. With fetching set,
// the credentials each provider needs are checked too.
func (a *app) strategies(providers string, fetching bool) ([]prices.Strategy, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	out := []prices.Strategy{}
	for _, name := range strings.Split(providers, ",") {
		switch domain.Source(strings.TrimSpace(name)) {
		case domain.Source_TwelveData:
			if fetching {
				if err := a.cfg.RequireTwelveData(); err != nil {
					return nil, err
				}
			}
			client := prices.NewTwelveDataClient(httpClient, a.cfg.TwelveDataAPIKey, a.cfg.TwelveDataMaxRPM)
			client.MaxAttempts = a.cfg.RetryMaxAttempts
			out = append(out, client)
		case domain.Source_YahooFinance:
			out = append(out, prices.NewYahooClient(a.cfg.RetryMaxAttempts))
		default:
			return nil, usageError{fmt.Errorf("unknown provider %q", name)}
		}
	}
	return out, nil
}

func (a *app) fetcher() *prices.Fetcher {
	return prices.NewFetcher(a.cfg.CacheDir, a.cfg.CacheTTL, a.cfg.OutDir, a.cfg.ForceRefresh, a.logger)
}

// syncer opens the store. Callers close the returned syncer's Db.
func (a *app) syncer() (*reconcile.Syncer, error) {
	if err := a.cfg.RequireSync(); err != nil {
		return nil, err
	}
	dbConn, err := db.New(a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return reconcile.NewSyncer(dbConn, repository.NewPriceSnapshotRepository(), a.logger), nil
}

func (a *app) service(fetcher *prices.Fetcher, syncer *reconcile.Syncer) service.IngestionService {
	return service.NewIngestionService(a.registry, a.cfg.Window(), a.cfg.OutDir, a.runID, fetcher, syncer, a.logger)
}

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exit reports err and maps it to an exit status.
func exit(logger logrus.FieldLogger, err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	if logger != nil {
		logger.Error(err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if errors.As(err, &usageError{}) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

func providerNames(strategies []prices.Strategy) []reconcile.Provider {
	out := make([]reconcile.Provider, len(strategies))
	for i, s := range strategies {
		out[i] = s
	}
	return out
}
