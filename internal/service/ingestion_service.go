package service

import (
	"context"
	"errors"
	"fmt"

	"pricesync/internal/assets"
	"pricesync/internal/audit"
	"pricesync/internal/domain"
	"pricesync/internal/prices"
	"pricesync/internal/reconcile"

	"github.com/sirupsen/logrus"
)

// IngestionService runs the fetch and sync stages of a run for a set of
// providers.
type IngestionService interface {
	// Fetch writes the aggregate price table of every provider.
	Fetch(ctx context.Context, strategies []prices.Strategy) error
	// Sync reconciles the price table of every provider with the store.
	Sync(ctx context.Context, providers []reconcile.Provider) error
	// Run fetches then syncs each provider. A provider whose fetch fails is
	// not synced; the others still run.
	Run(ctx context.Context, strategies []prices.Strategy) error
}

type ingestionServiceHandler struct {
	Registry *assets.Registry
	Window   domain.Window
	OutDir   string
	RunID    string
	Fetcher  *prices.Fetcher
	Syncer   *reconcile.Syncer
	Logger   logrus.FieldLogger
}

func NewIngestionService(
	registry *assets.Registry,
	window domain.Window,
	outDir string,
	runID string,
	fetcher *prices.Fetcher,
	syncer *reconcile.Syncer,
	logger logrus.FieldLogger,
) IngestionService {
	return ingestionServiceHandler{
		Registry: registry,
		Window:   window,
		OutDir:   outDir,
		RunID:    runID,
		Fetcher:  fetcher,
		Syncer:   syncer,
		Logger:   logger,
	}
}

func (h ingestionServiceHandler) Fetch(ctx context.Context, strategies []prices.Strategy) error {
	errs := []error{}
	for _, s := range strategies {
		if err := h.fetch(ctx, s); err != nil {
			if ctx.Err() != nil {
				return err
			}
			h.Logger.WithField("provider", s.Name()).Errorf("fetch failed: %v", err)
			errs = append(errs, err)
		}
	}
	return joinFailures("fetch", errs, len(strategies))
}

func (h ingestionServiceHandler) Sync(ctx context.Context, providers []reconcile.Provider) error {
	errs := []error{}
	for _, p := range providers {
		if err := h.sync(ctx, p); err != nil {
			if ctx.Err() != nil {
				return err
			}
			h.Logger.WithField("provider", p.Name()).Errorf("sync failed: %v", err)
			errs = append(errs, err)
		}
	}
	return joinFailures("sync", errs, len(providers))
}

func (h ingestionServiceHandler) Run(ctx context.Context, strategies []prices.Strategy) error {
	errs := []error{}
	for _, s := range strategies {
		logger := h.Logger.WithField("provider", s.Name())

		if err := h.fetch(ctx, s); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Errorf("fetch failed, skipping sync: %v", err)
			errs = append(errs, err)
			continue
		}
		if err := h.sync(ctx, s); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Errorf("sync failed: %v", err)
			errs = append(errs, err)
		}
	}
	return joinFailures("run", errs, len(strategies))
}

func (h ingestionServiceHandler) fetch(ctx context.Context, s prices.Strategy) error {
	_, err := h.Fetcher.Run(ctx, s, h.Registry.Filter(s.Symbol), h.Window)
	return err
}

func (h ingestionServiceHandler) sync(ctx context.Context, p reconcile.Provider) error {
	if h.Syncer == nil {
		return errors.New("sync is not configured")
	}
	auditLog := audit.NewLogger(audit.Path(h.OutDir, p.Name(), h.RunID), h.RunID)
	result, err := h.Syncer.SyncFile(ctx, prices.OutputPath(h.OutDir, p.Name()), h.Registry, p, auditLog)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name(), err)
	}
	h.Logger.WithFields(logrus.Fields{
		"provider":  p.Name(),
		"run_id":    h.RunID,
		"audit_log": auditLog.Path,
	}).Infof("synced %d prices (%d inserted, %d updated, %d unchanged)",
		result.Summary.CSVRows, result.Summary.Inserted, result.Summary.Updated, result.Summary.Unchanged)
	return nil
}

func joinFailures(stage string, errs []error, total int) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s failed for %d/%d providers: %w", stage, len(errs), total, errors.Join(errs...))
}
