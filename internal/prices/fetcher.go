package prices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/cache"
	"pricesync/internal/domain"
	"pricesync/internal/pricecsv"
	"pricesync/internal/retry"

	"github.com/sirupsen/logrus"
)

// Fetcher runs the fetch, normalize and cache loop for one provider at a
// time and writes the provider's aggregate price table.
type Fetcher struct {
	CacheDir     string
	CacheTTL     time.Duration
	OutDir       string
	ForceRefresh bool
	Logger       logrus.FieldLogger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewFetcher(cacheDir string, cacheTTL time.Duration, outDir string, forceRefresh bool, logger logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		CacheDir:     cacheDir,
		CacheTTL:     cacheTTL,
		OutDir:       outDir,
		ForceRefresh: forceRefresh,
		Logger:       logger,
		sleep:        sleepContext,
	}
}

type SkippedAsset struct {
	Symbol string
	Kind   FetchKind
	Err    error
}

type FetchSummary struct {
	Provider  domain.Source
	Path      string
	Rows      int
	Fetched   []string
	FromCache []string
	Skipped   []SkippedAsset
}

// OutputPath is where the aggregate table of provider is written.
func OutputPath(outDir string, provider domain.Source) string {
	return filepath.Join(outDir, string(provider)+"_prices.csv")
}

// Run fetches every asset tracked on s. An asset that fails or returns no
// rows is skipped with a warning. If no asset yields rows, Run returns
// ErrNoData and writes nothing.
func (f Fetcher) Run(ctx context.Context, s Strategy, assets []domain.Asset, window domain.Window) (*FetchSummary, error) {
	if err := window.Validate(); err != nil {
		return nil, pricesync_errors.ConfigError("%v", err)
	}

	logger := f.Logger.WithField("provider", s.Name())
	responseCache := cache.New(filepath.Join(f.CacheDir, string(s.Name())), f.CacheTTL)
	retrier := retry.New(s.RetryPolicy(), logger)

	summary := &FetchSummary{
		Provider: s.Name(),
		Path:     OutputPath(f.OutDir, s.Name()),
	}
	rows := []pricecsv.Row{}
	calledProvider := false

	for _, asset := range assets {
		symbol := s.Symbol(asset)
		if symbol == "" {
			continue
		}
		assetLogger := logger.WithField("symbol", symbol)
		cachePath := responseCache.PathFor(symbol, s.CacheParts(asset, window))

		if !f.ForceRefresh && responseCache.IsFresh(cachePath) {
			cached, err := readCached(responseCache, cachePath, s.SymbolColumn())
			if err == nil {
				assetLogger.Debugf("using cached response %s", cachePath)
				summary.FromCache = append(summary.FromCache, symbol)
				rows = append(rows, cached...)
				continue
			}
			assetLogger.Warnf("ignoring unreadable cache entry %s: %v", cachePath, err)
		}

		if calledProvider {
			sleep := f.sleep
			if sleep == nil {
				sleep = sleepContext
			}
			if err := sleep(ctx, s.RateLimitDelay()); err != nil {
				return nil, err
			}
		}
		calledProvider = true

		result, err := f.fetchOne(ctx, retrier, s, asset, window)
		if err != nil {
			return nil, err
		}

		switch result.Kind {
		case FetchRows:
			content, err := pricecsv.Marshal(s.SymbolColumn(), result.Rows)
			if err == nil {
				err = responseCache.Write(cachePath, content)
			}
			if err != nil {
				assetLogger.Warnf("failed to cache response: %v", err)
			}
			assetLogger.Infof("fetched %d rows", len(result.Rows))
			summary.Fetched = append(summary.Fetched, symbol)
			rows = append(rows, result.Rows...)
		case FetchEmpty:
			assetLogger.Warnf("no rows for %s, skipping", window)
			summary.Skipped = append(summary.Skipped, SkippedAsset{Symbol: symbol, Kind: result.Kind})
		default:
			assetLogger.Warnf("skipping symbol: %v", result.Err)
			summary.Skipped = append(summary.Skipped, SkippedAsset{Symbol: symbol, Kind: result.Kind, Err: result.Err})
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name(), pricesync_errors.ErrNoData)
	}

	if err := pricecsv.WriteFile(summary.Path, s.SymbolColumn(), rows); err != nil {
		return nil, fmt.Errorf("failed to write %s prices: %w", s.Name(), err)
	}
	summary.Rows = len(rows)

	logger.WithFields(logrus.Fields{
		"rows":       summary.Rows,
		"fetched":    len(summary.Fetched),
		"from_cache": len(summary.FromCache),
		"skipped":    len(summary.Skipped),
	}).Infof("wrote %s", summary.Path)

	return summary, nil
}

// fetchOne returns an error only when ctx is done; every provider failure is
// folded into the result.
func (f Fetcher) fetchOne(ctx context.Context, retrier *retry.Retrier, s Strategy, asset domain.Asset, window domain.Window) (FetchResult, error) {
	symbol := s.Symbol(asset)

	var series *RawSeries
	err := retrier.Do(ctx, fmt.Sprintf("%s %s", s.Name(), symbol), pricesync_errors.IsTransient, func(ctx context.Context) error {
		var err error
		series, err = s.Fetch(ctx, asset, window)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return FetchResult{}, ctxErr
		}
		exhausted := retry.ErrExhausted{}
		if errors.As(err, &exhausted) {
			return FetchResult{Kind: FetchExhausted, Err: err}, nil
		}
		return FetchResult{Kind: FetchProviderError, Err: err}, nil
	}

	rows := s.Normalize(asset, window, series)
	if len(rows) == 0 {
		return FetchResult{Kind: FetchEmpty}, nil
	}
	return FetchResult{Kind: FetchRows, Rows: rows}, nil
}

func readCached(c *cache.Cache, path, symbolColumn string) ([]pricecsv.Row, error) {
	content, err := c.Read(path)
	if err != nil {
		return nil, err
	}
	return pricecsv.Decode(bytes.NewReader(content), symbolColumn)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
