package prices

import (
	"context"
	"strings"
	"time"

	"pricesync/internal/domain"
	"pricesync/internal/pricecsv"
	"pricesync/internal/retry"

	"github.com/shopspring/decimal"
)

// Strategy is everything the fetch pipeline needs to know about one price
// provider.
type Strategy interface {
	Name() domain.Source
	// SymbolColumn names the symbol column of the provider's tables.
	SymbolColumn() string
	// Symbol returns the provider symbol of asset, or "" when the asset is
	// not tracked on this provider.
	Symbol(asset domain.Asset) string
	// CacheParts returns every query parameter that distinguishes one
	// response from another for the same symbol.
	CacheParts(asset domain.Asset, window domain.Window) map[string]string
	Fetch(ctx context.Context, asset domain.Asset, window domain.Window) (*RawSeries, error)
	Normalize(asset domain.Asset, window domain.Window, series *RawSeries) []pricecsv.Row
	RetryPolicy() retry.Policy
	// RateLimitDelay is waited between two provider calls.
	RateLimitDelay() time.Duration
}

// RawSeries is a provider response before normalization.
type RawSeries struct {
	Symbol   string
	Exchange string
	Currency string
	Interval string
	Bars     []RawBar
}

type RawBar struct {
	Date   string
	Close  string
	Volume string
}

type FetchKind int

const (
	FetchRows FetchKind = iota
	FetchEmpty
	FetchProviderError
	FetchExhausted
)

func (k FetchKind) String() string {
	switch k {
	case FetchRows:
		return "rows"
	case FetchEmpty:
		return "empty"
	case FetchProviderError:
		return "provider_error"
	case FetchExhausted:
		return "exhausted"
	}
	return "unknown"
}

// FetchResult is the outcome of fetching one asset. Rows is set only for
// FetchRows and Err only for the two error kinds.
type FetchResult struct {
	Kind FetchKind
	Rows []pricecsv.Row
	Err  error
}

var barDateLayouts = []string{domain.DateLayout, "2006-01-02 15:04:05"}

// normalizeSeries converts raw bars into rows. Bars without a parseable date,
// a decimal close above zero, or outside an explicit window are dropped.
func normalizeSeries(symbol string, window domain.Window, series *RawSeries) []pricecsv.Row {
	if series == nil {
		return nil
	}
	rows := []pricecsv.Row{}
	for _, bar := range series.Bars {
		date, ok := parseBarDate(bar.Date)
		if !ok || !window.Contains(date) {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(bar.Close))
		if err != nil || !price.IsPositive() {
			continue
		}

		row := pricecsv.Row{
			AsOfDate: date,
			Price:    price,
			Symbol:   symbol,
			Exchange: series.Exchange,
			Currency: series.Currency,
			Interval: series.Interval,
		}
		if volume, err := decimal.NewFromString(strings.TrimSpace(bar.Volume)); err == nil {
			row.Volume = decimal.NewNullDecimal(volume)
		}
		rows = append(rows, row)
	}
	return rows
}

func parseBarDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range barDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), true
		}
	}
	return time.Time{}, false
}
