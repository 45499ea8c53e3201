package prices

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"strings"
	"time"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/domain"
	"pricesync/internal/pricecsv"
	"pricesync/internal/retry"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

const yahooInterval = "1d"

// ChartFunc runs one chart query and returns every bar with the chart's
// metadata.
type ChartFunc func(params *chart.Params) ([]finance.ChartBar, finance.ChartMeta, error)

// YahooClient fetches daily closes through the Yahoo Finance chart API.
type YahooClient struct {
	GetChart    ChartFunc
	MaxAttempts int

	now    func() time.Time
	random func() float64
}

func NewYahooClient(maxAttempts int) *YahooClient {
	return &YahooClient{
		GetChart:    getChart,
		MaxAttempts: maxAttempts,
		now:         time.Now,
		random:      rand.Float64,
	}
}

func getChart(params *chart.Params) ([]finance.ChartBar, finance.ChartMeta, error) {
	iter := chart.Get(params)

	bars := []finance.ChartBar{}
	for iter.Next() {
		bars = append(bars, *iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, finance.ChartMeta{}, err
	}
	return bars, iter.Meta(), nil
}

func (c YahooClient) Name() domain.Source {
	return domain.Source_YahooFinance
}

func (c YahooClient) SymbolColumn() string {
	return pricecsv.SymbolColumnYahoo
}

func (c YahooClient) Symbol(asset domain.Asset) string {
	return asset.YahooSymbol
}

func (c YahooClient) CacheParts(asset domain.Asset, window domain.Window) map[string]string {
	parts := map[string]string{
		"interval": yahooInterval,
	}
	if window.IsRange() {
		parts["start"] = window.Start.Format(domain.DateLayout)
		parts["end"] = window.End.Format(domain.DateLayout)
	} else {
		parts["period"] = strconv.Itoa(window.LookbackDays) + "d"
	}
	return parts
}

func (c YahooClient) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	return p
}

func (c YahooClient) RateLimitDelay() time.Duration {
	if c.random == nil {
		return 0
	}
	return time.Duration(c.random() * float64(time.Second))
}

// chartRange converts window into chart bounds. The chart end is exclusive,
// so an explicit range end is pushed one day forward.
func (c YahooClient) chartRange(window domain.Window) (time.Time, time.Time) {
	if window.IsRange() {
		return window.Start, window.End.AddDate(0, 0, 1)
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	end := now().UTC()
	return domain.Day(end).AddDate(0, 0, -window.LookbackDays), end
}

func (c YahooClient) Fetch(ctx context.Context, asset domain.Asset, window domain.Window) (*RawSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start, end := c.chartRange(window)
	params := &chart.Params{
		Symbol:   asset.YahooSymbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	bars, meta, err := c.GetChart(params)
	if err != nil {
		return nil, pricesync_errors.ErrProvider{
			Provider:  string(domain.Source_YahooFinance),
			Symbol:    asset.YahooSymbol,
			Transient: isTransientChartError(err),
			Message:   "chart request failed",
			Err:       err,
		}
	}

	offset := time.Duration(meta.Gmtoffset) * time.Second
	series := &RawSeries{
		Symbol:   meta.Symbol,
		Exchange: meta.ExchangeName,
		Currency: meta.Currency,
		Interval: yahooInterval,
		Bars:     make([]RawBar, 0, len(bars)),
	}
	for _, bar := range bars {
		// bars are stamped at the session open in UTC; shift to exchange time
		// before taking the calendar date
		tradingDay := time.Unix(int64(bar.Timestamp), 0).UTC().Add(offset)
		volume := ""
		if bar.Volume > 0 {
			volume = strconv.Itoa(bar.Volume)
		}
		series.Bars = append(series.Bars, RawBar{
			Date:   tradingDay.Format(domain.DateLayout),
			Close:  bar.Close.String(),
			Volume: volume,
		})
	}
	return series, nil
}

// isTransientChartError reports transport and upstream HTTP failures as
// transient. finance-go types only payload errors; empty charts and argument
// errors are matched on their message.
func isTransientChartError(err error) bool {
	var payloadErr *finance.YfinError
	if errors.As(err, &payloadErr) {
		return false
	}
	message := err.Error()
	for _, final := range []string{"no results in chart response", "code: api-error"} {
		if strings.Contains(message, final) {
			return false
		}
	}
	return true
}

func (c YahooClient) Normalize(asset domain.Asset, window domain.Window, series *RawSeries) []pricecsv.Row {
	return normalizeSeries(asset.YahooSymbol, window, series)
}

var _ Strategy = YahooClient{}
var _ Strategy = TwelveDataClient{}
