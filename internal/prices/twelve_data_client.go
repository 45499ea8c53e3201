package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/domain"
	"pricesync/internal/pricecsv"
	"pricesync/internal/retry"

	"golang.org/x/time/rate"
)

const (
	twelveDataBaseURL  = "https://api.twelvedata.com"
	twelveDataInterval = "1day"
	userAgent          = "pricesync/1.0"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=prices -destination=mock_http_client_test.go -source=twelve_data_client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TwelveDataClient fetches daily closes from the Twelve Data time_series
// endpoint.
type TwelveDataClient struct {
	HttpClient HTTPClient
	ApiKey     string
	BaseURL    string
	// Limiter bounds outgoing requests. Nil means unlimited.
	Limiter     *rate.Limiter
	MaxAttempts int

	random func() float64
}

// NewTwelveDataClient returns a client limited to maxRPM requests per
// minute. A non-positive maxRPM disables the limiter.
func NewTwelveDataClient(httpClient HTTPClient, apiKey string, maxRPM int) *TwelveDataClient {
	var limiter *rate.Limiter
	if maxRPM > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxRPM)), 1)
	}
	return &TwelveDataClient{
		HttpClient:  httpClient,
		ApiKey:      apiKey,
		BaseURL:     twelveDataBaseURL,
		Limiter:     limiter,
		MaxAttempts: retry.DefaultPolicy().MaxAttempts,
		random:      rand.Float64,
	}
}

type twelveDataResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Meta    struct {
		Symbol   string `json:"symbol"`
		Exchange string `json:"exchange"`
		Currency string `json:"currency"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

func (c TwelveDataClient) Name() domain.Source {
	return domain.Source_TwelveData
}

func (c TwelveDataClient) SymbolColumn() string {
	return pricecsv.SymbolColumnTwelveData
}

func (c TwelveDataClient) Symbol(asset domain.Asset) string {
	return asset.TwelveDataSymbol
}

func (c TwelveDataClient) CacheParts(asset domain.Asset, window domain.Window) map[string]string {
	parts := map[string]string{
		"exchange": asset.TwelveDataExchange,
		"interval": twelveDataInterval,
	}
	if window.IsRange() {
		parts["start"] = window.Start.Format(domain.DateLayout)
		parts["end"] = window.End.Format(domain.DateLayout)
	} else {
		parts["output_size"] = strconv.Itoa(window.LookbackDays)
	}
	return parts
}

// RetryPolicy disables jitter; the limiter already spaces requests.
func (c TwelveDataClient) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	p.Jitter = false
	return p
}

func (c TwelveDataClient) RateLimitDelay() time.Duration {
	if c.random == nil {
		return 0
	}
	return time.Duration(c.random() * float64(time.Second))
}

func (c TwelveDataClient) Fetch(ctx context.Context, asset domain.Asset, window domain.Window) (*RawSeries, error) {
	symbol := asset.TwelveDataSymbol

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for twelvedata rate limit: %w", err)
		}
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", twelveDataInterval)
	if window.IsRange() {
		query.Set("start_date", window.Start.Format(domain.DateLayout))
		query.Set("end_date", window.End.Format(domain.DateLayout))
	} else {
		query.Set("outputsize", strconv.Itoa(window.LookbackDays))
	}
	if asset.TwelveDataExchange != "" {
		query.Set("exchange", asset.TwelveDataExchange)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/time_series?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build twelvedata request: %w", err)
	}
	req.Header.Set("Authorization", "apikey "+c.ApiKey)
	req.Header.Set("User-Agent", userAgent)

	providerErr := func(transient bool, message string, err error) error {
		return pricesync_errors.ErrProvider{
			Provider:  string(domain.Source_TwelveData),
			Symbol:    symbol,
			Transient: transient,
			Message:   message,
			Err:       err,
		}
	}

	response, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, providerErr(true, "request failed", err)
	}
	defer response.Body.Close()

	responseBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, providerErr(true, "failed to read response", err)
	}

	if response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500 {
		return nil, providerErr(true, fmt.Sprintf("http status %d", response.StatusCode), nil)
	}

	var responseJson twelveDataResponse
	decodeErr := json.Unmarshal(responseBytes, &responseJson)

	if response.StatusCode != http.StatusOK {
		message := fmt.Sprintf("http status %d", response.StatusCode)
		if decodeErr == nil && responseJson.Message != "" {
			message = fmt.Sprintf("%s: %s", message, responseJson.Message)
		}
		return nil, providerErr(decodeErr == nil && responseJson.Code == http.StatusTooManyRequests, message, nil)
	}
	if decodeErr != nil {
		return nil, providerErr(true, "failed to decode response", decodeErr)
	}

	if responseJson.Status == "error" {
		// 429 is the plan's per-minute quota, everything else is final
		transient := responseJson.Code == http.StatusTooManyRequests
		return nil, providerErr(transient, fmt.Sprintf("code %d: %s", responseJson.Code, responseJson.Message), nil)
	}

	series := &RawSeries{
		Symbol:   responseJson.Meta.Symbol,
		Exchange: responseJson.Meta.Exchange,
		Currency: responseJson.Meta.Currency,
		Interval: responseJson.Meta.Interval,
		Bars:     make([]RawBar, 0, len(responseJson.Values)),
	}
	for _, v := range responseJson.Values {
		series.Bars = append(series.Bars, RawBar{
			Date:   v.Datetime,
			Close:  v.Close,
			Volume: v.Volume,
		})
	}
	return series, nil
}

// Normalize keys rows by the registry symbol so the sync stage can join them
// back to the asset, whatever spelling the response echoes.
func (c TwelveDataClient) Normalize(asset domain.Asset, window domain.Window, series *RawSeries) []pricecsv.Row {
	if series == nil {
		return nil
	}
	s := *series
	if s.Exchange == "" {
		s.Exchange = asset.TwelveDataExchange
	}
	if s.Interval == "" {
		s.Interval = twelveDataInterval
	}
	return normalizeSeries(asset.TwelveDataSymbol, window, &s)
}
