package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO date format used in CSV artifacts, cache keys and
// audit records.
const DateLayout = "2006-01-02"

type Source string

const (
	Source_TwelveData   Source = "twelvedata"
	Source_YahooFinance Source = "yahoo_finance"
)

func (s Source) String() string { return string(s) }

// PriceObservation is one fetched end-of-day price, fully keyed against the
// registry and ready to be reconciled with the store.
type PriceObservation struct {
	AsOfDate      time.Time
	AssetID       string
	AccountID     string
	QuoteCurrency QuoteCurrency
	Price         decimal.Decimal
	Source        Source
}

func (o PriceObservation) Key() PriceKey {
	return NewPriceKey(o.AsOfDate, o.AssetID, o.AccountID)
}

// PriceKey identifies a snapshot row. The date is kept in its ISO form so
// keys compare equal regardless of the location a time.Time was scanned in.
type PriceKey struct {
	AsOfDate  string
	AssetID   string
	AccountID string
}

func NewPriceKey(asOfDate time.Time, assetID, accountID string) PriceKey {
	return PriceKey{
		AsOfDate:  asOfDate.Format(DateLayout),
		AssetID:   assetID,
		AccountID: accountID,
	}
}

// Date parses the key's date back into a UTC midnight time.
func (k PriceKey) Date() time.Time {
	t, _ := time.Parse(DateLayout, k.AsOfDate)
	return t
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
