package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoredPrice is what the store currently holds for a key.
type StoredPrice struct {
	Price         decimal.Decimal
	QuoteCurrency QuoteCurrency
}

// PriceUpdate is an observation whose key is already stored with a different
// price or quote currency.
type PriceUpdate struct {
	Observation      PriceObservation
	Previous         decimal.Decimal
	PreviousCurrency QuoteCurrency
}

// Plan partitions a batch of observations against the stored snapshot.
// len(ToInsert) + len(ToUpdate) + Unchanged equals the batch size.
type Plan struct {
	ToInsert  []PriceObservation
	ToUpdate  []PriceUpdate
	Unchanged int
}

func (p Plan) Writes() int {
	return len(p.ToInsert) + len(p.ToUpdate)
}

func (p Plan) IsEmpty() bool {
	return p.Writes() == 0
}

// DateRange returns the earliest and latest dates of observations.
func DateRange(observations []PriceObservation) (first, last time.Time, ok bool) {
	for i, o := range observations {
		d := Day(o.AsOfDate)
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}
	return first, last, len(observations) > 0
}
