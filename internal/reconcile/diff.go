package reconcile

import (
	"pricesync/internal/domain"
)

// Diff classifies every desired observation against existing. Keys absent
// from existing are inserts, keys stored at a different price or quote
// currency are updates, and the rest are counted as unchanged. Prices compare
// exactly, so 100.10 and 100.1 are the same price. Order within each list
// follows desired.
func Diff(desired []domain.PriceObservation, existing map[domain.PriceKey]domain.StoredPrice) domain.Plan {
	plan := domain.Plan{
		ToInsert: []domain.PriceObservation{},
		ToUpdate: []domain.PriceUpdate{},
	}

	for _, o := range desired {
		stored, ok := existing[o.Key()]
		switch {
		case !ok:
			plan.ToInsert = append(plan.ToInsert, o)
		case !stored.Price.Equal(o.Price) || stored.QuoteCurrency != o.QuoteCurrency:
			plan.ToUpdate = append(plan.ToUpdate, domain.PriceUpdate{
				Observation:      o,
				Previous:         stored.Price,
				PreviousCurrency: stored.QuoteCurrency,
			})
		default:
			plan.Unchanged++
		}
	}

	return plan
}

func keysOf(observations []domain.PriceObservation) []domain.PriceKey {
	out := make([]domain.PriceKey, len(observations))
	for i, o := range observations {
		out[i] = o.Key()
	}
	return out
}
