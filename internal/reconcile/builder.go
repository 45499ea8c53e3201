package reconcile

import (
	"strings"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/assets"
	"pricesync/internal/domain"
	"pricesync/internal/pricecsv"
	"pricesync/internal/util"
)

// Provider identifies the price table a batch of rows came from.
type Provider interface {
	Name() domain.Source
	SymbolColumn() string
	Symbol(asset domain.Asset) string
}

// BuildObservations joins each row to its asset by provider symbol. Symbols
// missing from the registry and rows mapping to an already seen key fail the
// whole batch.
func BuildObservations(rows []pricecsv.Row, registry *assets.Registry, provider Provider) ([]domain.PriceObservation, error) {
	bySymbol := registry.BySymbol(provider.Symbol)

	missing := util.NewSet[string]()
	for _, r := range rows {
		if _, ok := bySymbol[r.Symbol]; !ok {
			missing.Add(r.Symbol)
		}
	}
	if missing.Length() > 0 {
		return nil, pricesync_errors.ValidationError(
			"%s values not found in asset registry: %s",
			provider.SymbolColumn(),
			strings.Join(util.Strings(missing), ", "),
		)
	}

	seen := util.NewSet[domain.PriceKey]()
	out := make([]domain.PriceObservation, 0, len(rows))
	for _, r := range rows {
		asset := bySymbol[r.Symbol]
		o := domain.PriceObservation{
			AsOfDate:      domain.Day(r.AsOfDate),
			AssetID:       asset.AssetID,
			AccountID:     asset.AccountID,
			QuoteCurrency: asset.QuoteCurrency,
			Price:         r.Price,
			Source:        provider.Name(),
		}
		if seen.Contains(o.Key()) {
			return nil, pricesync_errors.ValidationError(
				"duplicate price for %s/%s on %s",
				o.AssetID, o.AccountID, o.Key().AsOfDate,
			)
		}
		seen.Add(o.Key())
		out = append(out, o)
	}

	return out, nil
}
