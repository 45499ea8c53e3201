package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Registry is the validated list of tracked assets.
type Registry struct {
	Assets []domain.Asset
}

// LoadFile reads and validates the registry at path.
func LoadFile(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pricesync_errors.ConfigError("could not read asset registry %s: %v", path, err)
	}
	registry, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("invalid asset registry %s: %w", path, err)
	}
	return registry, nil
}

// Parse decodes a JSON list of asset records. Any missing required field,
// unsupported quote currency, duplicate identity or duplicate provider
// symbol fails the whole load.
func Parse(b []byte) (*Registry, error) {
	raw := []json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, pricesync_errors.ConfigError("expected a list of assets: %v", err)
	}

	validate := validator.New()
	identities := map[domain.AssetIdentity]bool{}
	yahooSymbols := map[string]bool{}
	twelveDataSymbols := map[string]bool{}

	out := make([]domain.Asset, 0, len(raw))
	for i, r := range raw {
		a := domain.Asset{}
		if err := json.Unmarshal(r, &a); err != nil {
			return nil, pricesync_errors.ConfigError("asset #%d: %v", i, err)
		}
		a.AssetID = strings.TrimSpace(a.AssetID)
		a.AccountID = strings.TrimSpace(a.AccountID)
		a.YahooSymbol = strings.TrimSpace(a.YahooSymbol)
		a.TwelveDataSymbol = strings.TrimSpace(a.TwelveDataSymbol)
		a.TwelveDataExchange = strings.TrimSpace(a.TwelveDataExchange)

		if err := validate.Struct(a); err != nil {
			return nil, pricesync_errors.ConfigError("asset #%d %s: %v", i, string(r), err)
		}

		if identities[a.Identity()] {
			return nil, pricesync_errors.ConfigError("duplicate asset %s/%s", a.AssetID, a.AccountID)
		}
		identities[a.Identity()] = true

		if a.YahooSymbol != "" {
			if yahooSymbols[a.YahooSymbol] {
				return nil, pricesync_errors.ConfigError("duplicate yfinance_symbol %s", a.YahooSymbol)
			}
			yahooSymbols[a.YahooSymbol] = true
		}
		if a.TwelveDataSymbol != "" {
			if twelveDataSymbols[a.TwelveDataSymbol] {
				return nil, pricesync_errors.ConfigError("duplicate twelvedata_symbol %s", a.TwelveDataSymbol)
			}
			twelveDataSymbols[a.TwelveDataSymbol] = true
		}

		out = append(out, a)
	}

	return &Registry{Assets: out}, nil
}

// Filter returns the assets for which symbolOf yields a non-empty symbol.
func (r Registry) Filter(symbolOf func(domain.Asset) string) []domain.Asset {
	out := []domain.Asset{}
	for _, a := range r.Assets {
		if symbolOf(a) != "" {
			out = append(out, a)
		}
	}
	return out
}

// BySymbol indexes the registry by the provider symbol symbolOf returns.
func (r Registry) BySymbol(symbolOf func(domain.Asset) string) map[string]domain.Asset {
	out := map[string]domain.Asset{}
	for _, a := range r.Assets {
		if s := symbolOf(a); s != "" {
			out[s] = a
		}
	}
	return out
}
