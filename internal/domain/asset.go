package domain

type QuoteCurrency string

const (
	QuoteCurrency_USD QuoteCurrency = "USD"
	QuoteCurrency_ARS QuoteCurrency = "ARS"
)

func (c QuoteCurrency) String() string { return string(c) }

// Asset is one tracked (asset, account) pair and the identifiers each
// provider knows it by. Provider fields are optional; an asset without a
// symbol for a provider is simply not fetched from it.
type Asset struct {
	AssetID            string        `json:"asset_id" validate:"required"`
	AccountID          string        `json:"account_id" validate:"required"`
	QuoteCurrency      QuoteCurrency `json:"quote_currency" validate:"required,oneof=USD ARS"`
	YahooSymbol        string        `json:"yfinance_symbol,omitempty"`
	TwelveDataSymbol   string        `json:"twelvedata_symbol,omitempty"`
	TwelveDataExchange string        `json:"twelvedata_exchange,omitempty"`
}

type AssetIdentity struct {
	AssetID   string
	AccountID string
}

func (a Asset) Identity() AssetIdentity {
	return AssetIdentity{AssetID: a.AssetID, AccountID: a.AccountID}
}
