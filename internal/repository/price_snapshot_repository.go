package repository

import (
	"database/sql"
	"fmt"

	"pricesync/internal/db/models/postgres/public/model"
	. "pricesync/internal/db/models/postgres/public/table"
	"pricesync/internal/domain"

	"github.com/go-jet/jet/v2/postgres"
)

// Batches stay far below the 65535 bind parameter limit of a statement.
const (
	lookupBatchSize = 1000
	upsertBatchSize = 1000
)

//go:generate mockgen -source=price_snapshot_repository.go -destination=mock_price_snapshot_repository.go -package=repository PriceSnapshotRepository
type PriceSnapshotRepository interface {
	// GetPrices returns the stored price of every key that exists.
	GetPrices(tx *sql.Tx, keys []domain.PriceKey) (map[domain.PriceKey]domain.StoredPrice, error)
	// Upsert inserts new keys and rewrites existing keys whose price or quote
	// currency differ. It returns the number of rows written.
	Upsert(tx *sql.Tx, observations []domain.PriceObservation) (int64, error)
}

type priceSnapshotRepositoryHandler struct{}

func NewPriceSnapshotRepository() PriceSnapshotRepository {
	return priceSnapshotRepositoryHandler{}
}

func (h priceSnapshotRepositoryHandler) GetPrices(tx *sql.Tx, keys []domain.PriceKey) (map[domain.PriceKey]domain.StoredPrice, error) {
	out := map[domain.PriceKey]domain.StoredPrice{}

	for start := 0; start < len(keys); start += lookupBatchSize {
		end := start + lookupBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		result := []model.PricesSnapshots{}
		err := getPricesQuery(keys[start:end]).Query(tx, &result)
		if err != nil {
			return nil, fmt.Errorf("failed to get existing prices: %w", err)
		}

		for _, r := range result {
			out[domain.NewPriceKey(r.AsOfDate, r.AssetID, r.AccountID)] = domain.StoredPrice{
				Price:         r.Price,
				QuoteCurrency: domain.QuoteCurrency(r.QuoteCurrency),
			}
		}
	}

	return out, nil
}

func getPricesQuery(keys []domain.PriceKey) postgres.SelectStatement {
	t := PricesSnapshots

	exp := []postgres.BoolExpression{}
	for _, k := range keys {
		exp = append(
			exp,
			postgres.AND(
				t.AsOfDate.EQ(postgres.DateT(k.Date())),
				t.AssetID.EQ(postgres.String(k.AssetID)),
				t.AccountID.EQ(postgres.String(k.AccountID)),
			),
		)
	}

	return postgres.SELECT(
		t.AsOfDate,
		t.AssetID,
		t.AccountID,
		t.QuoteCurrency,
		t.Price,
	).FROM(t).
		WHERE(postgres.OR(exp...))
}

func (h priceSnapshotRepositoryHandler) Upsert(tx *sql.Tx, observations []domain.PriceObservation) (int64, error) {
	models := priceSnapshotsToDb(observations)

	var written int64
	for start := 0; start < len(models); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(models) {
			end = len(models)
		}

		result, err := upsertQuery(models[start:end]).Exec(tx)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert prices: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count upserted prices: %w", err)
		}
		written += n
	}

	return written, nil
}

// upsertQuery leaves rows whose price and quote currency already match
// untouched, fetched_at included.
func upsertQuery(models []model.PricesSnapshots) postgres.InsertStatement {
	t := PricesSnapshots
	return t.INSERT(
		t.AsOfDate,
		t.AssetID,
		t.AccountID,
		t.QuoteCurrency,
		t.Price,
		t.Source,
	).
		MODELS(models).
		ON_CONFLICT(t.AsOfDate, t.AssetID, t.AccountID).
		DO_UPDATE(
			postgres.SET(
				t.Price.SET(t.EXCLUDED.Price),
				t.QuoteCurrency.SET(t.EXCLUDED.QuoteCurrency),
				t.Source.SET(t.EXCLUDED.Source),
				t.FetchedAt.SET(postgres.NOW()),
			).WHERE(
				postgres.OR(
					t.Price.IS_DISTINCT_FROM(t.EXCLUDED.Price),
					t.QuoteCurrency.IS_DISTINCT_FROM(t.EXCLUDED.QuoteCurrency),
				),
			),
		)
}

func priceSnapshotToDb(o domain.PriceObservation) model.PricesSnapshots {
	return model.PricesSnapshots{
		AsOfDate:      domain.Day(o.AsOfDate),
		AssetID:       o.AssetID,
		AccountID:     o.AccountID,
		QuoteCurrency: o.QuoteCurrency.String(),
		Price:         o.Price,
		Source:        o.Source.String(),
	}
}

func priceSnapshotsToDb(o []domain.PriceObservation) []model.PricesSnapshots {
	out := make([]model.PricesSnapshots, len(o))
	for i, d := range o {
		out[i] = priceSnapshotToDb(d)
	}
	return out
}
