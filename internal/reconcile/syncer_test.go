package reconcile

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/audit"
	"pricesync/internal/domain"
	"pricesync/internal/logging"
	"pricesync/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// memoryRepository is a store that applies upserts the way the table does.
type memoryRepository struct {
	rows    map[domain.PriceKey]domain.StoredPrice
	upserts int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{rows: map[domain.PriceKey]domain.StoredPrice{}}
}

func (r *memoryRepository) GetPrices(tx *sql.Tx, keys []domain.PriceKey) (map[domain.PriceKey]domain.StoredPrice, error) {
	out := map[domain.PriceKey]domain.StoredPrice{}
	for _, k := range keys {
		if v, ok := r.rows[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (r *memoryRepository) Upsert(tx *sql.Tx, observations []domain.PriceObservation) (int64, error) {
	r.upserts++
	var written int64
	for _, o := range observations {
		current, ok := r.rows[o.Key()]
		if ok && current.Price.Equal(o.Price) && current.QuoteCurrency == o.QuoteCurrency {
			continue
		}
		r.rows[o.Key()] = domain.StoredPrice{Price: o.Price, QuoteCurrency: o.QuoteCurrency}
		written++
	}
	return written, nil
}

func readAudit(t *testing.T, path string) []map[string]interface{} {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	out := []map[string]interface{}{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		out = append(out, line)
	}
	return out
}

func writeCSV(t *testing.T, dir string, lines ...string) string {
	path := filepath.Join(dir, "twelvedata_prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestSyncer_SyncFile(t *testing.T) {
	ctx := context.Background()

	t.Run("update and insert, then a no-op rerun", func(t *testing.T) {
		dir := t.TempDir()
		connector := &recordingConnector{}
		repo := newMemoryRepository()
		existing := obs("2024-05-01", "aaa", domain.QuoteCurrency_USD, "10")
		repo.rows[existing.Key()] = domain.StoredPrice{Price: existing.Price, QuoteCurrency: existing.QuoteCurrency}

		syncer := NewSyncer(newRecordingDB(connector), repo, logging.Discard())
		path := writeCSV(t, dir,
			"as_of_date,price,twelvedata_symbol",
			"2024-05-01,11,AAA",
			"2024-05-01,20,BBB",
		)

		firstLog := audit.NewLogger(filepath.Join(dir, "first.jsonl"), "first")
		result, err := syncer.SyncFile(ctx, path, testRegistry(), twelveData{}, firstLog)
		require.NoError(t, err)
		require.Equal(t, audit.Summary{
			CSVRows:         2,
			ExistingMatched: 1,
			Inserted:        1,
			Updated:         1,
			Unchanged:       0,
			DateMin:         "2024-05-01",
			DateMax:         "2024-05-01",
		}, result.Summary)
		require.Equal(t, int64(2), result.Written)
		require.Equal(t, []string{"begin", "commit"}, connector.Events())

		lines := readAudit(t, firstLog.Path)
		require.Len(t, lines, 3)
		require.Equal(t, "insert", lines[0]["action"])
		require.Equal(t, "bbb", lines[0]["asset_id"])
		require.Nil(t, lines[0]["old_price"])
		require.Equal(t, "update", lines[1]["action"])
		require.Equal(t, "aaa", lines[1]["asset_id"])
		require.Equal(t, "10", lines[1]["old_price"])
		require.Equal(t, "11", lines[1]["new_price"])
		require.Equal(t, "summary", lines[2]["action"])

		require.True(t, repo.rows[existing.Key()].Price.Equal(obs("2024-05-01", "aaa", domain.QuoteCurrency_USD, "11").Price))

		secondLog := audit.NewLogger(filepath.Join(dir, "second.jsonl"), "second")
		result, err = syncer.SyncFile(ctx, path, testRegistry(), twelveData{}, secondLog)
		require.NoError(t, err)
		require.Equal(t, 0, result.Summary.Inserted)
		require.Equal(t, 0, result.Summary.Updated)
		require.Equal(t, 2, result.Summary.Unchanged)
		require.Equal(t, 1, repo.upserts)

		lines = readAudit(t, secondLog.Path)
		require.Len(t, lines, 1)
		require.Equal(t, "summary", lines[0]["action"])
		require.Equal(t, float64(2), lines[0]["unchanged"])
	})

	t.Run("unknown symbol aborts before the store", func(t *testing.T) {
		dir := t.TempDir()
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)

		syncer := NewSyncer(newRecordingDB(connector), repo, logging.Discard())
		path := writeCSV(t, dir,
			"as_of_date,price,twelvedata_symbol",
			"2024-05-01,11,AAA",
			"2024-05-01,20,ZZZ",
		)
		auditLog := audit.NewLogger(filepath.Join(dir, "run.jsonl"), "run")

		_, err := syncer.SyncFile(ctx, path, testRegistry(), twelveData{}, auditLog)
		require.ErrorIs(t, err, pricesync_errors.ErrValidation)
		require.Empty(t, connector.Events())
		_, statErr := os.Stat(auditLog.Path)
		require.True(t, os.IsNotExist(statErr))
	})

	t.Run("invalid price aborts before the store", func(t *testing.T) {
		dir := t.TempDir()
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)

		syncer := NewSyncer(newRecordingDB(connector), repo, logging.Discard())
		path := writeCSV(t, dir,
			"as_of_date,price,twelvedata_symbol",
			"2024-05-01,-5,AAA",
		)

		_, err := syncer.SyncFile(ctx, path, testRegistry(), twelveData{}, audit.NewLogger(filepath.Join(dir, "run.jsonl"), "run"))
		require.ErrorIs(t, err, pricesync_errors.ErrValidation)
		require.Empty(t, connector.Events())
	})
}

type failingAudit struct {
	planErr   error
	rollbacks []error
}

func (a *failingAudit) LogPlan(plan domain.Plan, summary audit.Summary) error {
	return a.planErr
}

func (a *failingAudit) LogRollback(reason error) error {
	a.rollbacks = append(a.rollbacks, reason)
	return nil
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()
	observations := []domain.PriceObservation{
		obs("2024-05-01", "aaa", domain.QuoteCurrency_USD, "11"),
		obs("2024-05-01", "bbb", domain.QuoteCurrency_ARS, "20"),
	}

	t.Run("empty batch skips the store", func(t *testing.T) {
		dir := t.TempDir()
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)
		auditLog := audit.NewLogger(filepath.Join(dir, "run.jsonl"), "run")

		result, err := NewSyncer(newRecordingDB(connector), repo, logging.Discard()).Sync(ctx, nil, 0, auditLog)
		require.NoError(t, err)
		require.True(t, result.Plan.IsEmpty())
		require.Empty(t, connector.Events())
		require.Len(t, readAudit(t, auditLog.Path), 1)
	})

	t.Run("audit is durable before the upsert", func(t *testing.T) {
		dir := t.TempDir()
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)
		auditLog := audit.NewLogger(filepath.Join(dir, "run.jsonl"), "run")

		repo.EXPECT().
			GetPrices(gomock.Any(), []domain.PriceKey{observations[0].Key(), observations[1].Key()}).
			Return(map[domain.PriceKey]domain.StoredPrice{}, nil)
		repo.EXPECT().
			Upsert(gomock.Any(), observations).
			DoAndReturn(func(tx *sql.Tx, o []domain.PriceObservation) (int64, error) {
				require.Len(t, readAudit(t, auditLog.Path), 3)
				connector.record("upsert")
				return int64(len(o)), nil
			})

		_, err := NewSyncer(newRecordingDB(connector), repo, logging.Discard()).Sync(ctx, observations, 2, auditLog)
		require.NoError(t, err)
		require.Equal(t, []string{"begin", "upsert", "commit"}, connector.Events())
	})

	t.Run("audit failure rolls back", func(t *testing.T) {
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)
		repo.EXPECT().GetPrices(gomock.Any(), gomock.Any()).Return(map[domain.PriceKey]domain.StoredPrice{}, nil)

		auditLog := &failingAudit{planErr: errors.New("disk full")}
		_, err := NewSyncer(newRecordingDB(connector), repo, logging.Discard()).Sync(ctx, observations, 2, auditLog)
		require.ErrorContains(t, err, "disk full")
		require.Equal(t, []string{"begin", "rollback"}, connector.Events())
		require.Empty(t, auditLog.rollbacks)
	})

	t.Run("upsert failure rolls back and is recorded", func(t *testing.T) {
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)
		repo.EXPECT().GetPrices(gomock.Any(), gomock.Any()).Return(map[domain.PriceKey]domain.StoredPrice{}, nil)
		repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("deadlock detected"))

		auditLog := &failingAudit{}
		_, err := NewSyncer(newRecordingDB(connector), repo, logging.Discard()).Sync(ctx, observations, 2, auditLog)
		require.ErrorContains(t, err, "deadlock detected")
		require.Equal(t, []string{"begin", "rollback"}, connector.Events())
		require.Len(t, auditLog.rollbacks, 1)
	})

	t.Run("commit failure is recorded", func(t *testing.T) {
		connector := &recordingConnector{commitErr: errors.New("connection reset")}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)
		repo.EXPECT().GetPrices(gomock.Any(), gomock.Any()).Return(map[domain.PriceKey]domain.StoredPrice{}, nil)
		repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(int64(2), nil)

		auditLog := &failingAudit{}
		_, err := NewSyncer(newRecordingDB(connector), repo, logging.Discard()).Sync(ctx, observations, 2, auditLog)
		require.ErrorContains(t, err, "connection reset")
		require.Equal(t, []string{"begin", "commit"}, connector.Events())
		require.Len(t, auditLog.rollbacks, 1)
	})

	t.Run("store read failure", func(t *testing.T) {
		connector := &recordingConnector{}
		ctrl := gomock.NewController(t)
		repo := repository.NewMockPriceSnapshotRepository(ctrl)
		repo.EXPECT().GetPrices(gomock.Any(), gomock.Any()).Return(nil, errors.New("relation does not exist"))

		auditLog := &failingAudit{}
		_, err := NewSyncer(newRecordingDB(connector), repo, logging.Discard()).Sync(ctx, observations, 2, auditLog)
		require.Error(t, err)
		require.Equal(t, []string{"begin", "rollback"}, connector.Events())
	})
}
