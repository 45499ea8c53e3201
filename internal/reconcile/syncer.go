package reconcile

import (
	"context"
	"database/sql"
	"fmt"

	"pricesync/internal/assets"
	"pricesync/internal/audit"
	"pricesync/internal/domain"
	"pricesync/internal/pricecsv"
	"pricesync/internal/repository"

	"github.com/sirupsen/logrus"
)

// AuditLog records the changes of one sync.
type AuditLog interface {
	LogPlan(plan domain.Plan, summary audit.Summary) error
	LogRollback(reason error) error
}

// Syncer reconciles a batch of observations with the store inside a single
// transaction. The audit lines of a plan are durable before its writes are
// issued, and a failure after that point is recorded as a rollback event.
type Syncer struct {
	Db                      *sql.DB
	PriceSnapshotRepository repository.PriceSnapshotRepository
	Logger                  logrus.FieldLogger
}

func NewSyncer(dbConn *sql.DB, priceSnapshotRepository repository.PriceSnapshotRepository, logger logrus.FieldLogger) *Syncer {
	return &Syncer{
		Db:                      dbConn,
		PriceSnapshotRepository: priceSnapshotRepository,
		Logger:                  logger,
	}
}

type SyncResult struct {
	Plan    domain.Plan
	Summary audit.Summary
	Written int64
}

// SyncFile loads and validates the provider's price table, joins it to the
// registry and reconciles it. Nothing is read from or written to the store
// when validation fails.
func (s Syncer) SyncFile(ctx context.Context, path string, registry *assets.Registry, provider Provider, auditLog AuditLog) (*SyncResult, error) {
	rows, err := pricecsv.Load(path, provider.SymbolColumn())
	if err != nil {
		return nil, err
	}
	observations, err := BuildObservations(rows, registry, provider)
	if err != nil {
		return nil, fmt.Errorf("invalid price csv %s: %w", path, err)
	}
	return s.Sync(ctx, observations, len(rows), auditLog)
}

func (s Syncer) Sync(ctx context.Context, observations []domain.PriceObservation, csvRows int, auditLog AuditLog) (*SyncResult, error) {
	summary := audit.Summary{CSVRows: csvRows}
	if first, last, ok := domain.DateRange(observations); ok {
		summary.DateMin = first.Format(domain.DateLayout)
		summary.DateMax = last.Format(domain.DateLayout)
	}

	if len(observations) == 0 {
		plan := Diff(nil, nil)
		if err := auditLog.LogPlan(plan, summary); err != nil {
			return nil, fmt.Errorf("failed to write audit log: %w", err)
		}
		s.Logger.Info("no prices to reconcile")
		return &SyncResult{Plan: plan, Summary: summary}, nil
	}

	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}

	existing, err := s.PriceSnapshotRepository.GetPrices(tx, keysOf(observations))
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	plan := Diff(observations, existing)
	summary.ExistingMatched = len(existing)
	summary.Inserted = len(plan.ToInsert)
	summary.Updated = len(plan.ToUpdate)
	summary.Unchanged = plan.Unchanged

	if err := auditLog.LogPlan(plan, summary); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}

	result := &SyncResult{Plan: plan, Summary: summary}

	if !plan.IsEmpty() {
		written, err := s.PriceSnapshotRepository.Upsert(tx, observations)
		if err != nil {
			tx.Rollback()
			return nil, s.rolledBack(auditLog, err)
		}
		if written != int64(plan.Writes()) {
			s.Logger.Warnf("planned %d writes but the store wrote %d rows", plan.Writes(), written)
		}
		result.Written = written
	}

	if err := tx.Commit(); err != nil {
		return nil, s.rolledBack(auditLog, fmt.Errorf("failed to commit: %w", err))
	}

	s.Logger.WithFields(logrus.Fields{
		"csv_rows":         summary.CSVRows,
		"existing_matched": summary.ExistingMatched,
		"inserted":         summary.Inserted,
		"updated":          summary.Updated,
		"unchanged":        summary.Unchanged,
	}).Info("reconciled prices")

	return result, nil
}

func (s Syncer) rolledBack(auditLog AuditLog, err error) error {
	if logErr := auditLog.LogRollback(err); logErr != nil {
		s.Logger.Errorf("failed to record rollback in audit log: %v", logErr)
	}
	return err
}
