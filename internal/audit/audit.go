// Package audit appends a JSON line per store change to a per-run log file.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pricesync/internal/domain"

	"github.com/google/uuid"
)

type Action string

const (
	Action_Insert   Action = "insert"
	Action_Update   Action = "update"
	Action_Summary  Action = "summary"
	Action_Rollback Action = "rollback"
)

type ChangeEvent struct {
	EventID       string  `json:"event_id"`
	Ts            string  `json:"ts"`
	RunID         string  `json:"run_id"`
	Action        Action  `json:"action"`
	AsOfDate      string  `json:"as_of_date"`
	AssetID       string  `json:"asset_id"`
	AccountID     string  `json:"account_id"`
	QuoteCurrency string  `json:"quote_currency"`
	OldPrice      *string `json:"old_price"`
	NewPrice      string  `json:"new_price"`
	Source        string  `json:"source"`
	// OldQuoteCurrency is set on updates that change the quote currency.
	OldQuoteCurrency string `json:"old_quote_currency,omitempty"`
}

// Summary is the closing record of a sync.
type Summary struct {
	CSVRows         int    `json:"csv_rows"`
	ExistingMatched int    `json:"existing_matched"`
	Inserted        int    `json:"inserted"`
	Updated         int    `json:"updated"`
	Unchanged       int    `json:"unchanged"`
	DateMin         string `json:"date_min"`
	DateMax         string `json:"date_max"`
}

type summaryEvent struct {
	EventID string `json:"event_id"`
	Ts      string `json:"ts"`
	RunID   string `json:"run_id"`
	Action  Action `json:"action"`
	Summary
}

type rollbackEvent struct {
	EventID string `json:"event_id"`
	Ts      string `json:"ts"`
	RunID   string `json:"run_id"`
	Action  Action `json:"action"`
	Reason  string `json:"reason"`
}

// Path is the log file of one run of one provider.
func Path(outDir string, provider domain.Source, runID string) string {
	return filepath.Join(outDir, fmt.Sprintf("%s_sync_%s.jsonl", provider, runID))
}

type Logger struct {
	Path  string
	RunID string

	now   func() time.Time
	newID func() string
}

func NewLogger(path, runID string) *Logger {
	return &Logger{
		Path:  path,
		RunID: runID,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// LogPlan records every insert and update of plan followed by summary. The
// lines are durable on disk when LogPlan returns nil.
func (l *Logger) LogPlan(plan domain.Plan, summary Summary) error {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	for _, o := range plan.ToInsert {
		if err := enc.Encode(l.changeEvent(Action_Insert, o, nil)); err != nil {
			return fmt.Errorf("failed to encode audit event: %w", err)
		}
	}
	for _, u := range plan.ToUpdate {
		previous := u.Previous.String()
		event := l.changeEvent(Action_Update, u.Observation, &previous)
		if u.PreviousCurrency != "" && u.PreviousCurrency != u.Observation.QuoteCurrency {
			event.OldQuoteCurrency = u.PreviousCurrency.String()
		}
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode audit event: %w", err)
		}
	}

	err := enc.Encode(summaryEvent{
		EventID: l.newID(),
		Ts:      l.timestamp(),
		RunID:   l.RunID,
		Action:  Action_Summary,
		Summary: summary,
	})
	if err != nil {
		return fmt.Errorf("failed to encode audit summary: %w", err)
	}

	return l.append(buf.Bytes())
}

// LogRollback marks the change lines already written by this run as not
// committed.
func (l *Logger) LogRollback(reason error) error {
	buf := &bytes.Buffer{}
	err := json.NewEncoder(buf).Encode(rollbackEvent{
		EventID: l.newID(),
		Ts:      l.timestamp(),
		RunID:   l.RunID,
		Action:  Action_Rollback,
		Reason:  reason.Error(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode audit rollback: %w", err)
	}
	return l.append(buf.Bytes())
}

func (l *Logger) changeEvent(action Action, o domain.PriceObservation, oldPrice *string) ChangeEvent {
	return ChangeEvent{
		EventID:       l.newID(),
		Ts:            l.timestamp(),
		RunID:         l.RunID,
		Action:        action,
		AsOfDate:      o.AsOfDate.Format(domain.DateLayout),
		AssetID:       o.AssetID,
		AccountID:     o.AccountID,
		QuoteCurrency: o.QuoteCurrency.String(),
		OldPrice:      oldPrice,
		NewPrice:      o.Price.String(),
		Source:        o.Source.String(),
	}
}

func (l *Logger) timestamp() string {
	return l.now().UTC().Format(time.RFC3339Nano)
}

// append never truncates; an existing log of the same run keeps its lines.
func (l *Logger) append(content []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync audit log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}
