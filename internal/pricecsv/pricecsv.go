// Package pricecsv reads and writes the tabular price artifacts shared by the
// fetch and sync stages.
package pricecsv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	pricesync_errors "pricesync/internal"
	"pricesync/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	ColumnAsOfDate = "as_of_date"
	ColumnPrice    = "price"
	ColumnExchange = "exchange"
	ColumnCurrency = "currency"
	ColumnInterval = "interval"
	ColumnVolume   = "volume"

	SymbolColumnTwelveData = "twelvedata_symbol"
	SymbolColumnYahoo      = "yfinance_symbol"
)

// Row is one normalized daily close.
type Row struct {
	AsOfDate time.Time
	Price    decimal.Decimal
	Symbol   string
	Exchange string
	Currency string
	Interval string
	Volume   decimal.NullDecimal
}

func Header(symbolColumn string) []string {
	return []string{
		ColumnAsOfDate,
		ColumnPrice,
		symbolColumn,
		ColumnExchange,
		ColumnCurrency,
		ColumnInterval,
		ColumnVolume,
	}
}

// SortForOutput orders rows by symbol, exchange and date.
func SortForOutput(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		if rows[i].Exchange != rows[j].Exchange {
			return rows[i].Exchange < rows[j].Exchange
		}
		return rows[i].AsOfDate.Before(rows[j].AsOfDate)
	})
}

func Encode(w io.Writer, symbolColumn string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(symbolColumn)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		volume := ""
		if r.Volume.Valid {
			volume = r.Volume.Decimal.String()
		}
		record := []string{
			r.AsOfDate.Format(domain.DateLayout),
			r.Price.String(),
			r.Symbol,
			r.Exchange,
			r.Currency,
			r.Interval,
			volume,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func Marshal(symbolColumn string, rows []Row) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := Encode(buf, symbolColumn, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile sorts rows for output and writes them to path, creating the
// parent directory if needed.
func WriteFile(path, symbolColumn string, rows []Row) error {
	sorted := append([]Row{}, rows...)
	SortForOutput(sorted)

	content, err := Marshal(symbolColumn, sorted)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func determineColumnOrder(headerRow []string, symbolColumn string) (map[string]int, error) {
	requiredColumns := []string{ColumnAsOfDate, ColumnPrice, symbolColumn}
	knownColumns := append(requiredColumns, ColumnExchange, ColumnCurrency, ColumnInterval, ColumnVolume)

	columnIndices := map[string]int{}
	for i, h := range headerRow {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.ReplaceAll(h, " ", "_")
		for _, c := range knownColumns {
			if h == c {
				columnIndices[h] = i
			}
		}
	}

	for _, rc := range requiredColumns {
		if _, ok := columnIndices[rc]; !ok {
			return nil, fmt.Errorf("missing required column '%s'", rc)
		}
	}

	return columnIndices, nil
}

// Decode parses and validates a price table. Every row must carry a
// parseable date, a decimal price greater than zero and a non-blank symbol;
// a single bad row fails the whole table. Rows sharing (symbol, date)
// collapse to the last one in input order, and the result is ordered by
// symbol and date.
func Decode(r io.Reader, symbolColumn string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, pricesync_errors.ValidationError("csv is empty")
	}
	if err != nil {
		return nil, pricesync_errors.ValidationError("failed to read csv header: %v", err)
	}
	ordering, err := determineColumnOrder(header, symbolColumn)
	if err != nil {
		return nil, pricesync_errors.ValidationError("%v", err)
	}

	field := func(record []string, column string) string {
		i, ok := ordering[column]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	rows := []Row{}
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, pricesync_errors.ValidationError("line %d: %v", line, err)
		}

		date, err := time.Parse(domain.DateLayout, field(record, ColumnAsOfDate))
		if err != nil {
			return nil, pricesync_errors.ValidationError("line %d: invalid %s %q", line, ColumnAsOfDate, field(record, ColumnAsOfDate))
		}
		price, err := decimal.NewFromString(field(record, ColumnPrice))
		if err != nil {
			return nil, pricesync_errors.ValidationError("line %d: non-numeric %s %q", line, ColumnPrice, field(record, ColumnPrice))
		}
		if !price.IsPositive() {
			return nil, pricesync_errors.ValidationError("line %d: %s must be > 0, got %s", line, ColumnPrice, price)
		}
		symbol := field(record, symbolColumn)
		if symbol == "" {
			return nil, pricesync_errors.ValidationError("line %d: blank %s", line, symbolColumn)
		}

		row := Row{
			AsOfDate: date,
			Price:    price,
			Symbol:   symbol,
			Exchange: field(record, ColumnExchange),
			Currency: field(record, ColumnCurrency),
			Interval: field(record, ColumnInterval),
		}
		if v := field(record, ColumnVolume); v != "" {
			volume, err := decimal.NewFromString(v)
			if err != nil {
				return nil, pricesync_errors.ValidationError("line %d: non-numeric %s %q", line, ColumnVolume, v)
			}
			row.Volume = decimal.NewNullDecimal(volume)
		}
		rows = append(rows, row)
	}

	return dedupe(rows), nil
}

func dedupe(rows []Row) []Row {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].AsOfDate.Before(rows[j].AsOfDate)
	})

	out := make([]Row, 0, len(rows))
	for i, r := range rows {
		if i+1 < len(rows) && rows[i+1].Symbol == r.Symbol && rows[i+1].AsOfDate.Equal(r.AsOfDate) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Load reads and validates the price table at path.
func Load(path, symbolColumn string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Decode(f, symbolColumn)
	if err != nil {
		return nil, fmt.Errorf("invalid price csv %s: %w", path, err)
	}
	return rows, nil
}
