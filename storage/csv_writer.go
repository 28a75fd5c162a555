package storage

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"

	"rio-pipeline/models"
)

// Columns is the fixed column order of the output artifact.
var Columns = []string{
	"id", "address", "price", "appraisal_value", "roi_precise", "risk_label",
	"occupancy", "description", "url", "property_type",
	"debt_condo", "zone_description", "condition_notes", "urban_notes",
}

// CSVWriter writes the final auction table to a UTF-8 CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	locale string
}

// NewCSVWriter returns a writer for path. Nothing touches the filesystem
// until Write is called, so a run that produces no rows leaves no artifact.
// locale selects how risk labels are rendered ("it" for Basso/Medio/Alto).
func NewCSVWriter(path, locale string) *CSVWriter {
	return &CSVWriter{path: path, locale: locale}
}

// Path returns the output file path.
func (c *CSVWriter) Path() string { return c.path }

// Write creates (or truncates) the file, writes the header and one row per
// record, and returns the number of rows written. Intermediate directories
// are created automatically.
func (c *CSVWriter) Write(records []models.AuctionRecord) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("csv: create output dir: %w", err)
		}
	}

	f, err := os.Create(c.path)
	if err != nil {
		return 0, fmt.Errorf("csv: create file %q: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return 0, fmt.Errorf("csv: write header: %w", err)
	}

	for i, r := range records {
		row := []string{
			r.ID,
			r.Address,
			formatAmount(r.Price),
			formatAmount(r.AppraisalValue),
			formatPercent(r.ROIPrecise),
			r.RiskLabel.Localized(c.locale),
			r.Occupancy,
			r.Description,
			r.URL,
			r.PropertyType,
			r.DebtCondo,
			r.ZoneDescription,
			r.ConditionNotes,
			r.UrbanNotes,
		}
		if err := w.Write(row); err != nil {
			return i, fmt.Errorf("csv: write row %s: %w", r.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("csv: flush: %w", err)
	}
	return len(records), f.Close()
}

// Close is a no-op; Write opens and closes the file itself.
func (c *CSVWriter) Close() error { return nil }

func formatAmount(n sql.NullFloat64) string {
	if !n.Valid {
		return ""
	}
	return decimal.NewFromFloat(n.Float64).String()
}

func formatPercent(n sql.NullFloat64) string {
	if !n.Valid {
		return ""
	}
	return decimal.NewFromFloat(n.Float64).StringFixed(2)
}
