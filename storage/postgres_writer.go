package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rio-pipeline/models"
)

const insertColumns = 15

// PostgresWriter persists the final auction table to PostgreSQL, one
// row set per run.
type PostgresWriter struct {
	db     *sql.DB
	runID  string
	locale string
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a writer that tags every row with runID.
func NewPostgresWriter(dsn, runID, locale string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: runID, locale: locale}
	if err := pw.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS auctions (
			run_id           VARCHAR(64)   NOT NULL,
			id               TEXT          NOT NULL,
			address          TEXT          NOT NULL DEFAULT '',
			price            NUMERIC(14,2),
			appraisal_value  NUMERIC(14,2),
			roi_precise      NUMERIC(10,2),
			risk_label       VARCHAR(16)   NOT NULL DEFAULT '',
			occupancy        TEXT          NOT NULL DEFAULT '',
			description      TEXT          NOT NULL DEFAULT '',
			url              TEXT          NOT NULL DEFAULT '',
			property_type    TEXT          NOT NULL DEFAULT '',
			debt_condo       TEXT          NOT NULL DEFAULT '',
			zone_description TEXT          NOT NULL DEFAULT '',
			condition_notes  TEXT          NOT NULL DEFAULT '',
			urban_notes      TEXT          NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_auctions_roi  ON auctions(roi_precise);
		CREATE INDEX IF NOT EXISTS idx_auctions_risk ON auctions(risk_label);
	`)
	return err
}

// Write batch-inserts the records under the writer's run id and returns
// how many rows were sent.
func (pw *PostgresWriter) Write(records []models.AuctionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	const batchSize = 50
	written := 0
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		query, args := buildInsert(pw.runID, pw.locale, records[i:end])
		if _, err := pw.db.Exec(query, args...); err != nil {
			return written, fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
		written += end - i
	}
	return written, nil
}

func buildInsert(runID, locale string, batch []models.AuctionRecord) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*insertColumns)

	for idx, r := range batch {
		base := idx * insertColumns
		placeholders := make([]string, insertColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			runID, r.ID, r.Address, r.Price, r.AppraisalValue, r.ROIPrecise,
			r.RiskLabel.Localized(locale), r.Occupancy, r.Description, r.URL,
			r.PropertyType, r.DebtCondo, r.ZoneDescription, r.ConditionNotes, r.UrbanNotes)
	}

	query := fmt.Sprintf(`
		INSERT INTO auctions (run_id, id, address, price, appraisal_value, roi_precise,
			risk_label, occupancy, description, url, property_type, debt_condo,
			zone_description, condition_notes, urban_notes)
		VALUES %s
		ON CONFLICT (run_id, id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
