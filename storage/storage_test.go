package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rio-pipeline/models"
)

func sampleRecords() []models.AuctionRecord {
	return []models.AuctionRecord{
		{
			ID: "A1", Address: "Via Appia 10, Roma", Price: models.Float(100000),
			AppraisalValue: models.Float(150000), ROIPrecise: models.Float(50),
			RiskLabel: models.RiskLow, Occupancy: "libero", URL: "https://example.org/a1",
			DebtCondo: "1200.5",
		},
		{
			ID: "A2", Address: "Piazza \"Navona\", 3", ROIPrecise: models.Float(12.345),
			RiskLabel: models.RiskHigh, Occupancy: "occupato, con titolo",
		},
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "best.csv")
	w := NewCSVWriter(path, "en")

	n, err := w.Write(sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, rowErrs, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.Equal(t, "A1", rows[0]["id"])
	assert.Equal(t, "100000", rows[0]["price"])
	assert.Equal(t, "50.00", rows[0]["roi_precise"])
	assert.Equal(t, "Low", rows[0]["risk_label"])
	assert.Equal(t, "1200.5", rows[0]["debt_condo"])

	assert.Equal(t, `Piazza "Navona", 3`, rows[1]["address"])
	assert.Equal(t, "", rows[1]["price"], "missing numbers are empty cells")
	assert.Equal(t, "12.35", rows[1]["roi_precise"])
	assert.Equal(t, "occupato, con titolo", rows[1]["occupancy"])
}

func TestCSVWriterHeaderOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.csv")
	_, err := NewCSVWriter(path, "en").Write(nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Columns, ",")+"\n", string(data))
}

func TestCSVWriterItalianLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.csv")
	_, err := NewCSVWriter(path, "it").Write(sampleRecords())
	require.NoError(t, err)

	rows, _, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "Basso", rows[0]["risk_label"])
	assert.Equal(t, "Alto", rows[1]["risk_label"])
}

func TestCSVWriterDoesNotTouchDiskUntilWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never", "best.csv")
	w := NewCSVWriter(path, "en")
	require.NoError(t, w.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestParseCSVSemicolonAndBOM(t *testing.T) {
	in := "\ufeffid;prezzo;indirizzo\n1;100.000,50;Via Roma\n2;;\n"
	rows, rowErrs, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, "100.000,50", rows[0]["prezzo"])
	assert.Equal(t, "", rows[1]["indirizzo"])
}

func TestParseCSVShortAndLongRows(t *testing.T) {
	in := "id,price,address\n1,10\n2,20,Via A,extra\n3,30,Via B\n"
	rows, rowErrs, err := ParseCSV(strings.NewReader(in))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0]["id"])
	assert.Nil(t, rows[0]["address"], "short rows are padded with nil")
	assert.Equal(t, "3", rows[1]["id"])

	require.Len(t, rowErrs, 1)
	assert.Equal(t, "line-3", rowErrs[0].ID)
	assert.Equal(t, "read", rowErrs[0].Stage)
}

func TestParseCSVEmpty(t *testing.T) {
	rows, rowErrs, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, rowErrs)
}

func TestReadCSVMissingFile(t *testing.T) {
	_, _, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestBuildInsert(t *testing.T) {
	query, args := buildInsert("run-9", "it", sampleRecords())

	assert.Contains(t, query, "INSERT INTO auctions")
	assert.Contains(t, query, "ON CONFLICT (run_id, id) DO NOTHING")
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)")
	assert.Contains(t, query, "($16,")
	assert.Contains(t, query, "$30)")
	assert.NotContains(t, query, "$31")

	require.Len(t, args, 2*insertColumns)
	assert.Equal(t, "run-9", args[0])
	assert.Equal(t, "A1", args[1])
	assert.Equal(t, models.Float(100000), args[3])
	assert.Equal(t, "Basso", args[6])
	assert.Equal(t, "run-9", args[insertColumns])
	assert.Equal(t, "A2", args[insertColumns+1])
	assert.Equal(t, sql.NullFloat64{}, args[insertColumns+3])
}
