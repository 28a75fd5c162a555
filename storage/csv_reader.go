package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"rio-pipeline/models"
)

// ErrInputNotFound is returned when the input file does not exist.
var ErrInputNotFound = errors.New("input file not found")

const utf8BOM = "\ufeff"

// ReadCSV loads a delimited file into one map per row keyed by header name.
// The delimiter (',' or ';') is taken from the header line. Rows with more
// fields than the header are skipped and reported as row errors.
func ReadCSV(path string) ([]map[string]any, []models.RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("csv: %w: %s", ErrInputNotFound, path)
		}
		return nil, nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	return ParseCSV(f)
}

// ParseCSV is ReadCSV over an arbitrary reader.
func ParseCSV(r io.Reader) ([]map[string]any, []models.RowError, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(string(first))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}

	var rows []map[string]any
	var rowErrs []models.RowError
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, models.RowError{ID: fmt.Sprintf("line-%d", line), Stage: "read", Err: err})
			continue
		}
		if len(record) > len(header) {
			rowErrs = append(rowErrs, models.RowError{
				ID:    fmt.Sprintf("line-%d", line),
				Stage: "read",
				Err:   fmt.Errorf("%d fields, header has %d", len(record), len(header)),
			})
			continue
		}

		row := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = nil
			}
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func detectDelimiter(sample string) rune {
	headerLine, _, _ := strings.Cut(sample, "\n")
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}
