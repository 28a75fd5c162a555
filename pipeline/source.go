package pipeline

import (
	"context"

	"rio-pipeline/models"
	"rio-pipeline/scraper/aste"
	"rio-pipeline/storage"
)

// RowSource supplies the raw rows of one run.
type RowSource interface {
	Rows(ctx context.Context) ([]map[string]any, []models.RowError, error)
}

// CSVSource reads rows from a local CSV file.
type CSVSource struct {
	Path string
}

func (s CSVSource) Rows(context.Context) ([]map[string]any, []models.RowError, error) {
	return storage.ReadCSV(s.Path)
}

// APISource downloads rows from the listing API.
type APISource struct {
	Client *aste.Client
	Query  aste.Query
}

func (s APISource) Rows(ctx context.Context) ([]map[string]any, []models.RowError, error) {
	rows, err := s.Client.Fetch(ctx, s.Query)
	return rows, nil, err
}
