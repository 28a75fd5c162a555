package services

import "errors"

var (
	// ErrMissingID is returned for input rows without a usable identifier.
	ErrMissingID = errors.New("row has no id")

	// ErrDuplicateID is returned when the same id appears twice in a table
	// that must be keyed by id. The merge join would be ambiguous.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrEmptyTable is returned by the KPI check when there are no rows.
	// An empty table can never satisfy the KPI and is reported apart from a shortfall.
	ErrEmptyTable = errors.New("kpi: table has no rows")

	// ErrKPIShortfall is returned when the passing ratio is below the required one.
	ErrKPIShortfall = errors.New("kpi: pass ratio below requirement")
)
