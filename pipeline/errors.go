package pipeline

import (
	"errors"

	"rio-pipeline/storage"
)

var (
	// ErrNoSuccessfulRows is returned when a run ends with nothing to write.
	// No output file is produced in that case.
	ErrNoSuccessfulRows = errors.New("pipeline: no successful rows")

	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = storage.ErrInputNotFound
)
