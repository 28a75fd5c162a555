package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rio-pipeline/config"
	"rio-pipeline/services"
	"rio-pipeline/storage"
	"rio-pipeline/utils"
)

func setupCheck(t *testing.T, content string) string {
	t.Helper()
	cfg = &config.Config{KPI: config.DefaultKPI()}
	logger = utils.NewDiscardLogger()
	path := filepath.Join(t.TempDir(), "best.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func table(passing, failing int) string {
	var b strings.Builder
	b.WriteString("id,roi_precise,risk_label\n")
	for i := 0; i < passing; i++ {
		fmt.Fprintf(&b, "p%d,15.00,Basso\n", i)
	}
	for i := 0; i < failing; i++ {
		fmt.Fprintf(&b, "f%d,14.99,Basso\n", i)
	}
	return b.String()
}

func TestCheckTablePasses(t *testing.T) {
	path := setupCheck(t, table(9, 1))
	res, err := checkTable(path)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Passing)
}

func TestCheckTableShortfall(t *testing.T) {
	path := setupCheck(t, table(8, 2))
	_, err := checkTable(path)
	require.ErrorIs(t, err, services.ErrKPIShortfall)
	assert.Contains(t, err.Error(), "80.0%")
	assert.Contains(t, err.Error(), "90.0%")
	assert.Equal(t, 1, exitCode(err))
}

func TestCheckTableEmpty(t *testing.T) {
	path := setupCheck(t, "id,roi_precise,risk_label\n")
	_, err := checkTable(path)
	require.ErrorIs(t, err, services.ErrEmptyTable)
	assert.Equal(t, 2, exitCode(err))
}

func TestCheckTableMissingFile(t *testing.T) {
	setupCheck(t, "")
	_, err := checkTable(filepath.Join(t.TempDir(), "none.csv"))
	assert.ErrorIs(t, err, storage.ErrInputNotFound)
}
