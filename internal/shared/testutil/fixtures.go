package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// RigHeader is the header row written by the rig software.
var RigHeader = []string{
	domain.ColHeadHoldTime,
	domain.ColSampleLatency,
	domain.ColMatchLatency,
	domain.ColPokesCorrectSample,
	domain.ColTimeCorrectSample,
	domain.ColPokesIncorrectSample,
	domain.ColTimeIncorrectSample,
	domain.ColPokesCorrectMatch,
	domain.ColTimeCorrectMatch,
	domain.ColFalsePosSample,
	domain.ColFalsePosMatch1,
	domain.ColFalsePosMatch2,
	domain.ColIncorrectMatch1Odor,
	domain.ColIncorrectMatch2Odor,
}

// MetricsFileName builds a file name in the rig's naming scheme.
func MetricsFileName(rat int, stage domain.Stage, session int, date time.Time) string {
	return fmt.Sprintf("metrics_rat%d_stage%d_session%d_%d_%d_%d.csv",
		rat, stage, session, int(date.Month()), date.Day(), date.Year())
}

// CSVBytes renders header and rows as CSV.
func CSVBytes(t *testing.T, header []string, rows [][]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

// WriteCSV writes a CSV fixture and returns its path.
func WriteCSV(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()
	return WriteFile(t, dir, name, CSVBytes(t, header, rows))
}

// RigRow builds a row in RigHeader order from a column->value map; absent
// columns are left empty.
func RigRow(values map[string]string) []string {
	row := make([]string, len(RigHeader))
	for i, col := range RigHeader {
		row[i] = values[col]
	}
	return row
}
