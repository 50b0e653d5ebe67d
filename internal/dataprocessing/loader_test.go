package dataprocessing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/internal/shared/testutil"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

func newTestLoader() *Loader {
	logger, _ := testutil.NewTestLogger()
	return NewLoader(10000, logger)
}

func TestLoader_LoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteCSV(t, dir, "metrics_rat1_stage1_session1_2_1_2023.csv",
		[]string{" HH time ", "Latency to corr sample", "Latency to corr match", "Notes"},
		[][]string{
			{"1.5", "2.0", "0", "first"},
			{"", "", "", ""},
			{"2.5", "0", "0"},
		})

	table, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{domain.ColHeadHoldTime, domain.ColSampleLatency, domain.ColMatchLatency, "Notes"}, table.Columns)
	require.Len(t, table.Rows, 2, "blank rows are skipped")
	assert.Equal(t, "1.5", table.Rows[0][domain.ColHeadHoldTime])
	assert.Equal(t, "first", table.Rows[0]["Notes"])
	assert.Equal(t, "", table.Rows[1]["Notes"], "short rows are padded")
	assert.True(t, table.HasColumn(domain.ColSampleLatency))
	assert.False(t, table.HasColumn(domain.ColFalsePosMatch1))
}

func TestLoader_LoadCSVWithBOM(t *testing.T) {
	dir := t.TempDir()
	content := append([]byte{0xEF, 0xBB, 0xBF}, testutil.CSVBytes(t,
		[]string{"Latency to corr sample"}, [][]string{{"3.2"}})...)
	path := testutil.WriteFile(t, dir, "bom.csv", content)

	table, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ColSampleLatency}, table.Columns)
	assert.Equal(t, "UTF-8", table.Encoding)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "3.2", table.Rows[0][domain.ColSampleLatency])
}

func TestLoader_LoadLatin1CSV(t *testing.T) {
	dir := t.TempDir()
	utf8Text := "Latency to corr sample,Inc match 1 odor name,Notes\n" +
		"1.0,Citrón,Ratón reaccionó rápido después de la señal\n" +
		"2.0,Anís,Sesión corta por el ruido en el pasillo; volverá mañana\n" +
		"3.0,Anís,La cámara grabó la sesión también\n"
	latin1, err := charmap.ISO8859_1.NewEncoder().String(utf8Text)
	require.NoError(t, err)
	path := testutil.WriteFile(t, dir, "latin1.csv", []byte(latin1))

	table, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Citrón", table.Rows[0][domain.ColIncorrectMatch1Odor])
	assert.Equal(t, "Anís", table.Rows[1][domain.ColIncorrectMatch1Odor])
	assert.NotEqual(t, "UTF-8", table.Encoding)
}

func TestLoader_LoadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics_rat2_stage2_session1_2_1_2023.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Latency to corr sample", "Time in corr sample"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{3.2, 5}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{0, 1.5}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.ColSampleLatency, domain.ColTimeCorrectSample}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "3.2", table.Rows[0][domain.ColSampleLatency])
	assert.Equal(t, "1.5", table.Rows[1][domain.ColTimeCorrectSample])
	assert.Empty(t, table.Encoding)
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	loader := newTestLoader()

	t.Run("unsupported extension", func(t *testing.T) {
		path := testutil.WriteFile(t, dir, "metrics.json", []byte("{}"))
		_, err := loader.Load(context.Background(), path)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(context.Background(), filepath.Join(dir, "gone.csv"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	})

	t.Run("empty csv", func(t *testing.T) {
		path := testutil.WriteFile(t, dir, "empty.csv", nil)
		_, err := loader.Load(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("corrupt xlsx", func(t *testing.T) {
		path := testutil.WriteFile(t, dir, "corrupt.xlsx", []byte("not a zip"))
		_, err := loader.Load(context.Background(), path)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		path := testutil.WriteCSV(t, dir, "ok.csv", []string{"a"}, [][]string{{"1"}})
		_, err := loader.Load(ctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, SupportedExtension(".csv"))
	assert.True(t, SupportedExtension(".XLSX"))
	assert.True(t, SupportedExtension(".xls"))
	assert.False(t, SupportedExtension(".txt"))
	assert.False(t, SupportedExtension(""))
}
