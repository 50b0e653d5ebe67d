package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/saintfish/chardet"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// Row maps a canonical column name to its raw cell text.
type Row map[string]string

// Table is a file's header and data rows, in file order.
type Table struct {
	Columns []string
	Rows    []Row
	// Encoding is the detected text encoding for CSV input, empty otherwise.
	Encoding string
}

// HasColumn reports whether the header contains col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Loader reads CSV, XLS and XLSX files into Tables.
type Loader struct {
	sampleBytes int
	detector    *chardet.Detector
	logger      *slog.Logger
}

// NewLoader creates a loader that sniffs CSV encodings from the first
// sampleBytes bytes of each file.
func NewLoader(sampleBytes int, logger *slog.Logger) *Loader {
	if sampleBytes <= 0 {
		sampleBytes = 10000
	}
	return &Loader{
		sampleBytes: sampleBytes,
		detector:    chardet.NewTextDetector(),
		logger:      logger.With(slog.String("component", "loader")),
	}
}

// SupportedExtension reports whether the loader can read files with ext.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".csv", ".xls", ".xlsx":
		return true
	}
	return false
}

// Load reads path into a Table. The first non-blank row is the header.
func (l *Loader) Load(ctx context.Context, path string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		records  [][]string
		encName  string
		err      error
		ext      = strings.ToLower(filepath.Ext(path))
		fileName = filepath.Base(path)
	)

	switch ext {
	case ".csv":
		records, encName, err = l.readCSV(ctx, path)
	case ".xlsx":
		records, err = readXLSX(path)
	case ".xls":
		records, err = readXLS(path)
	default:
		return nil, apperrors.NewParsingError(fmt.Sprintf("extension %q", ext), apperrors.ErrUnsupportedFormat).
			WithContext("file", fileName)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("read "+fileName, err).WithContext("file", fileName)
	}

	table, err := buildTable(records)
	if err != nil {
		return nil, apperrors.NewParsingError("read "+fileName, err).WithContext("file", fileName)
	}
	table.Encoding = encName

	l.logger.DebugContext(ctx, "file loaded",
		slog.String("file", fileName),
		slog.Int("columns", len(table.Columns)),
		slog.Int("rows", len(table.Rows)),
		slog.String("encoding", encName))

	return table, nil
}

func (l *Loader) readCSV(ctx context.Context, path string) ([][]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	text, encName, err := l.decode(ctx, data)
	if err != nil {
		return nil, encName, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, encName, fmt.Errorf("parse csv: %w", err)
	}
	return records, encName, nil
}

// decode converts data to UTF-8. BOMs are authoritative; otherwise the
// encoding is detected from a leading sample.
func (l *Loader) decode(ctx context.Context, data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], "UTF-8", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		return out, "UTF-16LE", err
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		return out, "UTF-16BE", err
	}

	sample := data
	if len(sample) > l.sampleBytes {
		sample = sample[:l.sampleBytes]
	}

	charset := "UTF-8"
	if len(sample) > 0 {
		result, err := l.detector.DetectBest(sample)
		if err == nil {
			charset = result.Charset
		}
	}

	if utf8.Valid(data) {
		return data, "UTF-8", nil
	}

	var enc encoding.Encoding
	enc, err := htmlindex.Get(charset)
	if err != nil || enc == encoding.Nop || strings.EqualFold(charset, "UTF-8") {
		l.logger.WarnContext(ctx, "detected charset unusable, assuming windows-1252",
			slog.String("charset", charset))
		enc, charset = charmap.Windows1252, "windows-1252"
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, charset, fmt.Errorf("decode %s: %w", charset, err)
	}
	return out, charset, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	var records [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		records = append(records, cells)
	}
	return records, nil
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func buildTable(records [][]string) (*Table, error) {
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, fmt.Errorf("no header row")
	}

	header := records[start]
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = domain.CanonicalColumn(h)
	}

	table := &Table{Columns: columns}
	for _, record := range records[start+1:] {
		if blank(record) {
			continue
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
