package exporter

import (
	"io"
	"log/slog"

	"github.com/samber/lo"

	"github.com/samobrien878/Williams-Data-Pipline/internal/config"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

var (
	leadColumns = []string{"Date", "RatID", "Stage", domain.FieldTrialCount}
	tailColumns = []string{
		"TP" + domain.SuffixTotal,
		"FP" + domain.SuffixTotal,
		"S_FP" + domain.SuffixTotal,
		"M_FP" + domain.SuffixTotal,
		"Timeout" + domain.SuffixTotal,
		domain.FieldTrialsCompleted,
		domain.FieldMaxHeadHold,
		domain.FieldSampleOdorFP,
		domain.FieldMatchOdorFP,
	}
)

// SummaryTable lays daily summaries out as CSV. Every averaged column that
// appears in any row gets a "<col>_avg" column; cells a row does not carry
// are left empty.
func SummaryTable(rows []domain.DailySummary) ([]string, [][]string) {
	avgCols := averageColumns(rows)

	headers := make([]string, 0, len(leadColumns)+len(avgCols)+len(tailColumns))
	headers = append(headers, leadColumns...)
	headers = append(headers, lo.Map(avgCols, func(c string, _ int) string { return c + domain.SuffixAverage })...)
	headers = append(headers, tailColumns...)

	records := lo.Map(rows, func(s domain.DailySummary, _ int) []string {
		record := []string{
			s.Date.Format(config.DateLayout),
			formatInt(s.RatID),
			formatInt(int(s.Stage)),
			formatInt(s.TrialCount),
		}
		for _, col := range avgCols {
			if v, ok := s.Averages[col]; ok {
				record = append(record, formatFloat(v))
			} else {
				record = append(record, "")
			}
		}

		maxHH := ""
		if s.MaxHeadHold != nil {
			maxHH = formatFloat(*s.MaxHeadHold)
		}
		return append(record,
			formatInt(s.TruePositiveTotal),
			formatFloat(s.FalsePositiveTotal),
			formatFloat(s.SampleFalsePositiveTotal),
			formatFloat(s.MatchFalsePositiveTotal),
			formatInt(s.TimeoutTotal),
			formatInt(s.TrialsCompleted),
			maxHH,
			s.SampleOdorFP,
			s.MatchOdorFP,
		)
	})

	return headers, records
}

func averageColumns(rows []domain.DailySummary) []string {
	union := domain.DailySummary{Averages: make(map[string]float64)}
	for _, s := range rows {
		for col := range s.Averages {
			union.Averages[col] = 0
		}
	}
	return union.AverageColumns()
}

// WriteSummaries streams rows to out as a BOM-prefixed CSV document.
func WriteSummaries(out io.Writer, rows []domain.DailySummary) error {
	headers, records := SummaryTable(rows)
	return Write(out, WriteOptions{Headers: headers, Records: records, BOMPrefix: true})
}

// ExportSummaries writes rows to filePath.
func (w *CSVWriter) ExportSummaries(filePath string, rows []domain.DailySummary) error {
	headers, records := SummaryTable(rows)
	if err := w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return err
	}
	w.logger.Info("summaries exported", slog.String("file", filePath), slog.Int("rows", len(rows)))
	return nil
}
