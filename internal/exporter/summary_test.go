package exporter

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

var exportDay = time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)

func headHoldSummary() domain.DailySummary {
	maxHH := 12.5
	return domain.DailySummary{
		Date:            exportDay,
		RatID:           4,
		Stage:           domain.StageHeadHold,
		TrialCount:      2,
		Averages:        map[string]float64{domain.ColHeadHoldTime: 9.25, domain.ColSampleLatency: 1.5},
		TimeoutTotal:    1,
		TrialsCompleted: 1,
		MaxHeadHold:     &maxHH,
	}
}

func matchSummary() domain.DailySummary {
	return domain.DailySummary{
		Date:                     exportDay,
		RatID:                    3,
		Stage:                    domain.StageMatch,
		TrialCount:               3,
		Averages:                 map[string]float64{domain.ColSampleLatency: 2, domain.ColMatchLatency: 1.3333333333333333},
		TruePositiveTotal:        4,
		FalsePositiveTotal:       4,
		SampleFalsePositiveTotal: 1,
		MatchFalsePositiveTotal:  3,
		TimeoutTotal:             1,
		TrialsCompleted:          2,
		SampleOdorFP:             domain.BlankOdor,
		MatchOdorFP:              "Mint",
	}
}

func TestSummaryTable(t *testing.T) {
	headers, records := SummaryTable([]domain.DailySummary{headHoldSummary(), matchSummary()})

	assert.Equal(t, []string{"Date", "RatID", "Stage", "trial_count"}, headers[:4])
	assert.Equal(t, []string{"S_Odor_FP", "M_Odor_FP"}, headers[len(headers)-2:])
	assert.Contains(t, headers, domain.ColHeadHoldTime+domain.SuffixAverage)
	assert.Contains(t, headers, domain.ColMatchLatency+domain.SuffixAverage)
	assert.Contains(t, headers, "TP_total")
	assert.Contains(t, headers, "Max_HH")
	require.Len(t, records, 2)

	col := func(name string) int {
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	hh, match := records[0], records[1]
	for _, r := range records {
		assert.Len(t, r, len(headers))
	}

	assert.Equal(t, "2023-03-15", hh[col("Date")])
	assert.Equal(t, "0", hh[col("Stage")])
	assert.Equal(t, "9.25", hh[col(domain.ColHeadHoldTime+domain.SuffixAverage)])
	assert.Equal(t, "", hh[col(domain.ColMatchLatency+domain.SuffixAverage)])
	assert.Equal(t, "12.5", hh[col("Max_HH")])
	assert.Equal(t, "", hh[col("S_Odor_FP")])

	assert.Equal(t, "3", match[col("RatID")])
	assert.Equal(t, "", match[col(domain.ColHeadHoldTime+domain.SuffixAverage)])
	assert.Equal(t, "1.3333333333333333", match[col(domain.ColMatchLatency+domain.SuffixAverage)])
	assert.Equal(t, "4", match[col("TP_total")])
	assert.Equal(t, "3", match[col("M_FP_total")])
	assert.Equal(t, "", match[col("Max_HH")])
	assert.Equal(t, domain.BlankOdor, match[col("S_Odor_FP")])
	assert.Equal(t, "Mint", match[col("M_Odor_FP")])
}

func TestSummaryTable_Empty(t *testing.T) {
	headers, records := SummaryTable(nil)
	assert.Equal(t, append(append([]string{}, leadColumns...), tailColumns...), headers)
	assert.Empty(t, records)
}

func TestWriteSummaries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaries(&buf, []domain.DailySummary{matchSummary()}))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), utf8BOM))
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Date", records[0][0])
}

func TestCSVWriter_ExportSummaries(t *testing.T) {
	writer, dir := newTestWriter(t)

	require.NoError(t, writer.ExportSummaries("summaries.csv", []domain.DailySummary{headHoldSummary(), matchSummary()}))

	_, records := readCSV(t, filepath.Join(dir, "summaries.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, "4", records[1][1])
	assert.Equal(t, "3", records[2][1])
}
