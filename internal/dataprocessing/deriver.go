package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	apperrors "github.com/samobrien878/Williams-Data-Pipline/internal/errors"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// correctZoneThreshold is the minimum time in a correct port, in seconds,
// for a phase to count as a true positive.
const correctZoneThreshold = 4

// Deriver turns loaded rows into TrialRecords with stage-specific outcomes.
type Deriver struct {
	cutoff time.Time
	logger *slog.Logger
}

// NewDeriver creates a deriver that drops trials dated before cutoff.
func NewDeriver(cutoff time.Time, logger *slog.Logger) *Deriver {
	return &Deriver{
		cutoff: cutoff,
		logger: logger.With(slog.String("component", "deriver")),
	}
}

// Derive attaches file metadata to every row and computes the outcome for
// meta.Stage. A nil slice with a nil error means every row predates the cutoff.
func (d *Deriver) Derive(ctx context.Context, meta domain.FileMetadata, table *Table) ([]domain.TrialRecord, error) {
	for _, col := range domain.RequiredColumns {
		if !table.HasColumn(col) {
			return nil, apperrors.NewParsingError(fmt.Sprintf("missing column %q", col), apperrors.ErrSchemaIncomplete).
				WithContext("file", meta.FileName)
		}
	}

	date := meta.Date()
	if date.Before(d.cutoff) {
		d.logger.InfoContext(ctx, "trials predate cutoff",
			slog.String("date", date.Format(time.DateOnly)),
			slog.String("cutoff", d.cutoff.Format(time.DateOnly)),
			slog.Int("rows", len(table.Rows)))
		return nil, nil
	}
	if len(table.Rows) == 0 {
		return nil, nil
	}

	records := make([]domain.TrialRecord, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = domain.TrialRecord{
			TrialHeader: domain.TrialHeader{
				RatID:      meta.RatID,
				Session:    meta.Session,
				Stage:      meta.Stage,
				Date:       date,
				Trial:      i,
				SourceFile: meta.FileName,
			},
		}
		records[i].Measured, records[i].Labels = splitCells(row)
	}

	switch meta.Stage {
	case domain.StageHeadHold:
		deriveHeadHold(records)
	case domain.StageSample:
		deriveSample(records)
	case domain.StageMatch, domain.StageMatchDelay:
		deriveSampleMatch(records)
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("stage %d", meta.Stage), nil)
	}

	return records, nil
}

// splitCells separates numeric cells from text labels. Blank cells and
// non-finite numbers are treated as not recorded.
func splitCells(row Row) (map[string]float64, map[string]string) {
	measured := make(map[string]float64, len(row))
	var labels map[string]string
	for col, raw := range row {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				measured[col] = v
			}
			continue
		}
		if labels == nil {
			labels = make(map[string]string)
		}
		labels[col] = raw
	}
	return measured, labels
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sessionStats is what stage 0 and 1 trials need to know about their session.
type sessionStats struct {
	maxHeadHold float64
	timeouts    int
}

func statsBySession(records []domain.TrialRecord) map[int]sessionStats {
	bySession := lo.GroupBy(records, func(r domain.TrialRecord) int { return r.Session })
	stats := make(map[int]sessionStats, len(bySession))
	for session, rows := range bySession {
		var s sessionStats
		for i, r := range rows {
			hh := r.Value(domain.ColHeadHoldTime)
			if i == 0 || hh > s.maxHeadHold {
				s.maxHeadHold = hh
			}
			if r.Value(domain.ColSampleLatency) == 0 {
				s.timeouts++
			}
		}
		stats[session] = s
	}
	return stats
}

func deriveHeadHold(records []domain.TrialRecord) {
	stats := statsBySession(records)
	for i := range records {
		r := &records[i]
		sampleDone := r.Value(domain.ColSampleLatency) != 0
		r.HeadHold = &domain.HeadHoldOutcome{
			MaxHeadHold:     stats[r.Session].maxHeadHold,
			TrialCompleted:  boolInt(sampleDone),
			Timeout:         boolInt(!sampleDone),
			SessionTimeouts: stats[r.Session].timeouts,
		}
	}
}

func deriveSample(records []domain.TrialRecord) {
	stats := statsBySession(records)
	for i := range records {
		r := &records[i]
		sampleDone := r.Value(domain.ColSampleLatency) != 0
		matchDone := r.Value(domain.ColMatchLatency) != 0
		sampleFP := r.Value(domain.ColFalsePosSample)

		out := &domain.SampleOutcome{
			TrialCompleted:  boolInt(sampleDone && matchDone),
			Timeout:         boolInt(!sampleDone),
			SessionTimeouts: stats[r.Session].timeouts,
			TruePositive:    boolInt(sampleFP == 0 && sampleDone),
		}
		if sampleDone {
			out.SampleFalsePositive = sampleFP
		}
		out.FalsePositive = out.SampleFalsePositive
		if out.FalsePositive > 0 {
			out.OdorFP = domain.BlankOdor
		}
		r.SampleOnly = out
	}
}

func deriveSampleMatch(records []domain.TrialRecord) {
	for i := range records {
		r := &records[i]
		sampleDone := r.Value(domain.ColSampleLatency) != 0
		matchDone := r.Value(domain.ColMatchLatency) != 0

		out := &domain.SampleMatchOutcome{Timeout: 1}
		if sampleDone {
			out.SampleFalsePositive = r.Value(domain.ColFalsePosSample)
			out.MatchFalsePositive = r.Value(domain.ColFalsePosMatch1) + r.Value(domain.ColFalsePosMatch2)
			out.FalsePositive = out.SampleFalsePositive + out.MatchFalsePositive
			out.TruePositive = boolInt(r.Value(domain.ColTimeCorrectSample) >= correctZoneThreshold)
			if out.SampleFalsePositive >= 1 {
				out.SampleOdorFP = domain.BlankOdor
			}
			out.MatchOdorFP = matchOdor(*r)
			if matchDone {
				out.TruePositive += boolInt(r.Value(domain.ColTimeCorrectMatch) >= correctZoneThreshold)
				out.Timeout--
			}
		}
		out.TrialCompleted = boolInt(sampleDone && matchDone)
		r.SampleMatch = out
	}
}

// matchOdor returns the most frequent odor among match ports with a false
// positive; ties go to the lower-numbered port.
func matchOdor(r domain.TrialRecord) string {
	ports := []struct{ counter, odor string }{
		{domain.ColFalsePosMatch1, domain.ColIncorrectMatch1Odor},
		{domain.ColFalsePosMatch2, domain.ColIncorrectMatch2Odor},
	}
	var odors []string
	for _, p := range ports {
		if r.Value(p.counter) > 0 {
			name := r.Labels[p.odor]
			if name == "" && r.Has(p.odor) {
				// numeric odor codes land in Measured
				name = strconv.FormatFloat(r.Measured[p.odor], 'f', -1, 64)
			}
			odors = append(odors, name)
		}
	}
	return mostCommon(odors)
}

// mostCommon returns the most frequent non-empty value; on a tie the value
// that reached the top count first wins.
func mostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
