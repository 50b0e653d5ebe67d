package dataprocessing

import (
	"sort"

	"github.com/samber/lo"

	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/domain"
)

// summedOrLabelColumns are measured columns that are never averaged: the
// false-positive counters feed the *_total fields and odor names are labels.
var summedOrLabelColumns = map[string]bool{
	domain.ColFalsePosSample:      true,
	domain.ColFalsePosMatch1:      true,
	domain.ColFalsePosMatch2:      true,
	domain.ColIncorrectMatch1Odor: true,
	domain.ColIncorrectMatch2Odor: true,
}

// Aggregate folds trial records into one DailySummary per (date, subject,
// stage), sorted by date, then subject, then stage. Records are visited in
// (source file, session, trial) order so sums and means do not depend on the
// order of the input.
func Aggregate(records []domain.TrialRecord) []domain.DailySummary {
	if len(records) == 0 {
		return nil
	}

	groups := lo.GroupBy(records, func(r domain.TrialRecord) domain.GroupKey {
		return domain.GroupKey{Date: r.Date, RatID: r.RatID, Stage: r.Stage}
	})

	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.RatID != b.RatID {
			return a.RatID < b.RatID
		}
		return a.Stage < b.Stage
	})

	return lo.Map(keys, func(key domain.GroupKey, _ int) domain.DailySummary {
		return summarize(key, canonicalOrder(groups[key]))
	})
}

func canonicalOrder(group []domain.TrialRecord) []domain.TrialRecord {
	sorted := make([]domain.TrialRecord, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		if a.Session != b.Session {
			return a.Session < b.Session
		}
		return a.Trial < b.Trial
	})
	return sorted
}

func summarize(key domain.GroupKey, group []domain.TrialRecord) domain.DailySummary {
	counts := lo.Map(group, func(r domain.TrialRecord, _ int) domain.OutcomeCounts { return r.Counts() })

	summary := domain.DailySummary{
		Date:       key.Date,
		RatID:      key.RatID,
		Stage:      key.Stage,
		TrialCount: len(group),
		Averages:   averages(key.Stage, group),

		TruePositiveTotal:        lo.SumBy(counts, func(c domain.OutcomeCounts) int { return c.TruePositive }),
		FalsePositiveTotal:       lo.SumBy(counts, func(c domain.OutcomeCounts) float64 { return c.FalsePositive }),
		SampleFalsePositiveTotal: lo.SumBy(counts, func(c domain.OutcomeCounts) float64 { return c.SampleFalsePositive }),
		MatchFalsePositiveTotal:  lo.SumBy(counts, func(c domain.OutcomeCounts) float64 { return c.MatchFalsePositive }),
		TimeoutTotal:             lo.SumBy(counts, func(c domain.OutcomeCounts) int { return c.Timeout }),
		TrialsCompleted:          lo.SumBy(counts, func(c domain.OutcomeCounts) int { return c.TrialCompleted }),

		SampleOdorFP: mostCommonSorted(lo.Map(counts, func(c domain.OutcomeCounts, _ int) string { return c.SampleOdorFP })),
		MatchOdorFP:  mostCommonSorted(lo.Map(counts, func(c domain.OutcomeCounts, _ int) string { return c.MatchOdorFP })),
	}

	if key.Stage == domain.StageHeadHold {
		for _, c := range counts {
			if c.MaxHeadHold == nil {
				continue
			}
			if summary.MaxHeadHold == nil || *c.MaxHeadHold > *summary.MaxHeadHold {
				v := *c.MaxHeadHold
				summary.MaxHeadHold = &v
			}
		}
	}

	return summary
}

// averages returns the mean of every averaged column over the trials where
// it was recorded. Head-hold time only counts at stage 0.
func averages(stage domain.Stage, group []domain.TrialRecord) map[string]float64 {
	sums := make(map[string]float64)
	ns := make(map[string]int)
	for _, r := range group {
		for col, v := range r.Measured {
			if summedOrLabelColumns[col] {
				continue
			}
			if col == domain.ColHeadHoldTime && stage != domain.StageHeadHold {
				continue
			}
			ns[col]++
			sums[col] += v
		}
	}
	if len(ns) == 0 {
		return nil
	}

	avg := make(map[string]float64, len(ns))
	for col, n := range ns {
		avg[col] = sums[col] / float64(n)
	}
	return avg
}

// mostCommonSorted is mostCommon with ties broken alphabetically, so the
// result does not depend on record order.
func mostCommonSorted(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}
