package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DailySummary aggregates one subject's trials for one day at one stage.
// It is stored and served in flattened form: averages become "<col>_avg",
// sums become "<field>_total" and completed trials "trials_completed".
type DailySummary struct {
	Date       time.Time `validate:"required"`
	RatID      int       `validate:"min=1"`
	Stage      Stage     `validate:"min=0,max=3"`
	TrialCount int       `validate:"min=1"`

	// Averages is keyed by rig column name, without the suffix.
	Averages map[string]float64

	TruePositiveTotal        int
	FalsePositiveTotal       float64
	SampleFalsePositiveTotal float64
	MatchFalsePositiveTotal  float64
	TimeoutTotal             int
	TrialsCompleted          int

	// MaxHeadHold is only set for stage 0.
	MaxHeadHold *float64

	SampleOdorFP string
	MatchOdorFP  string
}

// GroupKey identifies the (date, subject, stage) group of a summary.
type GroupKey struct {
	Date  time.Time
	RatID int
	Stage Stage
}

// Key returns the grouping key of s.
func (s DailySummary) Key() GroupKey {
	return GroupKey{Date: s.Date, RatID: s.RatID, Stage: s.Stage}
}

// Flatten renders s with the field names the dashboard reads.
func (s DailySummary) Flatten() map[string]any {
	out := map[string]any{
		"Date":                  s.Date,
		"RatID":                 s.RatID,
		"Stage":                 int(s.Stage),
		FieldTrialCount:         s.TrialCount,
		"TP" + SuffixTotal:      s.TruePositiveTotal,
		"FP" + SuffixTotal:      s.FalsePositiveTotal,
		"S_FP" + SuffixTotal:    s.SampleFalsePositiveTotal,
		"M_FP" + SuffixTotal:    s.MatchFalsePositiveTotal,
		"Timeout" + SuffixTotal: s.TimeoutTotal,
		FieldTrialsCompleted:    s.TrialsCompleted,
	}
	for col, v := range s.Averages {
		out[col+SuffixAverage] = v
	}
	if s.MaxHeadHold != nil {
		out[FieldMaxHeadHold] = *s.MaxHeadHold
	}
	if s.SampleOdorFP != "" {
		out[FieldSampleOdorFP] = s.SampleOdorFP
	}
	if s.MatchOdorFP != "" {
		out[FieldMatchOdorFP] = s.MatchOdorFP
	}
	return out
}

// AverageColumns returns the averaged columns of s in a stable order:
// known rig columns first, then anything else alphabetically.
func (s DailySummary) AverageColumns() []string {
	cols := make([]string, 0, len(s.Averages))
	seen := make(map[string]bool, len(s.Averages))
	for _, col := range AveragedColumns {
		if _, ok := s.Averages[col]; ok {
			cols = append(cols, col)
			seen[col] = true
		}
	}
	var extra []string
	for col := range s.Averages {
		if !seen[col] {
			extra = append(extra, col)
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// SummaryFromFlat is the inverse of Flatten. Numeric values may arrive as any
// integer or float type, dates as time.Time, RFC 3339 strings or any value
// with a Time() method (driver date types).
func SummaryFromFlat(m map[string]any) (DailySummary, error) {
	var s DailySummary
	var err error

	if s.Date, err = toTime(m["Date"]); err != nil {
		return s, fmt.Errorf("Date: %w", err)
	}
	ratID, err := toFloat(m["RatID"])
	if err != nil {
		return s, fmt.Errorf("RatID: %w", err)
	}
	s.RatID = int(ratID)
	stage, err := toFloat(m["Stage"])
	if err != nil {
		return s, fmt.Errorf("Stage: %w", err)
	}
	s.Stage = Stage(stage)

	ints := map[string]*int{
		FieldTrialCount:         &s.TrialCount,
		"TP" + SuffixTotal:      &s.TruePositiveTotal,
		"Timeout" + SuffixTotal: &s.TimeoutTotal,
		FieldTrialsCompleted:    &s.TrialsCompleted,
	}
	floats := map[string]*float64{
		"FP" + SuffixTotal:   &s.FalsePositiveTotal,
		"S_FP" + SuffixTotal: &s.SampleFalsePositiveTotal,
		"M_FP" + SuffixTotal: &s.MatchFalsePositiveTotal,
	}

	for key, raw := range m {
		switch {
		case ints[key] != nil:
			v, err := toFloat(raw)
			if err != nil {
				return s, fmt.Errorf("%s: %w", key, err)
			}
			*ints[key] = int(v)
		case floats[key] != nil:
			v, err := toFloat(raw)
			if err != nil {
				return s, fmt.Errorf("%s: %w", key, err)
			}
			*floats[key] = v
		case key == FieldMaxHeadHold:
			if raw == nil {
				continue
			}
			v, err := toFloat(raw)
			if err != nil {
				return s, fmt.Errorf("%s: %w", key, err)
			}
			s.MaxHeadHold = &v
		case key == FieldSampleOdorFP:
			s.SampleOdorFP, _ = raw.(string)
		case key == FieldMatchOdorFP:
			s.MatchOdorFP, _ = raw.(string)
		case strings.HasSuffix(key, SuffixAverage):
			if raw == nil {
				continue
			}
			v, err := toFloat(raw)
			if err != nil {
				return s, fmt.Errorf("%s: %w", key, err)
			}
			if math.IsNaN(v) {
				continue
			}
			if s.Averages == nil {
				s.Averages = make(map[string]float64)
			}
			s.Averages[strings.TrimSuffix(key, SuffixAverage)] = v
		}
	}
	return s, nil
}

// MarshalJSON writes the flattened form.
func (s DailySummary) MarshalJSON() ([]byte, error) {
	flat := s.Flatten()
	flat["Date"] = s.Date.UTC().Format(time.RFC3339)
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flattened form.
func (s *DailySummary) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := SummaryFromFlat(m)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SummaryDocument wraps all daily summaries produced from one ingested file.
type SummaryDocument struct {
	SourceFile   string         `json:"source_file"`
	IngestedAt   time.Time      `json:"ingested_at"`
	DailySummary []DailySummary `json:"daily_summary"`
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	case nil:
		return 0, fmt.Errorf("missing value")
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return time.Parse(time.RFC3339, t)
	case interface{ Time() time.Time }:
		return t.Time().UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("missing value")
	}
	return time.Time{}, fmt.Errorf("unexpected type %T", v)
}
