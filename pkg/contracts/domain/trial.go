package domain

import (
	"fmt"
	"time"
)

// Stage is the experiment phase a session was recorded in.
type Stage int

const (
	// StageHeadHold trains the subject to hold its head in the initiation port.
	StageHeadHold Stage = 0
	// StageSample has a sample phase only.
	StageSample Stage = 1
	// StageMatch adds a match phase with two distractor ports.
	StageMatch Stage = 2
	// StageMatchDelay is the match stage with a delay between phases.
	StageMatchDelay Stage = 3
)

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	return s >= StageHeadHold && s <= StageMatchDelay
}

// HasMatchPhase reports whether trials at this stage include a match phase.
func (s Stage) HasMatchPhase() bool {
	return s == StageMatch || s == StageMatchDelay
}

// FileMetadata is everything encoded in a metrics file name.
type FileMetadata struct {
	FileName string `json:"file_name" validate:"required"`
	RatID    int    `json:"rat_id" validate:"min=0"`
	Session  int    `json:"session" validate:"min=0"`
	Stage    Stage  `json:"stage" validate:"min=0,max=3"`
	Month    int    `json:"month" validate:"min=1,max=12"`
	Day      int    `json:"day" validate:"min=1,max=31"`
	Year     int    `json:"year" validate:"min=2000,max=2100"`
}

// Date returns the recording date at midnight UTC.
func (m FileMetadata) Date() time.Time {
	return time.Date(m.Year, time.Month(m.Month), m.Day, 0, 0, 0, 0, time.UTC)
}

// TrialHeader identifies one trial row.
type TrialHeader struct {
	RatID      int       `json:"RatID" bson:"RatID"`
	Session    int       `json:"Session" bson:"Session"`
	Stage      Stage     `json:"Stage" bson:"Stage"`
	Date       time.Time `json:"Date" bson:"Date"`
	Trial      int       `json:"Trial" bson:"Trial"`
	SourceFile string    `json:"source_file" bson:"source_file"`
}

// Key is the natural identity of a trial: subject, day, session and row.
func (h TrialHeader) Key() string {
	return fmt.Sprintf("rat%d_%s_session%d_trial%d", h.RatID, h.Date.Format("2006-01-02"), h.Session, h.Trial)
}

// HeadHoldOutcome holds the derived fields of a stage 0 trial.
type HeadHoldOutcome struct {
	MaxHeadHold     float64 `json:"Max_HH" bson:"Max_HH"`
	TrialCompleted  int     `json:"trial_completed" bson:"trial_completed"`
	Timeout         int     `json:"Timeout" bson:"Timeout"`
	SessionTimeouts int     `json:"Timeouts" bson:"Timeouts"`
}

// SampleOutcome holds the derived fields of a stage 1 trial.
type SampleOutcome struct {
	SampleFalsePositive float64 `json:"S_FP" bson:"S_FP"`
	FalsePositive       float64 `json:"FP" bson:"FP"`
	TruePositive        int     `json:"TP" bson:"TP"`
	TrialCompleted      int     `json:"trial_completed" bson:"trial_completed"`
	Timeout             int     `json:"Timeout" bson:"Timeout"`
	SessionTimeouts     int     `json:"Timeouts" bson:"Timeouts"`
	OdorFP              string  `json:"Odor_FP,omitempty" bson:"Odor_FP,omitempty"`
}

// SampleMatchOutcome holds the derived fields of a stage 2 or 3 trial.
type SampleMatchOutcome struct {
	TruePositive        int     `json:"TP" bson:"TP"`
	FalsePositive       float64 `json:"FP" bson:"FP"`
	SampleFalsePositive float64 `json:"S_FP" bson:"S_FP"`
	MatchFalsePositive  float64 `json:"M_FP" bson:"M_FP"`
	Timeout             int     `json:"Timeout" bson:"Timeout"`
	TrialCompleted      int     `json:"trial_completed" bson:"trial_completed"`
	SampleOdorFP        string  `json:"S_Odor_FP,omitempty" bson:"S_Odor_FP,omitempty"`
	MatchOdorFP         string  `json:"M_Odor_FP,omitempty" bson:"M_Odor_FP,omitempty"`
}

// TrialRecord is one ingested row: its identity, the rig measurements and
// exactly one stage-specific outcome.
type TrialRecord struct {
	TrialHeader `bson:",inline"`

	Measured map[string]float64 `json:"measured" bson:"measured"`
	Labels   map[string]string  `json:"labels,omitempty" bson:"labels,omitempty"`

	HeadHold    *HeadHoldOutcome    `json:"head_hold,omitempty" bson:"head_hold,omitempty"`
	SampleOnly  *SampleOutcome      `json:"sample,omitempty" bson:"sample,omitempty"`
	SampleMatch *SampleMatchOutcome `json:"sample_match,omitempty" bson:"sample_match,omitempty"`
}

// Value returns the measured value of col, or 0 when the cell was empty or
// the column is absent.
func (r TrialRecord) Value(col string) float64 {
	return r.Measured[col]
}

// Has reports whether col was recorded for this trial.
func (r TrialRecord) Has(col string) bool {
	_, ok := r.Measured[col]
	return ok
}

// OutcomeCounts is the stage-independent view of a trial outcome used for
// aggregation.
type OutcomeCounts struct {
	TruePositive        int
	FalsePositive       float64
	SampleFalsePositive float64
	MatchFalsePositive  float64
	TrialCompleted      int
	Timeout             int
	MaxHeadHold         *float64
	SampleOdorFP        string
	MatchOdorFP         string
}

// Counts flattens whichever stage variant is set.
func (r TrialRecord) Counts() OutcomeCounts {
	switch {
	case r.HeadHold != nil:
		maxHH := r.HeadHold.MaxHeadHold
		return OutcomeCounts{
			TrialCompleted: r.HeadHold.TrialCompleted,
			Timeout:        r.HeadHold.Timeout,
			MaxHeadHold:    &maxHH,
		}
	case r.SampleOnly != nil:
		return OutcomeCounts{
			TruePositive:        r.SampleOnly.TruePositive,
			FalsePositive:       r.SampleOnly.FalsePositive,
			SampleFalsePositive: r.SampleOnly.SampleFalsePositive,
			TrialCompleted:      r.SampleOnly.TrialCompleted,
			Timeout:             r.SampleOnly.Timeout,
			SampleOdorFP:        r.SampleOnly.OdorFP,
		}
	case r.SampleMatch != nil:
		return OutcomeCounts{
			TruePositive:        r.SampleMatch.TruePositive,
			FalsePositive:       r.SampleMatch.FalsePositive,
			SampleFalsePositive: r.SampleMatch.SampleFalsePositive,
			MatchFalsePositive:  r.SampleMatch.MatchFalsePositive,
			TrialCompleted:      r.SampleMatch.TrialCompleted,
			Timeout:             r.SampleMatch.Timeout,
			SampleOdorFP:        r.SampleMatch.SampleOdorFP,
			MatchOdorFP:         r.SampleMatch.MatchOdorFP,
		}
	}
	return OutcomeCounts{}
}
