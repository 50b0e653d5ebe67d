package domain

import "strings"

// Rig column names as they appear in the header row of a metrics file.
const (
	ColHeadHoldTime         = "HH Time"
	ColSampleLatency        = "Latency to corr sample"
	ColMatchLatency         = "Latency to corr match"
	ColPokesCorrectSample   = "Num pokes corr sample"
	ColTimeCorrectSample    = "Time in corr sample"
	ColPokesIncorrectSample = "Num pokes inc sample"
	ColTimeIncorrectSample  = "Time in inc sample"
	ColPokesCorrectMatch    = "Num pokes corr match"
	ColTimeCorrectMatch     = "Time in corr match"
	ColFalsePosSample       = "False pos inc sample"
	ColFalsePosMatch1       = "False pos inc match 1"
	ColFalsePosMatch2       = "False pos inc match 2"
	ColIncorrectMatch1Odor  = "Inc match 1 odor name"
	ColIncorrectMatch2Odor  = "Inc match 2 odor name"
)

// AveragedColumns are the continuous measurements reported as "<col>_avg"
// in a daily summary, in output order.
var AveragedColumns = []string{
	ColHeadHoldTime,
	ColSampleLatency,
	ColMatchLatency,
	ColPokesCorrectSample,
	ColTimeCorrectSample,
	ColPokesIncorrectSample,
	ColTimeIncorrectSample,
	ColPokesCorrectMatch,
	ColTimeCorrectMatch,
}

// RequiredColumns must be present in every metrics file header.
var RequiredColumns = []string{ColSampleLatency}

// Summary field suffixes and names shared with the dashboard.
const (
	SuffixAverage = "_avg"
	SuffixTotal   = "_total"

	FieldTrialsCompleted = "trials_completed"
	FieldMaxHeadHold     = "Max_HH"
	FieldTrialCount      = "trial_count"
	FieldSampleOdorFP    = "S_Odor_FP"
	FieldMatchOdorFP     = "M_Odor_FP"
)

// BlankOdor labels a sample-phase false positive; the sample port carries no odor.
const BlankOdor = "Blank"

var knownColumns = map[string]string{}

func init() {
	for _, col := range []string{
		ColHeadHoldTime, ColSampleLatency, ColMatchLatency,
		ColPokesCorrectSample, ColTimeCorrectSample, ColPokesIncorrectSample,
		ColTimeIncorrectSample, ColPokesCorrectMatch, ColTimeCorrectMatch,
		ColFalsePosSample, ColFalsePosMatch1, ColFalsePosMatch2,
		ColIncorrectMatch1Odor, ColIncorrectMatch2Odor,
	} {
		knownColumns[strings.ToLower(col)] = col
	}
}

// CanonicalColumn maps a header cell onto the rig column it names, ignoring
// case and surrounding whitespace ("HH time" and "HH Time" are the same
// column). Unknown headers are returned trimmed.
func CanonicalColumn(header string) string {
	trimmed := strings.TrimSpace(header)
	if col, ok := knownColumns[strings.ToLower(trimmed)]; ok {
		return col
	}
	return trimmed
}
