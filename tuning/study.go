package tuning

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/coupling/core/params"
)

// TrialState is the outcome of one trial.
type TrialState string

const (
	TrialComplete TrialState = "COMPLETE"
	TrialFail     TrialState = "FAIL"
)

// DirectionMinimize is the only supported direction; every score in
// this module is a loss.
const DirectionMinimize = "minimize"

// TrialRecord is one evaluated candidate. Params holds the searched values
// only; fixed parameters are not recorded.
type TrialRecord struct {
	Number     int        `json:"number"`
	ID         string     `json:"id"`
	Params     params.Set `json:"params"`
	Value      float64    `json:"value"`
	State      TrialState `json:"state"`
	Error      string     `json:"error,omitempty"`
	Start      time.Time  `json:"start"`
	DurationMs int64      `json:"duration_ms"`
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (t TrialRecord) MarshalZerologObject(e *zerolog.Event) {
	e.Int("number", t.Number).
		Str("state", string(t.State)).
		Float64("value", t.Value).
		Int64("duration_ms", t.DurationMs)
	if t.Error != "" {
		e.Str("error", t.Error)
	}
}

// Study is the persisted search state of one target.
type Study struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Direction  string        `json:"direction"`
	Trials     []TrialRecord `json:"trials"`
	BestParams params.Set    `json:"best_params,omitempty"`
	BestValue  float64       `json:"best_value"`
	HasBest    bool          `json:"has_best"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewStudy creates an empty study.
func NewStudy(name string) *Study {
	now := time.Now().UTC()
	return &Study{
		ID:        uuid.NewString(),
		Name:      name,
		Direction: DirectionMinimize,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StudyName returns the study name used for a target.
func StudyName(target string) string {
	return "lgb_" + target
}

// Clone returns a deep copy.
func (s *Study) Clone() *Study {
	out := *s
	out.Trials = make([]TrialRecord, len(s.Trials))
	for i, t := range s.Trials {
		t.Params = t.Params.Clone()
		out.Trials[i] = t
	}
	out.BestParams = s.BestParams.Clone()
	return &out
}

// NextNumber returns the number of the next trial.
func (s *Study) NextNumber() int {
	return len(s.Trials)
}

// Record appends t and reports whether it became the new best. The best
// only changes on a strictly lower value, so it never regresses.
func (s *Study) Record(t TrialRecord) bool {
	s.Trials = append(s.Trials, t)
	s.UpdatedAt = time.Now().UTC()
	if t.State != TrialComplete {
		return false
	}
	if s.HasBest && !(t.Value < s.BestValue) {
		return false
	}
	s.BestValue = t.Value
	s.BestParams = t.Params.Clone()
	s.HasBest = true
	return true
}

// Completed returns the successful trials.
func (s *Study) Completed() []TrialRecord {
	var out []TrialRecord
	for _, t := range s.Trials {
		if t.State == TrialComplete {
			out = append(out, t)
		}
	}
	return out
}
