package partogram

import (
	"math"
	"sort"
	"time"
)

// Dilation bounds, in centimetres.
const (
	MinDilationCm = 0.0
	MaxDilationCm = 10.0
)

// MaxHoursFromStart is the longest plausible active phase. It also bounds the
// chart time axis.
const MaxHoursFromStart = 72.0

// Observation is one bedside assessment. HoursFromStart is derived from
// Timestamp and the labor start time; use PrepareObservations to refresh it.
type Observation struct {
	Timestamp      time.Time `json:"timestamp"`
	HoursFromStart float64   `json:"hoursFromStart"`
	DilationCm     float64   `json:"dilationCm"`
	Station        *int      `json:"station,omitempty"`
	FetalHeartRate *int      `json:"fetalHeartRate,omitempty"`
	BloodPressure  string    `json:"bloodPressure,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

// Validate checks the dilation range and the elapsed time.
func (o Observation) Validate(index int) error {
	if math.IsNaN(o.DilationCm) || math.IsInf(o.DilationCm, 0) {
		return &ValidationError{Index: index, Field: "dilationCm", Value: o.DilationCm, Reason: "must be a finite number"}
	}
	if o.DilationCm < MinDilationCm || o.DilationCm > MaxDilationCm {
		return &ValidationError{Index: index, Field: "dilationCm", Value: o.DilationCm, Reason: "must be between 0 and 10 cm"}
	}
	if math.IsNaN(o.HoursFromStart) || math.IsInf(o.HoursFromStart, 0) {
		return &ValidationError{Index: index, Field: "hoursFromStart", Value: o.HoursFromStart, Reason: "must be a finite number"}
	}
	if o.HoursFromStart < 0 {
		return &ValidationError{Index: index, Field: "hoursFromStart", Value: o.HoursFromStart, Reason: "must not precede the start of labor"}
	}
	if o.HoursFromStart > MaxHoursFromStart {
		return &ValidationError{Index: index, Field: "hoursFromStart", Value: o.HoursFromStart, Reason: "must be at most 72 hours after the start of labor"}
	}
	return nil
}

// PrepareObservations returns a copy of obs with HoursFromStart recomputed
// from start, sorted ascending by elapsed time. Ties keep their input order.
func PrepareObservations(start time.Time, obs []Observation) []Observation {
	out := make([]Observation, len(obs))
	for i, o := range obs {
		o.HoursFromStart = o.Timestamp.Sub(start).Hours()
		out[i] = o
	}
	SortObservations(out)
	return out
}

// SortObservations orders obs in place by HoursFromStart, stably.
func SortObservations(obs []Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].HoursFromStart < obs[j].HoursFromStart
	})
}
