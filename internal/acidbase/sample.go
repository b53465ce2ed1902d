// Package acidbase interprets blood-gas samples: anion gap, primary acid-base
// disorder, expected compensation, delta ratio and oxygenation indices.
//
// Every numeric input is optional. A derived value whose prerequisites are
// absent is left nil and never blocks the unrelated ones.
package acidbase

import (
	"fmt"
	"math"
)

// SampleType tells arterial from venous gases
type SampleType string

const (
	SampleArterial SampleType = "arterial"
	SampleVenous   SampleType = "venous"
)

// Sample is a blood-gas panel as entered by the clinician.
// FiO2 is a fraction in (0, 1]; percentages are rejected, not converted.
type Sample struct {
	IsArterial bool     `json:"isArterial"`
	PH         *float64 `json:"pH,omitempty"`
	PaCO2      *float64 `json:"paCO2,omitempty"`
	HCO3       *float64 `json:"hco3,omitempty"`
	Na         *float64 `json:"na,omitempty"`
	Cl         *float64 `json:"cl,omitempty"`
	K          *float64 `json:"k,omitempty"`
	Albumin    *float64 `json:"albumin,omitempty"`
	PaO2       *float64 `json:"paO2,omitempty"`
	FiO2       *float64 `json:"fiO2,omitempty"`
	Age        *float64 `json:"age,omitempty"`
	PHVenous   *float64 `json:"pHVenous,omitempty"`
	PvCO2      *float64 `json:"pvCO2,omitempty"`
}

// Float returns a pointer to v, for building samples in code.
func Float(v float64) *float64 { return &v }

// Type returns the sample type.
func (s Sample) Type() SampleType {
	if s.IsArterial {
		return SampleArterial
	}
	return SampleVenous
}

// Validate rejects malformed or out-of-range values. Absent values are never an error.
func (s Sample) Validate() error {
	fields := []struct {
		name string
		v    *float64
	}{
		{"pH", s.PH}, {"paCO2", s.PaCO2}, {"hco3", s.HCO3}, {"na", s.Na}, {"cl", s.Cl},
		{"k", s.K}, {"albumin", s.Albumin}, {"paO2", s.PaO2}, {"fiO2", s.FiO2},
		{"age", s.Age}, {"pHVenous", s.PHVenous}, {"pvCO2", s.PvCO2},
	}

	for _, f := range fields {
		if f.v == nil {
			continue
		}
		v := *f.v
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: f.name, Value: v, Reason: "must be a finite number"}
		}
		if v < 0 {
			return &ValidationError{Field: f.name, Value: v, Reason: "must not be negative"}
		}
	}

	for _, f := range []struct {
		name string
		v    *float64
	}{{"pH", s.PH}, {"pHVenous", s.PHVenous}} {
		if f.v != nil && (*f.v <= MinPH || *f.v >= MaxPH) {
			return &ValidationError{Field: f.name, Value: *f.v, Reason: fmt.Sprintf("must be between %.1f and %.1f", MinPH, MaxPH)}
		}
	}

	if s.FiO2 != nil && (*s.FiO2 <= 0 || *s.FiO2 > 1) {
		return &ValidationError{Field: "fiO2", Value: *s.FiO2, Reason: "must be a fraction in (0, 1], not a percentage"}
	}

	return nil
}
