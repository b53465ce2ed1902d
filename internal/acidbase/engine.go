package acidbase

import (
	"fmt"
	"math"
)

// Options tunes the conventions where sources disagree.
type Options struct {
	// IncludePotassium adds K to the anion gap when K is present.
	IncludePotassium bool
	// VenousPHOffset is added to venous pH to estimate arterial pH.
	VenousPHOffset float64
	// VenousPCO2Offset is subtracted from venous PCO2 to estimate PaCO2.
	VenousPCO2Offset float64
}

// DefaultOptions returns the classic anion gap and the usual venous heuristics.
// The venous offsets are rough bedside approximations, not a conversion.
func DefaultOptions() Options {
	return Options{
		IncludePotassium: false,
		VenousPHOffset:   0.03,
		VenousPCO2Offset: 5,
	}
}

// Validate checks that the offsets are usable.
func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"venous_ph_offset":   o.VenousPHOffset,
		"venous_pco2_offset": o.VenousPCO2Offset,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("acidbase: %s must be finite", name)
		}
	}
	return nil
}

// Interpretation is the full reading of one sample. It is built fresh per call.
type Interpretation struct {
	SampleType             SampleType             `json:"sampleType"`
	PH                     *float64               `json:"pH,omitempty"`
	PaCO2                  *float64               `json:"paCO2,omitempty"`
	HCO3                   *float64               `json:"hco3,omitempty"`
	EstimatedFromVenous    bool                   `json:"estimatedFromVenous"`
	PrimaryDisorder        *Disorder              `json:"primaryDisorder,omitempty"`
	AnionGap               *float64               `json:"anionGap,omitempty"`
	CorrectedAnionGap      *float64               `json:"correctedAnionGap,omitempty"`
	DeltaRatio             *float64               `json:"deltaRatio,omitempty"`
	DeltaRatioAssessment   DeltaRatioAssessment   `json:"deltaRatioAssessment,omitempty"`
	Compensation           map[string]float64     `json:"compensation"`
	CompensationAssessment CompensationAssessment `json:"compensationAssessment,omitempty"`
	Oxygenation            map[string]float64     `json:"oxygenation"`
	Missing                []string               `json:"missing,omitempty"`
	Narrative              string                 `json:"narrative"`
}

// Engine interprets samples under a fixed set of Options. It is stateless and
// safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an engine
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options { return e.opts }

// Interpret validates s and derives every value its inputs allow.
func (e *Engine) Interpret(s Sample) (*Interpretation, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("interpret blood gas: %w", err)
	}

	in := &Interpretation{
		SampleType: s.Type(),
		PH:         s.PH,
		PaCO2:      s.PaCO2,
		HCO3:       s.HCO3,
	}
	e.estimateArterial(s, in)

	in.AnionGap = AnionGap(s.Na, s.Cl, s.HCO3, s.K, e.opts.IncludePotassium)
	in.CorrectedAnionGap = CorrectedAnionGap(in.AnionGap, s.Albumin)

	in.PrimaryDisorder = ClassifyPrimaryDisorder(in.PH, in.PaCO2, in.HCO3)
	if in.PrimaryDisorder != nil {
		in.Compensation = ExpectedCompensation(*in.PrimaryDisorder, in.PaCO2, in.HCO3)
		in.CompensationAssessment = AssessCompensation(*in.PrimaryDisorder, in.PaCO2, in.HCO3, in.Compensation)
	} else {
		in.Compensation = map[string]float64{}
	}

	in.DeltaRatio = DeltaRatio(in.CorrectedAnionGap, in.HCO3)
	in.DeltaRatioAssessment = AssessDeltaRatio(in.DeltaRatio)

	in.Oxygenation = Oxygenation(s.IsArterial, s.PaO2, s.FiO2, in.PaCO2, s.Age)

	in.Missing = missingInputs(s, in)
	in.Narrative = BuildNarrative(in)
	return in, nil
}

// estimateArterial substitutes venous-derived pH and PaCO2 where the direct
// values are absent. An estimate outside the physiological range is dropped
// and the venous input is reported as missing.
func (e *Engine) estimateArterial(s Sample, in *Interpretation) {
	if s.IsArterial {
		return
	}
	if in.PH == nil && s.PHVenous != nil {
		if ph := round(*s.PHVenous+e.opts.VenousPHOffset, 2); ph > MinPH && ph < MaxPH {
			in.PH = ptr(ph)
			in.EstimatedFromVenous = true
		}
	}
	if in.PaCO2 == nil && s.PvCO2 != nil {
		if pa := round(*s.PvCO2-e.opts.VenousPCO2Offset, 0); pa > 0 {
			in.PaCO2 = ptr(pa)
			in.EstimatedFromVenous = true
		}
	}
}

// rejectedEstimate reports whether a venous value was present but gave no estimate.
func rejectedEstimate(s Sample, venous, estimate *float64) bool {
	return !s.IsArterial && venous != nil && estimate == nil
}

// Interpret runs a default-options engine.
func Interpret(s Sample) (*Interpretation, error) {
	e := &Engine{opts: DefaultOptions()}
	return e.Interpret(s)
}

// missingInputs lists, in a fixed order, the absent inputs that blocked a derived value.
func missingInputs(s Sample, in *Interpretation) []string {
	var missing []string
	add := func(name string, absent bool) {
		if !absent {
			return
		}
		for _, m := range missing {
			if m == name {
				return
			}
		}
		missing = append(missing, name)
	}

	add("pH", in.PH == nil)
	add("pHVenous", rejectedEstimate(s, s.PHVenous, in.PH))
	add("paCO2", in.PaCO2 == nil)
	add("pvCO2", rejectedEstimate(s, s.PvCO2, in.PaCO2))
	add("hco3", in.HCO3 == nil)
	add("na", s.Na == nil)
	add("cl", s.Cl == nil)
	if in.AnionGap != nil {
		add("albumin", s.Albumin == nil)
	}
	if s.IsArterial {
		add("paO2", s.PaO2 == nil)
		add("fiO2", s.FiO2 == nil)
	}
	return missing
}
