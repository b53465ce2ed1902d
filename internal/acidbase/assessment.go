package acidbase

import "math"

// CompensationAssessment compares the observed counter-regulation with the expected one
type CompensationAssessment string

const (
	CompensationAdequate             CompensationAssessment = "adequate"
	CompensationRespiratoryAcidosis  CompensationAssessment = "associated_respiratory_acidosis"
	CompensationRespiratoryAlkalosis CompensationAssessment = "associated_respiratory_alkalosis"
	CompensationAcute                CompensationAssessment = "acute"
	CompensationChronic              CompensationAssessment = "chronic"
	CompensationPartial              CompensationAssessment = "partial"
	CompensationMetabolicAcidosis    CompensationAssessment = "associated_metabolic_acidosis"
	CompensationMetabolicAlkalosis   CompensationAssessment = "associated_metabolic_alkalosis"
)

// hco3Tolerance is the slack, in mEq/L, around an expected respiratory-phase HCO3.
const hco3Tolerance = 2.0

// AssessCompensation grades the observed PaCO2 (metabolic disorders) or HCO3
// (respiratory disorders) against the expected compensation. Empty when the
// expected values or the observed value are missing.
func AssessCompensation(d Disorder, paCO2, hco3 *float64, expected map[string]float64) CompensationAssessment {
	switch d {
	case DisorderMetabolicAcidosis, DisorderMetabolicAlkalosis:
		low, okLow := expected[KeyExpectedPaCO2Low]
		high, okHigh := expected[KeyExpectedPaCO2High]
		if !okLow || !okHigh || paCO2 == nil {
			return ""
		}
		switch {
		case *paCO2 > high:
			return CompensationRespiratoryAcidosis
		case *paCO2 < low:
			return CompensationRespiratoryAlkalosis
		default:
			return CompensationAdequate
		}

	case DisorderRespiratoryAcidosis, DisorderRespiratoryAlkalosis:
		acute, okAcute := expected[KeyExpectedHCO3Acute]
		chronic, okChronic := expected[KeyExpectedHCO3Chronic]
		if !okAcute || !okChronic || hco3 == nil {
			return ""
		}
		lo, hi := acute, chronic
		if lo > hi {
			lo, hi = hi, lo
		}
		v := *hco3
		switch {
		case v < lo-hco3Tolerance:
			return CompensationMetabolicAcidosis
		case v > hi+hco3Tolerance:
			return CompensationMetabolicAlkalosis
		case math.Abs(v-acute) <= hco3Tolerance:
			return CompensationAcute
		case math.Abs(v-chronic) <= hco3Tolerance:
			return CompensationChronic
		default:
			return CompensationPartial
		}
	}
	return ""
}

// DeltaRatioAssessment reads the delta ratio of a high anion-gap acidosis
type DeltaRatioAssessment string

const (
	DeltaNormalGapAcidosis   DeltaRatioAssessment = "normal_anion_gap_acidosis"
	DeltaMixedGapAcidosis    DeltaRatioAssessment = "mixed_high_and_normal_anion_gap_acidosis"
	DeltaHighGapAcidosis     DeltaRatioAssessment = "high_anion_gap_acidosis"
	DeltaAssociatedAlkalosis DeltaRatioAssessment = "associated_metabolic_alkalosis"
)

// AssessDeltaRatio maps a delta ratio onto its conventional bands.
func AssessDeltaRatio(ratio *float64) DeltaRatioAssessment {
	if ratio == nil {
		return ""
	}
	switch r := *ratio; {
	case r < 0.4:
		return DeltaNormalGapAcidosis
	case r < 0.8:
		return DeltaMixedGapAcidosis
	case r <= 2:
		return DeltaHighGapAcidosis
	default:
		return DeltaAssociatedAlkalosis
	}
}
