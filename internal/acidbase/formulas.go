package acidbase

import "math"

// Reference values and physical constants.
const (
	NormalAnionGap = 12.0
	NormalHCO3     = 24.0
	NormalPaCO2    = 40.0
	NormalAlbumin  = 4.0

	AcidemiaPH  = 7.35
	AlkalemiaPH = 7.45
	MinPH       = 6.0
	MaxPH       = 8.0

	BarometricPressure  = 760.0 // mmHg, sea level
	WaterVaporPressure  = 47.0  // mmHg at 37 °C
	RespiratoryQuotient = 0.8
)

// Disorder is the primary acid-base disturbance
type Disorder string

const (
	DisorderNone                   Disorder = "normal"
	DisorderMetabolicAcidosis      Disorder = "metabolic_acidosis"
	DisorderRespiratoryAcidosis    Disorder = "respiratory_acidosis"
	DisorderMetabolicAlkalosis     Disorder = "metabolic_alkalosis"
	DisorderRespiratoryAlkalosis   Disorder = "respiratory_alkalosis"
	DisorderIndeterminateAcidemia  Disorder = "indeterminate_acidemia"
	DisorderIndeterminateAlkalemia Disorder = "indeterminate_alkalemia"
)

// Compensation and oxygenation map keys.
const (
	KeyExpectedPaCO2       = "expectedPaCO2"
	KeyExpectedPaCO2Low    = "expectedPaCO2Low"
	KeyExpectedPaCO2High   = "expectedPaCO2High"
	KeyExpectedHCO3Acute   = "expectedHCO3Acute"
	KeyExpectedHCO3Chronic = "expectedHCO3Chronic"

	KeyAlveolarPO2        = "alveolarPO2"
	KeyAaGradient         = "aaGradient"
	KeyPFRatio            = "pfRatio"
	KeyExpectedAaGradient = "expectedAaGradient"
)

// AnionGap returns Na − (Cl + HCO3), plus K when includePotassium is set and K is
// present. Nil when Na, Cl or HCO3 is absent. One decimal.
func AnionGap(na, cl, hco3, k *float64, includePotassium bool) *float64 {
	if na == nil || cl == nil || hco3 == nil {
		return nil
	}
	ag := *na - (*cl + *hco3)
	if includePotassium && k != nil {
		ag += *k
	}
	return ptr(round(ag, 1))
}

// CorrectedAnionGap adjusts the anion gap for hypoalbuminemia: ag + 2.5 × (4 − albumin).
func CorrectedAnionGap(ag, albumin *float64) *float64 {
	if ag == nil || albumin == nil {
		return nil
	}
	return ptr(round(*ag+2.5*(NormalAlbumin-*albumin), 1))
}

// ClassifyPrimaryDisorder applies the pH-first decision tree. Nil when any input is absent.
func ClassifyPrimaryDisorder(pH, paCO2, hco3 *float64) *Disorder {
	if pH == nil || paCO2 == nil || hco3 == nil {
		return nil
	}

	var d Disorder
	switch {
	case *pH < AcidemiaPH:
		switch {
		case *hco3 < 22:
			d = DisorderMetabolicAcidosis
		case *paCO2 > 45:
			d = DisorderRespiratoryAcidosis
		default:
			d = DisorderIndeterminateAcidemia
		}
	case *pH > AlkalemiaPH:
		switch {
		case *hco3 > 26:
			d = DisorderMetabolicAlkalosis
		case *paCO2 < 35:
			d = DisorderRespiratoryAlkalosis
		default:
			d = DisorderIndeterminateAlkalemia
		}
	default:
		d = DisorderNone
	}
	return &d
}

// ExpectedCompensation returns the expected counter-regulation for disorder d.
// Metabolic disorders yield an expected PaCO2 with its range; respiratory ones
// yield expected HCO3 for both the acute and the chronic phase.
func ExpectedCompensation(d Disorder, paCO2, hco3 *float64) map[string]float64 {
	out := map[string]float64{}

	switch d {
	case DisorderMetabolicAcidosis:
		if hco3 == nil {
			return out
		}
		// Winter's formula
		mid := 1.5**hco3 + 8
		out[KeyExpectedPaCO2] = round(mid, 1)
		out[KeyExpectedPaCO2Low] = round(mid-2, 1)
		out[KeyExpectedPaCO2High] = round(mid+2, 1)

	case DisorderMetabolicAlkalosis:
		if hco3 == nil {
			return out
		}
		mid := 0.7**hco3 + 20
		out[KeyExpectedPaCO2] = round(mid, 1)
		out[KeyExpectedPaCO2Low] = round(mid-5, 1)
		out[KeyExpectedPaCO2High] = round(mid+5, 1)

	case DisorderRespiratoryAcidosis:
		if paCO2 == nil {
			return out
		}
		delta := (*paCO2 - NormalPaCO2) / 10
		out[KeyExpectedHCO3Acute] = round(NormalHCO3+delta*1.0, 1)
		out[KeyExpectedHCO3Chronic] = round(NormalHCO3+delta*3.5, 1)

	case DisorderRespiratoryAlkalosis:
		if paCO2 == nil {
			return out
		}
		delta := (NormalPaCO2 - *paCO2) / 10
		out[KeyExpectedHCO3Acute] = round(NormalHCO3-delta*2.0, 1)
		out[KeyExpectedHCO3Chronic] = round(NormalHCO3-delta*4.5, 1)
	}

	return out
}

// DeltaRatio returns (correctedAG − 12) / (24 − HCO3) when the gap is elevated.
// Two decimals.
func DeltaRatio(correctedAG, hco3 *float64) *float64 {
	if correctedAG == nil || hco3 == nil || *correctedAG <= NormalAnionGap {
		return nil
	}
	denom := NormalHCO3 - *hco3
	if denom == 0 {
		return nil
	}
	return ptr(round((*correctedAG-NormalAnionGap)/denom, 2))
}

// Oxygenation computes alveolar PO2, the A–a gradient, the P/F ratio and the
// age-expected A–a gradient. Only arterial samples with PaO2 and FiO2 qualify;
// the alveolar gas equation additionally needs PaCO2.
func Oxygenation(isArterial bool, paO2, fiO2, paCO2, age *float64) map[string]float64 {
	out := map[string]float64{}
	if !isArterial || paO2 == nil || fiO2 == nil {
		return out
	}

	if paCO2 != nil {
		alveolar := *fiO2*(BarometricPressure-WaterVaporPressure) - *paCO2/RespiratoryQuotient
		out[KeyAlveolarPO2] = round(alveolar, 1)
		out[KeyAaGradient] = round(alveolar-*paO2, 1)
	}
	out[KeyPFRatio] = round(*paO2 / *fiO2, 0)
	if age != nil {
		out[KeyExpectedAaGradient] = round(*age/4+4, 1)
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}

func ptr(v float64) *float64 { return &v }
