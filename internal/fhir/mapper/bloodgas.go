package mapper

import (
	"github.com/medassist/clinical-core/internal/acidbase"
	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
)

// LOINC codes, arterial and venous
const (
	LOINCArterialPH    = "2744-1"
	LOINCArterialPCO2  = "2019-8"
	LOINCArterialHCO3  = "1960-4"
	LOINCVenousPH      = "2746-6"
	LOINCVenousPCO2    = "2021-4"
	LOINCVenousHCO3    = "14627-4"
	LOINCAnionGap      = "33037-3"
	LOINCArterialPanel = "24336-0"
	LOINCVenousPanel   = "24338-6"
)

// Local codes for derived values without a LOINC term.
const (
	CodeCorrectedAnionGap     = "corrected-anion-gap"
	CodeDeltaRatio            = "delta-ratio"
	CodeExpectedCompensation  = "expected-compensation"
	CodeAlveolarPO2           = "alveolar-po2"
	CodeAaGradient            = "aa-gradient"
	CodePFRatio               = "pf-ratio"
	CodeAcidBaseDisorderGroup = "acid-base-disorder"
)

const estimatedNote = "Valor estimado a partir da gasometria venosa."

// BloodGasBundle exports an interpretation as a DiagnosticReport plus one
// Observation per available value. Absent values produce no Observation.
func BloodGasBundle(in *acidbase.Interpretation, opts Options) *fhir.Bundle {
	b := &bloodGasBuilder{in: in, opts: opts}
	return b.build()
}

type bloodGasBuilder struct {
	in      *acidbase.Interpretation
	opts    Options
	results []fhir.Reference
	bundle  *fhir.Bundle
}

func (b *bloodGasBuilder) build() *fhir.Bundle {
	in := b.in
	venous := in.SampleType == acidbase.SampleVenous
	b.bundle = fhir.NewCollection(b.opts.id(), issuedNow())

	phCode, pco2Code, hco3Code := LOINCArterialPH, LOINCArterialPCO2, LOINCArterialHCO3
	if venous && !in.EstimatedFromVenous {
		phCode, pco2Code = LOINCVenousPH, LOINCVenousPCO2
	}
	if venous {
		hco3Code = LOINCVenousHCO3
	}

	if in.PH != nil {
		o := b.observation(fhir.NewConcept(fhir.SystemLOINC, phCode, "pH"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(*in.PH, "pH", "[pH]")
		o.Interpretation = phInterpretation(*in.PH)
		b.markEstimated(o)
	}
	if in.PaCO2 != nil {
		o := b.observation(fhir.NewConcept(fhir.SystemLOINC, pco2Code, "pCO2"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(*in.PaCO2, "mmHg", "mm[Hg]")
		b.withCompensationRange(o)
		b.markEstimated(o)
	}
	if in.HCO3 != nil {
		o := b.observation(fhir.NewConcept(fhir.SystemLOINC, hco3Code, "HCO3"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(*in.HCO3, "mEq/L", "meq/L")
	}
	if in.AnionGap != nil {
		o := b.observation(fhir.NewConcept(fhir.SystemLOINC, LOINCAnionGap, "Anion gap"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(*in.AnionGap, "mEq/L", "meq/L")
	}
	if in.CorrectedAnionGap != nil {
		o := b.observation(local(CodeCorrectedAnionGap, "Ânion gap corrigido pela albumina"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(*in.CorrectedAnionGap, "mEq/L", "meq/L")
	}
	if in.DeltaRatio != nil {
		o := b.observation(local(CodeDeltaRatio, "Delta ratio"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(*in.DeltaRatio, "ratio", "1")
		if in.DeltaRatioAssessment != "" {
			o.Note = []fhir.Annotation{{Text: in.DeltaRatioAssessment.Label()}}
		}
	}
	b.oxygenation()

	report := fhir.NewDiagnosticReport(b.opts.id(), b.panelCode(venous))
	report.Category = []fhir.CodeableConcept{fhir.NewConcept(fhir.SystemDiagnosticServiceCodes, "LAB", "Laboratory")}
	report.Subject = b.opts.subject()
	report.EffectiveDateTime = b.opts.effective()
	report.Issued = b.bundle.Timestamp
	report.Result = b.results
	report.Conclusion = in.Narrative
	if in.PrimaryDisorder != nil {
		report.ConclusionCode = []fhir.CodeableConcept{
			local(string(*in.PrimaryDisorder), in.PrimaryDisorder.Label()),
		}
	}
	b.bundle.Add(report.ID, report)
	return b.bundle
}

func (b *bloodGasBuilder) panelCode(venous bool) fhir.CodeableConcept {
	if venous {
		return fhir.NewConcept(fhir.SystemLOINC, LOINCVenousPanel, "Gas panel - Venous blood")
	}
	return fhir.NewConcept(fhir.SystemLOINC, LOINCArterialPanel, "Gas panel - Arterial blood")
}

func (b *bloodGasBuilder) observation(code, category fhir.CodeableConcept) *fhir.Observation {
	o := fhir.NewObservation(b.opts.id(), code)
	o.Category = []fhir.CodeableConcept{category}
	o.Subject = b.opts.subject()
	o.EffectiveDateTime = b.opts.effective()
	b.bundle.Add(o.ID, o)
	b.results = append(b.results, fhir.Reference{Reference: "urn:uuid:" + o.ID, Type: "Observation"})
	return o
}

func (b *bloodGasBuilder) markEstimated(o *fhir.Observation) {
	if !b.in.EstimatedFromVenous {
		return
	}
	estimated := true
	o.Extension = append(o.Extension, fhir.Extension{URL: fhir.ExtensionEstimated, ValueBoolean: &estimated})
	o.Note = append(o.Note, fhir.Annotation{Text: estimatedNote})
}

// withCompensationRange attaches Winter's or the alkalosis range to PaCO2.
func (b *bloodGasBuilder) withCompensationRange(o *fhir.Observation) {
	low, okLow := b.in.Compensation[acidbase.KeyExpectedPaCO2Low]
	high, okHigh := b.in.Compensation[acidbase.KeyExpectedPaCO2High]
	if !okLow || !okHigh {
		return
	}
	o.ReferenceRange = []fhir.ReferenceRange{{
		Low:  fhir.NewQuantity(low, "mmHg", "mm[Hg]"),
		High: fhir.NewQuantity(high, "mmHg", "mm[Hg]"),
		Text: "PaCO2 esperada pela compensação respiratória",
	}}
	if b.in.CompensationAssessment != "" {
		o.Interpretation = []fhir.CodeableConcept{
			local(string(b.in.CompensationAssessment), b.in.CompensationAssessment.Label()),
		}
	}
}

func (b *bloodGasBuilder) oxygenation() {
	ox := b.in.Oxygenation
	if len(ox) == 0 {
		return
	}
	if v, ok := ox[acidbase.KeyAlveolarPO2]; ok {
		o := b.observation(local(CodeAlveolarPO2, "PO2 alveolar"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(v, "mmHg", "mm[Hg]")
	}
	if v, ok := ox[acidbase.KeyAaGradient]; ok {
		o := b.observation(local(CodeAaGradient, "Gradiente alvéolo-arterial"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(v, "mmHg", "mm[Hg]")
		if exp, ok := ox[acidbase.KeyExpectedAaGradient]; ok {
			o.ReferenceRange = []fhir.ReferenceRange{{
				High: fhir.NewQuantity(exp, "mmHg", "mm[Hg]"),
				Text: "Gradiente esperado para a idade",
			}}
			if v > exp {
				o.Interpretation = []fhir.CodeableConcept{interpHigh}
			} else {
				o.Interpretation = []fhir.CodeableConcept{interpNormal}
			}
		}
	}
	if v, ok := ox[acidbase.KeyPFRatio]; ok {
		o := b.observation(local(CodePFRatio, "Relação PaO2/FiO2"), categoryLaboratory)
		o.ValueQuantity = fhir.NewQuantity(v, "mmHg", "mm[Hg]")
	}
}

func phInterpretation(ph float64) []fhir.CodeableConcept {
	switch {
	case ph < acidbase.AcidemiaPH:
		return []fhir.CodeableConcept{interpLow}
	case ph > acidbase.AlkalemiaPH:
		return []fhir.CodeableConcept{interpHigh}
	default:
		return []fhir.CodeableConcept{interpNormal}
	}
}
