package mapper

import (
	"time"

	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
	"github.com/medassist/clinical-core/internal/partogram"
)

// Local partogram codes
const (
	CodePartogram         = "partogram"
	CodeCervicalDilation  = "cervical-dilation"
	CodeHoursFromStart    = "hours-from-start"
	CodeExpectedAlert     = "expected-dilation-alert-line"
	CodeExpectedAction    = "expected-dilation-action-line"
	CodeActionLineCrossed = "action-line-crossed"
	CodeAlertLineCrossed  = "alert-line-crossed"
)

// Partogram conclusions
const (
	ConclusionActionCrossed = "Curva de dilatação cruzou a linha de ação: avaliar parada de progressão."
	ConclusionAlertCrossed  = "Curva de dilatação à direita da linha de alerta."
	ConclusionNormal        = "Progressão da dilatação dentro das linhas de referência."
)

// PartogramBundle exports a chart as one Observation per assessment, two
// summary Observations for the crossing flags and a DiagnosticReport. When
// opts.Effective is set it is taken as the start of active labor.
func PartogramBundle(series *partogram.ChartSeries, cfg partogram.Config, opts Options) *fhir.Bundle {
	bundle := fhir.NewCollection(opts.id(), issuedNow())
	var results []fhir.Reference

	add := func(o *fhir.Observation) {
		o.Category = []fhir.CodeableConcept{categoryExam}
		o.Subject = opts.subject()
		bundle.Add(o.ID, o)
		results = append(results, fhir.Reference{Reference: "urn:uuid:" + o.ID, Type: "Observation"})
	}

	crossings := make(map[partogram.Point]bool, len(series.ActionLineCrossings))
	for _, p := range series.ActionLineCrossings {
		crossings[p] = true
	}

	for _, p := range series.Observed {
		o := fhir.NewObservation(opts.id(), local(CodeCervicalDilation, "Dilatação cervical"))
		o.ValueQuantity = fhir.NewQuantity(p.Dilation, "cm", "cm")
		if !opts.Effective.IsZero() {
			t := opts.Effective.UTC().Add(time.Duration(p.Hour * float64(time.Hour)))
			o.EffectiveDateTime = &t
		}
		o.Component = []fhir.ObservationComponent{
			{Code: local(CodeHoursFromStart, "Horas desde o início da fase ativa"), ValueQuantity: fhir.NewQuantity(p.Hour, "h", "h")},
			{Code: local(CodeExpectedAlert, "Dilatação esperada na linha de alerta"), ValueQuantity: fhir.NewQuantity(cfg.AlertAt(p.Hour), "cm", "cm")},
		}
		if p.Hour >= cfg.ActionOffsetHours {
			o.Component = append(o.Component, fhir.ObservationComponent{
				Code:          local(CodeExpectedAction, "Dilatação esperada na linha de ação"),
				ValueQuantity: fhir.NewQuantity(cfg.ActionAt(p.Hour), "cm", "cm"),
			})
		}
		if crossings[p] {
			o.Interpretation = []fhir.CodeableConcept{interpAbnormal}
		} else {
			o.Interpretation = []fhir.CodeableConcept{interpNormal}
		}
		add(o)
	}

	action := flag(opts.id(), local(CodeActionLineCrossed, "Linha de ação cruzada"), series.CrossesActionLine)
	add(action)
	alert := flag(opts.id(), local(CodeAlertLineCrossed, "Linha de alerta cruzada"), series.CrossesAlertLine)
	add(alert)

	report := fhir.NewDiagnosticReport(opts.id(), local(CodePartogram, "Partograma"))
	report.Subject = opts.subject()
	report.EffectiveDateTime = opts.effective()
	report.Issued = bundle.Timestamp
	report.Result = results
	switch {
	case series.CrossesActionLine:
		report.Conclusion = ConclusionActionCrossed
		report.ConclusionCode = []fhir.CodeableConcept{local(CodeActionLineCrossed, "Linha de ação cruzada")}
	case series.CrossesAlertLine:
		report.Conclusion = ConclusionAlertCrossed
		report.ConclusionCode = []fhir.CodeableConcept{local(CodeAlertLineCrossed, "Linha de alerta cruzada")}
	default:
		report.Conclusion = ConclusionNormal
	}
	bundle.Add(report.ID, report)
	return bundle
}

func flag(id string, code fhir.CodeableConcept, v bool) *fhir.Observation {
	o := fhir.NewObservation(id, code)
	o.ValueBoolean = &v
	if v {
		o.Interpretation = []fhir.CodeableConcept{interpAbnormal}
	} else {
		o.Interpretation = []fhir.CodeableConcept{interpNormal}
	}
	return o
}
