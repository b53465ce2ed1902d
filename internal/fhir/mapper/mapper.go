// Package mapper converts blood gas interpretations and partogram charts into
// FHIR R5 collections for reporting collaborators.
package mapper

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medassist/clinical-core/internal/acidbase"
	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
	"github.com/medassist/clinical-core/internal/partogram"
)

// Options controls identifiers and context of the exported resources.
type Options struct {
	// PatientRef becomes Patient/<ref> on every resource when set
	PatientRef string
	// Effective is the collection time; zero omits effectiveDateTime
	Effective time.Time
	// NewID generates resource IDs; nil uses random UUIDs
	NewID func() string
}

func (o Options) id() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o Options) subject() *fhir.Reference {
	if o.PatientRef == "" {
		return nil
	}
	return &fhir.Reference{Reference: "Patient/" + o.PatientRef, Type: "Patient"}
}

func (o Options) effective() *time.Time {
	if o.Effective.IsZero() {
		return nil
	}
	t := o.Effective.UTC()
	return &t
}

var (
	interpLow      = fhir.NewConcept(fhir.SystemObservationInterp, "L", "Low")
	interpHigh     = fhir.NewConcept(fhir.SystemObservationInterp, "H", "High")
	interpNormal   = fhir.NewConcept(fhir.SystemObservationInterp, "N", "Normal")
	interpAbnormal = fhir.NewConcept(fhir.SystemObservationInterp, "A", "Abnormal")

	categoryLaboratory = fhir.NewConcept(fhir.SystemObservationCategory, "laboratory", "Laboratory")
	categoryExam       = fhir.NewConcept(fhir.SystemObservationCategory, "exam", "Exam")
)

var now = time.Now

func issuedNow() time.Time { return now().UTC() }

func local(code, display string) fhir.CodeableConcept {
	return fhir.NewConcept(fhir.SystemClinicalCore, code, display)
}

// OperationOutcomeFor maps an engine error to an OperationOutcome.
func OperationOutcomeFor(err error) *fhir.OperationOutcome {
	var abErr *acidbase.ValidationError
	if errors.As(err, &abErr) {
		return fhir.NewErrorOutcome(fhir.IssueValue, err.Error(), abErr.Field)
	}
	var pgErr *partogram.ValidationError
	if errors.As(err, &pgErr) {
		return fhir.NewErrorOutcome(fhir.IssueValue, err.Error(), pgErr.Field)
	}
	if errors.Is(err, partogram.ErrInvalidConfig) {
		return fhir.NewErrorOutcome(fhir.IssueInvalid, err.Error(), "config")
	}
	return fhir.NewErrorOutcome(fhir.IssueException, err.Error())
}
