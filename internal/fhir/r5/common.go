// Package r5 provides the FHIR R5 data structures used to export clinical
// calculator results as Observation, DiagnosticReport and Bundle resources.
package r5

import "time"

// Meta contains metadata about a resource.
type Meta struct {
	VersionID   string     `json:"versionId,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Source      string     `json:"source,omitempty"`
	Profile     []string   `json:"profile,omitempty"`
	Tag         []Coding   `json:"tag,omitempty"`
}

// Identifier represents a FHIR Identifier.
type Identifier struct {
	Use    string `json:"use,omitempty"` // usual | official | temp | secondary | old
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// CodeableConcept represents a concept with text and codings.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Coding represents a code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// Reference represents a reference to another resource.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Quantity represents a measured amount.
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// Range represents a range of values.
type Range struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}

// Annotation represents a note or comment.
type Annotation struct {
	Text string `json:"text"`
}

// Extension represents a FHIR extension.
type Extension struct {
	URL          string   `json:"url"`
	ValueString  string   `json:"valueString,omitempty"`
	ValueBoolean *bool    `json:"valueBoolean,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
}

// OperationOutcome represents errors and warnings from FHIR operations.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

// OperationOutcomeIssue represents a single issue in an OperationOutcome.
type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"` // fatal | error | warning | information
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

// NewOperationOutcome creates a new OperationOutcome with the given issues.
func NewOperationOutcome(issues ...OperationOutcomeIssue) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        issues,
	}
}

// NewErrorOutcome creates an OperationOutcome with a single error issue.
func NewErrorOutcome(code, diagnostics string, expression ...string) *OperationOutcome {
	return NewOperationOutcome(OperationOutcomeIssue{
		Severity:    "error",
		Code:        code,
		Diagnostics: diagnostics,
		Expression:  expression,
	})
}

// Issue type codes
const (
	IssueInvalid   = "invalid"
	IssueValue     = "value"
	IssueNotFound  = "not-found"
	IssueConflict  = "conflict"
	IssueException = "exception"
)

// Common code systems
const (
	SystemLOINC                  = "http://loinc.org"
	SystemUCUM                   = "http://unitsofmeasure.org"
	SystemObservationCategory    = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemObservationInterp      = "http://terminology.hl7.org/CodeSystem/v3-ObservationInterpretation"
	SystemDiagnosticServiceCodes = "http://terminology.hl7.org/CodeSystem/v2-0074"
	SystemDataAbsentReason       = "http://terminology.hl7.org/CodeSystem/data-absent-reason"
	SystemClinicalCore           = "https://medassist.example/fhir/CodeSystem/clinical-core"
	ExtensionEstimated           = "https://medassist.example/fhir/StructureDefinition/estimated-from-venous"
)

// Observation and report statuses
const (
	StatusFinal       = "final"
	StatusPreliminary = "preliminary"
	StatusAmended     = "amended"
)

// NewConcept builds a single-coding CodeableConcept.
func NewConcept(system, code, display string) CodeableConcept {
	return CodeableConcept{
		Coding: []Coding{{System: system, Code: code, Display: display}},
		Text:   display,
	}
}

// NewQuantity builds a UCUM quantity.
func NewQuantity(value float64, unit, ucum string) *Quantity {
	return &Quantity{Value: value, Unit: unit, System: SystemUCUM, Code: ucum}
}
