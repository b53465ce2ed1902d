package r5

import "time"

// Observation represents a FHIR R5 Observation resource.
type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Meta              *Meta                  `json:"meta,omitempty"`
	Extension         []Extension            `json:"extension,omitempty"`
	Identifier        []Identifier           `json:"identifier,omitempty"`
	Status            string                 `json:"status"`
	Category          []CodeableConcept      `json:"category,omitempty"`
	Code              CodeableConcept        `json:"code"`
	Subject           *Reference             `json:"subject,omitempty"`
	EffectiveDateTime *time.Time             `json:"effectiveDateTime,omitempty"`
	Issued            *time.Time             `json:"issued,omitempty"`
	ValueQuantity     *Quantity              `json:"valueQuantity,omitempty"`
	ValueBoolean      *bool                  `json:"valueBoolean,omitempty"`
	ValueString       string                 `json:"valueString,omitempty"`
	DataAbsentReason  *CodeableConcept       `json:"dataAbsentReason,omitempty"`
	Interpretation    []CodeableConcept      `json:"interpretation,omitempty"`
	Note              []Annotation           `json:"note,omitempty"`
	ReferenceRange    []ReferenceRange       `json:"referenceRange,omitempty"`
	DerivedFrom       []Reference            `json:"derivedFrom,omitempty"`
	Component         []ObservationComponent `json:"component,omitempty"`
}

// ReferenceRange gives the expected values for an observation.
type ReferenceRange struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
	Text string    `json:"text,omitempty"`
}

// ObservationComponent is a component result of an Observation.
type ObservationComponent struct {
	Code           CodeableConcept   `json:"code"`
	ValueQuantity  *Quantity         `json:"valueQuantity,omitempty"`
	ValueBoolean   *bool             `json:"valueBoolean,omitempty"`
	ValueString    string            `json:"valueString,omitempty"`
	Interpretation []CodeableConcept `json:"interpretation,omitempty"`
	ReferenceRange []ReferenceRange  `json:"referenceRange,omitempty"`
}

// DiagnosticReport represents a FHIR R5 DiagnosticReport resource.
type DiagnosticReport struct {
	ResourceType      string            `json:"resourceType"`
	ID                string            `json:"id,omitempty"`
	Meta              *Meta             `json:"meta,omitempty"`
	Status            string            `json:"status"`
	Category          []CodeableConcept `json:"category,omitempty"`
	Code              CodeableConcept   `json:"code"`
	Subject           *Reference        `json:"subject,omitempty"`
	EffectiveDateTime *time.Time        `json:"effectiveDateTime,omitempty"`
	Issued            *time.Time        `json:"issued,omitempty"`
	Result            []Reference       `json:"result,omitempty"`
	Conclusion        string            `json:"conclusion,omitempty"`
	ConclusionCode    []CodeableConcept `json:"conclusionCode,omitempty"`
}

// Bundle represents a FHIR R5 Bundle resource.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Type         string        `json:"type"` // collection | document | transaction | ...
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry holds one resource. Resource is *Observation or *DiagnosticReport.
type BundleEntry struct {
	FullURL  string      `json:"fullUrl,omitempty"`
	Resource interface{} `json:"resource"`
}

// NewObservation returns a final Observation with the resource type set.
func NewObservation(id string, code CodeableConcept) *Observation {
	return &Observation{ResourceType: "Observation", ID: id, Status: StatusFinal, Code: code}
}

// NewDiagnosticReport returns a final DiagnosticReport with the resource type set.
func NewDiagnosticReport(id string, code CodeableConcept) *DiagnosticReport {
	return &DiagnosticReport{ResourceType: "DiagnosticReport", ID: id, Status: StatusFinal, Code: code}
}

// NewCollection returns an empty collection Bundle.
func NewCollection(id string, ts time.Time) *Bundle {
	return &Bundle{ResourceType: "Bundle", ID: id, Type: "collection", Timestamp: &ts}
}

// Add appends a resource under a urn:uuid full URL.
func (b *Bundle) Add(id string, resource interface{}) {
	b.Entry = append(b.Entry, BundleEntry{FullURL: "urn:uuid:" + id, Resource: resource})
}

// Observations returns the Observation entries in order.
func (b *Bundle) Observations() []*Observation {
	var out []*Observation
	for _, e := range b.Entry {
		if o, ok := e.Resource.(*Observation); ok {
			out = append(out, o)
		}
	}
	return out
}

// Report returns the first DiagnosticReport entry, if any.
func (b *Bundle) Report() *DiagnosticReport {
	for _, e := range b.Entry {
		if r, ok := e.Resource.(*DiagnosticReport); ok {
			return r
		}
	}
	return nil
}

// ObservationByCode finds an Observation entry by its first coding's code.
func (b *Bundle) ObservationByCode(code string) *Observation {
	for _, o := range b.Observations() {
		for _, c := range o.Code.Coding {
			if c.Code == code {
				return o
			}
		}
	}
	return nil
}
