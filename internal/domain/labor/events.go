package labor

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/medassist/clinical-core/internal/partogram"
)

// AggregateType names the labor record stream in the event store.
const AggregateType = "LaborRecord"

// EventType represents the type of domain event
type EventType string

const (
	EventLaborStarted             EventType = "LaborStarted"
	EventObservationRecorded      EventType = "ObservationRecorded"
	EventStartTimeCorrected       EventType = "StartTimeCorrected"
	EventObservationTimeCorrected EventType = "ObservationTimeCorrected"
	EventActionLineCrossed        EventType = "ActionLineCrossed"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	RecordedBy    string          `json:"recorded_by,omitempty"`
	PatientRef    string          `json:"patient_ref,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent creates a new event
func NewEvent(aggregateID string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: AggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// WithAuditInfo sets audit fields
func (e *Event) WithAuditInfo(recordedBy, patientRef, correlationID string) *Event {
	e.RecordedBy = recordedBy
	e.PatientRef = patientRef
	e.CorrelationID = correlationID
	return e
}

// LaborStartedData opens a record
type LaborStartedData struct {
	RecordID   string           `json:"record_id"`
	PatientRef string           `json:"patient_ref"`
	StartTime  time.Time        `json:"start_time"`
	Config     partogram.Config `json:"config"`
}

// ObservationRecordedData carries one bedside assessment.
type ObservationRecordedData struct {
	Sequence       int       `json:"sequence"`
	Timestamp      time.Time `json:"timestamp"`
	DilationCm     float64   `json:"dilation_cm"`
	Station        *int      `json:"station,omitempty"`
	FetalHeartRate *int      `json:"fetal_heart_rate,omitempty"`
	BloodPressure  string    `json:"blood_pressure,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

// StartTimeCorrectedData moves the start of active labor.
type StartTimeCorrectedData struct {
	Previous  time.Time `json:"previous"`
	StartTime time.Time `json:"start_time"`
}

// ObservationTimeCorrectedData moves a single observation.
type ObservationTimeCorrectedData struct {
	Sequence  int       `json:"sequence"`
	Previous  time.Time `json:"previous"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionLineCrossedData is the alert payload published to the dispatcher.
type ActionLineCrossedData struct {
	RecordID           string    `json:"record_id"`
	PatientRef         string    `json:"patient_ref"`
	HoursFromStart     float64   `json:"hours_from_start"`
	DilationCm         float64   `json:"dilation_cm"`
	ExpectedDilationCm float64   `json:"expected_dilation_cm"`
	DetectedAt         time.Time `json:"detected_at"`
}
