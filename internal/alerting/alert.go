// Package alerting delivers labor action-line alerts to external notification channels.
package alerting

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/medassist/clinical-core/internal/domain/labor"
)

// ErrUnsupportedEvent is returned for records that are not action-line alerts.
var ErrUnsupportedEvent = errors.New("unsupported event type")

// Alert is the notification sent when a labor record falls behind the action line.
type Alert struct {
	EventID            string    `json:"event_id"`
	RecordID           string    `json:"record_id"`
	PatientRef         string    `json:"patient_ref"`
	HoursFromStart     float64   `json:"hours_from_start"`
	DilationCm         float64   `json:"dilation_cm"`
	ExpectedDilationCm float64   `json:"expected_dilation_cm"`
	DetectedAt         time.Time `json:"detected_at"`
	CorrelationID      string    `json:"correlation_id,omitempty"`
	Message            string    `json:"message"`
}

// DecodeAlert parses an outbox payload (a serialized labor.Event).
func DecodeAlert(value []byte) (*Alert, error) {
	var event labor.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.EventType != labor.EventActionLineCrossed {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.EventType)
	}

	var data labor.ActionLineCrossedData
	if err := json.Unmarshal(event.EventData, &data); err != nil {
		return nil, fmt.Errorf("decode alert data: %w", err)
	}

	alert := &Alert{
		EventID:            event.ID,
		RecordID:           data.RecordID,
		PatientRef:         data.PatientRef,
		HoursFromStart:     data.HoursFromStart,
		DilationCm:         data.DilationCm,
		ExpectedDilationCm: data.ExpectedDilationCm,
		DetectedAt:         data.DetectedAt,
		CorrelationID:      event.CorrelationID,
	}
	if alert.RecordID == "" {
		alert.RecordID = event.AggregateID
	}
	alert.Message = fmt.Sprintf(
		"Partograma cruzou a linha de ação: %.1f h de trabalho de parto, dilatação %.1f cm (esperado %.1f cm).",
		alert.HoursFromStart, alert.DilationCm, alert.ExpectedDilationCm)
	return alert, nil
}
