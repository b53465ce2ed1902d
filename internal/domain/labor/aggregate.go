// Package labor implements the event-sourced labor record aggregate. The
// record owns the observation set of one labor and keeps it sorted by elapsed
// time after every change.
package labor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/medassist/clinical-core/internal/partogram"
)

var (
	ErrNotStarted          = errors.New("labor record not started")
	ErrAlreadyStarted      = errors.New("labor record already started")
	ErrRecordNotFound      = errors.New("labor record not found")
	ErrObservationNotFound = errors.New("observation not found")
	ErrVersionConflict     = errors.New("labor record was modified concurrently")
	ErrInvalidCommand      = errors.New("invalid labor command")
)

// Status represents labor record status
type Status string

const (
	StatusNew    Status = "new"
	StatusActive Status = "active"
)

// Observation is a recorded assessment with its position in the recording order.
type Observation struct {
	Sequence int `json:"sequence"`
	partogram.Observation
}

// Aggregate represents the labor record aggregate root
type Aggregate struct {
	id           string
	version      int
	status       Status
	patientRef   string
	startTime    time.Time
	config       partogram.Config
	observations []Observation
	nextSequence int
	crossed      bool
	alerts       int
	createdAt    time.Time
	updatedAt    time.Time
	changes      []*Event
}

// NewAggregate creates a new labor record aggregate
func NewAggregate(id string) *Aggregate {
	return &Aggregate{
		id:        id,
		status:    StatusNew,
		config:    partogram.DefaultConfig(),
		createdAt: time.Now().UTC(),
		updatedAt: time.Now().UTC(),
		changes:   make([]*Event, 0),
	}
}

// ID returns the aggregate ID
func (a *Aggregate) ID() string { return a.id }

// Version returns the current version
func (a *Aggregate) Version() int { return a.version }

// Status returns the current status
func (a *Aggregate) Status() Status { return a.status }

// PatientRef returns the patient reference
func (a *Aggregate) PatientRef() string { return a.patientRef }

// StartTime returns the start of active labor
func (a *Aggregate) StartTime() time.Time { return a.startTime }

// Config returns the partogram configuration of this record
func (a *Aggregate) Config() partogram.Config { return a.config }

// CrossesActionLine reports the current crossing state
func (a *Aggregate) CrossesActionLine() bool { return a.crossed }

// AlertCount returns how many ActionLineCrossed events were raised
func (a *Aggregate) AlertCount() int { return a.alerts }

// UpdatedAt returns the time of the last applied event
func (a *Aggregate) UpdatedAt() time.Time { return a.updatedAt }

// Changes returns uncommitted events
func (a *Aggregate) Changes() []*Event { return a.changes }

// ClearChanges clears uncommitted events
func (a *Aggregate) ClearChanges() { a.changes = make([]*Event, 0) }

// Observations returns a copy of the observations, sorted by elapsed time.
func (a *Aggregate) Observations() []Observation {
	out := make([]Observation, len(a.observations))
	copy(out, a.observations)
	return out
}

// Chart recomputes the partogram from the current observations.
func (a *Aggregate) Chart() (*partogram.ChartSeries, error) {
	if a.status != StatusActive {
		return nil, ErrNotStarted
	}
	return partogram.ComputeChartSeries(a.plain(), a.config)
}

// Audit carries who issued a command.
type Audit struct {
	RecordedBy    string
	CorrelationID string
}

// Start opens the record
func (a *Aggregate) Start(patientRef string, start time.Time, cfg partogram.Config, audit Audit) error {
	if a.status != StatusNew {
		return ErrAlreadyStarted
	}
	if patientRef == "" {
		return fmt.Errorf("%w: patient reference is required", ErrInvalidCommand)
	}
	if start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidCommand)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return a.raise(EventLaborStarted, &LaborStartedData{
		RecordID:   a.id,
		PatientRef: patientRef,
		StartTime:  start.UTC(),
		Config:     cfg,
	}, audit)
}

// RecordObservation adds an assessment and returns its sequence number.
func (a *Aggregate) RecordObservation(obs partogram.Observation, audit Audit) (int, error) {
	if a.status != StatusActive {
		return 0, ErrNotStarted
	}

	obs.HoursFromStart = obs.Timestamp.Sub(a.startTime).Hours()
	if err := obs.Validate(len(a.observations)); err != nil {
		return 0, err
	}

	seq := a.nextSequence
	err := a.raise(EventObservationRecorded, &ObservationRecordedData{
		Sequence:       seq,
		Timestamp:      obs.Timestamp.UTC(),
		DilationCm:     obs.DilationCm,
		Station:        obs.Station,
		FetalHeartRate: obs.FetalHeartRate,
		BloodPressure:  obs.BloodPressure,
		Notes:          obs.Notes,
	}, audit)
	return seq, err
}

// CorrectStartTime moves the start of active labor. Every observation must
// still fall after the new start.
func (a *Aggregate) CorrectStartTime(start time.Time, audit Audit) error {
	if a.status != StatusActive {
		return ErrNotStarted
	}
	if start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidCommand)
	}
	for i, o := range a.observations {
		o.HoursFromStart = o.Timestamp.Sub(start).Hours()
		if err := o.Validate(i); err != nil {
			return err
		}
	}

	return a.raise(EventStartTimeCorrected, &StartTimeCorrectedData{
		Previous:  a.startTime,
		StartTime: start.UTC(),
	}, audit)
}

// CorrectObservationTime moves the observation with the given sequence.
func (a *Aggregate) CorrectObservationTime(seq int, timestamp time.Time, audit Audit) error {
	if a.status != StatusActive {
		return ErrNotStarted
	}
	idx := a.indexOf(seq)
	if idx < 0 {
		return fmt.Errorf("%w: sequence %d", ErrObservationNotFound, seq)
	}

	o := a.observations[idx].Observation
	o.HoursFromStart = timestamp.Sub(a.startTime).Hours()
	if err := o.Validate(idx); err != nil {
		return err
	}

	return a.raise(EventObservationTimeCorrected, &ObservationTimeCorrectedData{
		Sequence:  seq,
		Previous:  a.observations[idx].Timestamp,
		Timestamp: timestamp.UTC(),
	}, audit)
}

// raise records and applies an event, then raises ActionLineCrossed when the
// chart went from not crossing to crossing.
func (a *Aggregate) raise(eventType EventType, data interface{}, audit Audit) error {
	before := a.crossed

	event, err := NewEvent(a.id, eventType, data)
	if err != nil {
		return err
	}
	event.WithAuditInfo(audit.RecordedBy, a.patientRefFor(data), audit.CorrelationID)
	if err := a.apply(event); err != nil {
		return err
	}
	a.changes = append(a.changes, event)

	if before || !a.crossed || eventType == EventActionLineCrossed {
		return nil
	}

	first, ok := a.firstCrossing()
	if !ok {
		return nil
	}
	return a.raise(EventActionLineCrossed, &ActionLineCrossedData{
		RecordID:           a.id,
		PatientRef:         a.patientRef,
		HoursFromStart:     first.HoursFromStart,
		DilationCm:         first.DilationCm,
		ExpectedDilationCm: a.config.ActionAt(first.HoursFromStart),
		DetectedAt:         event.Timestamp,
	}, audit)
}

func (a *Aggregate) patientRefFor(data interface{}) string {
	if d, ok := data.(*LaborStartedData); ok {
		return d.PatientRef
	}
	return a.patientRef
}

// apply applies an event to update state
func (a *Aggregate) apply(event *Event) error {
	var err error
	switch event.EventType {
	case EventLaborStarted:
		err = a.applyStarted(event)
	case EventObservationRecorded:
		err = a.applyObservationRecorded(event)
	case EventStartTimeCorrected:
		err = a.applyStartTimeCorrected(event)
	case EventObservationTimeCorrected:
		err = a.applyObservationTimeCorrected(event)
	case EventActionLineCrossed:
		a.alerts++
	default:
		err = fmt.Errorf("unknown event type %q", event.EventType)
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", event.EventType, err)
	}

	a.version++
	event.Version = a.version
	a.updatedAt = event.Timestamp
	return nil
}

func (a *Aggregate) applyStarted(event *Event) error {
	var data LaborStartedData
	if err := json.Unmarshal(event.EventData, &data); err != nil {
		return err
	}
	a.status = StatusActive
	a.patientRef = data.PatientRef
	a.startTime = data.StartTime
	a.config = data.Config
	return nil
}

func (a *Aggregate) applyObservationRecorded(event *Event) error {
	var data ObservationRecordedData
	if err := json.Unmarshal(event.EventData, &data); err != nil {
		return err
	}
	a.observations = append(a.observations, Observation{
		Sequence: data.Sequence,
		Observation: partogram.Observation{
			Timestamp:      data.Timestamp,
			DilationCm:     data.DilationCm,
			Station:        data.Station,
			FetalHeartRate: data.FetalHeartRate,
			BloodPressure:  data.BloodPressure,
			Notes:          data.Notes,
		},
	})
	if data.Sequence >= a.nextSequence {
		a.nextSequence = data.Sequence + 1
	}
	a.reindex()
	return nil
}

func (a *Aggregate) applyStartTimeCorrected(event *Event) error {
	var data StartTimeCorrectedData
	if err := json.Unmarshal(event.EventData, &data); err != nil {
		return err
	}
	a.startTime = data.StartTime
	a.reindex()
	return nil
}

func (a *Aggregate) applyObservationTimeCorrected(event *Event) error {
	var data ObservationTimeCorrectedData
	if err := json.Unmarshal(event.EventData, &data); err != nil {
		return err
	}
	idx := a.indexOf(data.Sequence)
	if idx < 0 {
		return fmt.Errorf("%w: sequence %d", ErrObservationNotFound, data.Sequence)
	}
	a.observations[idx].Timestamp = data.Timestamp
	a.reindex()
	return nil
}

// reindex recomputes elapsed hours, restores the sort order and refreshes the
// crossing state.
func (a *Aggregate) reindex() {
	for i := range a.observations {
		a.observations[i].HoursFromStart = a.observations[i].Timestamp.Sub(a.startTime).Hours()
	}
	sort.SliceStable(a.observations, func(i, j int) bool {
		return a.observations[i].HoursFromStart < a.observations[j].HoursFromStart
	})

	_, a.crossed = a.firstCrossing()
}

func (a *Aggregate) firstCrossing() (partogram.Observation, bool) {
	for _, o := range a.observations {
		if o.HoursFromStart >= a.config.ActionOffsetHours && o.DilationCm < a.config.ActionAt(o.HoursFromStart) {
			return o.Observation, true
		}
	}
	return partogram.Observation{}, false
}

func (a *Aggregate) indexOf(seq int) int {
	for i, o := range a.observations {
		if o.Sequence == seq {
			return i
		}
	}
	return -1
}

func (a *Aggregate) plain() []partogram.Observation {
	out := make([]partogram.Observation, len(a.observations))
	for i, o := range a.observations {
		out[i] = o.Observation
	}
	return out
}

// LoadFromHistory rebuilds state from events
func (a *Aggregate) LoadFromHistory(events []*Event) error {
	for _, event := range events {
		if err := a.apply(event); err != nil {
			return err
		}
	}
	return nil
}
