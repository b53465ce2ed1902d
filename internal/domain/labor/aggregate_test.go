package labor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/clinical-core/internal/partogram"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

var audit = Audit{RecordedBy: "nurse-1", CorrelationID: "corr-1"}

func startedRecord(t *testing.T) *Aggregate {
	t.Helper()
	agg := NewAggregate("rec-1")
	require.NoError(t, agg.Start("patient-9", t0, partogram.DefaultConfig(), audit))
	return agg
}

func observe(t *testing.T, agg *Aggregate, after time.Duration, dilation float64) int {
	t.Helper()
	seq, err := agg.RecordObservation(partogram.Observation{Timestamp: t0.Add(after), DilationCm: dilation}, audit)
	require.NoError(t, err)
	return seq
}

func eventTypes(events []*Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}

func TestStart(t *testing.T) {
	agg := startedRecord(t)

	assert.Equal(t, StatusActive, agg.Status())
	assert.Equal(t, "patient-9", agg.PatientRef())
	assert.Equal(t, t0, agg.StartTime())
	assert.Equal(t, 1, agg.Version())
	require.Len(t, agg.Changes(), 1)

	e := agg.Changes()[0]
	assert.Equal(t, EventLaborStarted, e.EventType)
	assert.Equal(t, "nurse-1", e.RecordedBy)
	assert.Equal(t, "patient-9", e.PatientRef)
	assert.Equal(t, "corr-1", e.CorrelationID)

	assert.ErrorIs(t, agg.Start("patient-9", t0, partogram.DefaultConfig(), audit), ErrAlreadyStarted)
}

func TestStartValidation(t *testing.T) {
	assert.ErrorIs(t, NewAggregate("r").Start("", t0, partogram.DefaultConfig(), audit), ErrInvalidCommand)
	assert.ErrorIs(t, NewAggregate("r").Start("p", time.Time{}, partogram.DefaultConfig(), audit), ErrInvalidCommand)

	cfg := partogram.DefaultConfig()
	cfg.AlertRateCmPerHour = 0
	assert.ErrorIs(t, NewAggregate("r").Start("p", t0, cfg, audit), partogram.ErrInvalidConfig)
}

func TestCommandsRequireStart(t *testing.T) {
	agg := NewAggregate("rec-1")

	_, err := agg.RecordObservation(partogram.Observation{Timestamp: t0, DilationCm: 4}, audit)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, agg.CorrectStartTime(t0, audit), ErrNotStarted)
	assert.ErrorIs(t, agg.CorrectObservationTime(0, t0, audit), ErrNotStarted)
	_, err = agg.Chart()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestRecordObservationKeepsOrder(t *testing.T) {
	agg := startedRecord(t)
	first := observe(t, agg, 3*time.Hour, 6)
	second := observe(t, agg, time.Hour, 4.5)

	obs := agg.Observations()
	require.Len(t, obs, 2)
	assert.Equal(t, second, obs[0].Sequence)
	assert.Equal(t, 1.0, obs[0].HoursFromStart)
	assert.Equal(t, first, obs[1].Sequence)
	assert.Equal(t, 3.0, obs[1].HoursFromStart)
}

func TestRecordObservationRejectsInvalidInput(t *testing.T) {
	agg := startedRecord(t)

	_, err := agg.RecordObservation(partogram.Observation{Timestamp: t0.Add(time.Hour), DilationCm: 11}, audit)
	assert.ErrorIs(t, err, partogram.ErrInvalidInputRange)

	_, err = agg.RecordObservation(partogram.Observation{Timestamp: t0.Add(-time.Hour), DilationCm: 4}, audit)
	assert.ErrorIs(t, err, partogram.ErrInvalidInputRange)

	assert.Equal(t, 1, agg.Version())
	assert.Empty(t, agg.Observations())
}

func TestActionLineCrossedRaisedOnce(t *testing.T) {
	agg := startedRecord(t)
	observe(t, agg, time.Hour, 4)
	assert.False(t, agg.CrossesActionLine())

	observe(t, agg, 5*time.Hour, 4)
	assert.True(t, agg.CrossesActionLine())

	observe(t, agg, 6*time.Hour, 5)

	assert.Equal(t, []EventType{
		EventLaborStarted,
		EventObservationRecorded,
		EventObservationRecorded,
		EventActionLineCrossed,
		EventObservationRecorded,
	}, eventTypes(agg.Changes()))
	assert.Equal(t, 1, agg.AlertCount())
	assert.Equal(t, 5, agg.Version())

	var data ActionLineCrossedData
	require.NoError(t, json.Unmarshal(agg.Changes()[3].EventData, &data))
	assert.Equal(t, "rec-1", data.RecordID)
	assert.Equal(t, "patient-9", data.PatientRef)
	assert.Equal(t, 5.0, data.HoursFromStart)
	assert.Equal(t, 4.0, data.DilationCm)
	assert.Equal(t, 7.0, data.ExpectedDilationCm)

	chart, err := agg.Chart()
	require.NoError(t, err)
	assert.True(t, chart.CrossesActionLine)
}

func TestCorrectStartTimeRecomputesCrossing(t *testing.T) {
	agg := startedRecord(t)
	observe(t, agg, 2*time.Hour, 4)
	observe(t, agg, 4*time.Hour, 5)
	require.True(t, agg.CrossesActionLine())
	require.Equal(t, 1, agg.AlertCount())

	require.NoError(t, agg.CorrectStartTime(t0.Add(time.Hour), audit))
	assert.False(t, agg.CrossesActionLine())
	obs := agg.Observations()
	assert.Equal(t, 1.0, obs[0].HoursFromStart)
	assert.Equal(t, 3.0, obs[1].HoursFromStart)

	require.NoError(t, agg.CorrectStartTime(t0, audit))
	assert.True(t, agg.CrossesActionLine())
	assert.Equal(t, 2, agg.AlertCount())
}

func TestCorrectStartTimeRejectsLaterStart(t *testing.T) {
	agg := startedRecord(t)
	observe(t, agg, 2*time.Hour, 4)
	version := agg.Version()

	err := agg.CorrectStartTime(t0.Add(3*time.Hour), audit)
	assert.ErrorIs(t, err, partogram.ErrInvalidInputRange)
	assert.Equal(t, version, agg.Version())
	assert.Equal(t, t0, agg.StartTime())
}

func TestCorrectObservationTimeResorts(t *testing.T) {
	agg := startedRecord(t)
	late := observe(t, agg, 3*time.Hour, 5)
	early := observe(t, agg, time.Hour, 3)
	require.False(t, agg.CrossesActionLine())

	require.NoError(t, agg.CorrectObservationTime(early, t0.Add(4*time.Hour), audit))

	obs := agg.Observations()
	assert.Equal(t, late, obs[0].Sequence)
	assert.Equal(t, early, obs[1].Sequence)
	assert.Equal(t, 4.0, obs[1].HoursFromStart)
	assert.True(t, agg.CrossesActionLine())

	assert.ErrorIs(t, agg.CorrectObservationTime(42, t0, audit), ErrObservationNotFound)
	assert.ErrorIs(t, agg.CorrectObservationTime(late, t0.Add(-time.Minute), audit), partogram.ErrInvalidInputRange)
}

func TestLoadFromHistoryRebuildsState(t *testing.T) {
	agg := startedRecord(t)
	observe(t, agg, 3*time.Hour, 5)
	observe(t, agg, 5*time.Hour, 4)
	require.NoError(t, agg.CorrectStartTime(t0.Add(-30*time.Minute), audit))

	rebuilt := NewAggregate("rec-1")
	require.NoError(t, rebuilt.LoadFromHistory(agg.Changes()))

	assert.Equal(t, agg.Version(), rebuilt.Version())
	assert.Equal(t, agg.StartTime(), rebuilt.StartTime())
	assert.Equal(t, agg.Observations(), rebuilt.Observations())
	assert.Equal(t, agg.CrossesActionLine(), rebuilt.CrossesActionLine())
	assert.Equal(t, agg.AlertCount(), rebuilt.AlertCount())
	assert.Empty(t, rebuilt.Changes())

	next, err := rebuilt.RecordObservation(partogram.Observation{Timestamp: t0.Add(6 * time.Hour), DilationCm: 6}, audit)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestLoadFromHistoryRejectsUnknownEvents(t *testing.T) {
	agg := NewAggregate("rec-1")
	err := agg.LoadFromHistory([]*Event{{EventType: "Bogus", EventData: json.RawMessage(`{}`)}})
	assert.Error(t, err)
}
