package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/classifier"
	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
	"github.com/medassist/clinical-core/internal/partogram"
)

type fakeClassifier struct {
	result classifier.Result
	texts  []string
}

func (f *fakeClassifier) Classify(text string) classifier.Result {
	f.texts = append(f.texts, text)
	return f.result
}

type fakeRecorder struct {
	mu               sync.Mutex
	classifications  []string
	interpretations  []string
	charts           []bool
	validationErrors []string
}

func (f *fakeRecorder) ObserveClassification(policy, category string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classifications = append(f.classifications, policy+"/"+category)
}

func (f *fakeRecorder) ObserveInterpretation(sampleType, disorder string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interpretations = append(f.interpretations, sampleType+"/"+disorder)
}

func (f *fakeRecorder) ObserveChart(crosses bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charts = append(f.charts, crosses)
}

func (f *fakeRecorder) ObserveValidationError(engine, field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validationErrors = append(f.validationErrors, engine+"/"+field)
}

type engineFixture struct {
	router  http.Handler
	intent  *fakeClassifier
	score   *fakeClassifier
	metrics *fakeRecorder
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	engine, err := acidbase.NewEngine(acidbase.DefaultOptions())
	require.NoError(t, err)

	f := &engineFixture{
		intent: &fakeClassifier{result: classifier.Result{
			Category: classifier.CategoryCalculator, Slug: "curb-65", Confidence: 17, Policy: "weighted_sum",
		}},
		score: &fakeClassifier{result: classifier.Result{
			Category: classifier.CategoryUnknown, Policy: "context_match",
		}},
		metrics: &fakeRecorder{},
	}
	h := NewEngineHandler(f.intent, f.score, engine, partogram.DefaultConfig(), f.metrics, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	f.router = r
	return f
}

func (f *engineFixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestClassify(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/classify", `{"text":"calcular CURB-65"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res classifier.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "curb-65", res.Slug)
	assert.Equal(t, []string{"calcular CURB-65"}, f.intent.texts)
	assert.Empty(t, f.score.texts)

	rec = f.post(t, "/classify/score", `{"text":"nada"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, classifier.CategoryUnknown, res.Category)

	assert.Equal(t, []string{"weighted_sum/calculator", "context_match/unknown"}, f.metrics.classifications)
}

func TestClassify_InvalidBody(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/classify", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
	assert.Empty(t, f.intent.texts)
}

func TestInterpretBloodGas(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/bloodgas", `{"isArterial":true,"pH":7.2,"paCO2":30,"hco3":15,"na":140,"cl":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))

	var in acidbase.Interpretation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &in))
	require.NotNil(t, in.PrimaryDisorder)
	assert.Equal(t, acidbase.DisorderMetabolicAcidosis, *in.PrimaryDisorder)
	require.NotNil(t, in.AnionGap)
	assert.Equal(t, 25.0, *in.AnionGap)
	assert.NotEmpty(t, in.Narrative)

	assert.Equal(t, []string{"arterial/metabolic_acidosis"}, f.metrics.interpretations)
}

func TestInterpretBloodGas_FHIR(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/bloodgas?format=fhir",
		`{"isArterial":true,"pH":7.2,"paCO2":30,"hco3":15,"patientRef":"p-9","collectedAt":"2026-03-01T08:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeFHIR, rec.Header().Get("Content-Type"))

	var bundle map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "Bundle", bundle["resourceType"])
	entries := bundle["entry"].([]interface{})
	first := entries[0].(map[string]interface{})["resource"].(map[string]interface{})
	assert.Equal(t, "Observation", first["resourceType"])
	assert.Equal(t, "Patient/p-9", first["subject"].(map[string]interface{})["reference"])
}

func TestInterpretBloodGas_ValidationError(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/bloodgas", `{"isArterial":true,"pH":7.4,"fiO2":40}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fiO2", body.Field)
	assert.NotEmpty(t, body.Error)

	rec = f.post(t, "/bloodgas?format=fhir", `{"isArterial":true,"pH":9.1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var outcome fhir.OperationOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, "OperationOutcome", outcome.ResourceType)
	assert.Equal(t, []string{"pH"}, outcome.Issue[0].Expression)

	assert.Equal(t, []string{"acidbase/fiO2", "acidbase/pH"}, f.metrics.validationErrors)
	assert.Empty(t, f.metrics.interpretations)
}

func TestInterpretBloodGas_EmptySample(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/bloodgas", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var in acidbase.Interpretation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &in))
	assert.Nil(t, in.PrimaryDisorder)
	assert.NotEmpty(t, in.Missing)
}

func TestComputeChart(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/partogram/chart",
		`{"observations":[{"hoursFromStart":5,"dilationCm":4},{"hoursFromStart":1,"dilationCm":4}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var series partogram.ChartSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.True(t, series.CrossesActionLine)
	assert.Equal(t, []partogram.Point{{Hour: 1, Dilation: 4}, {Hour: 5, Dilation: 4}}, series.Observed)
	assert.Equal(t, []partogram.Point{{Hour: 5, Dilation: 4}}, series.ActionLineCrossings)
	assert.Equal(t, []bool{true}, f.metrics.charts)
}

func TestComputeChart_FromTimestamps(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/partogram/chart", `{
		"startTime":"2026-03-01T08:00:00Z",
		"observations":[{"timestamp":"2026-03-01T10:30:00Z","dilationCm":7}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var series partogram.ChartSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, []partogram.Point{{Hour: 2.5, Dilation: 7}}, series.Observed)
	assert.False(t, series.CrossesActionLine)
}

func TestComputeChart_Errors(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/partogram/chart", `{"observations":[{"hoursFromStart":1,"dilationCm":11}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dilationCm", body.Field)

	rec = f.post(t, "/partogram/chart",
		`{"observations":[],"config":{"alertDilationStartCm":4,"alertRateCmPerHour":0,"actionOffsetHours":2}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "config", body.Field)

	assert.Equal(t, []string{"partogram/dilationCm", "partogram/config"}, f.metrics.validationErrors)
}

func TestComputeChart_FHIR(t *testing.T) {
	f := newEngineFixture(t)

	rec := f.post(t, "/partogram/chart?format=fhir", `{"observations":[{"hoursFromStart":2,"dilationCm":6}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var bundle fhir.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, "collection", bundle.Type)
	assert.Len(t, bundle.Entry, 4)
}
