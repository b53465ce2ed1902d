package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/api/handlers"
	"github.com/medassist/clinical-core/internal/classifier"
	"github.com/medassist/clinical-core/internal/domain/labor"
	"github.com/medassist/clinical-core/internal/observability/metrics"
	"github.com/medassist/clinical-core/internal/partogram"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	intent, err := classifier.NewIntentClassifier(classifier.DefaultIntentLexicon())
	require.NoError(t, err)
	score, err := classifier.NewScoreClassifier(classifier.DefaultScoreLexicon())
	require.NoError(t, err)
	engine, err := acidbase.NewEngine(acidbase.DefaultOptions())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	return NewRouter(RouterConfig{
		ServiceName: "clinical-api",
		APIKeys:     map[string]string{"k-1": "ward"},
		Engines:     handlers.NewEngineHandler(intent, score, engine, partogram.DefaultConfig(), m, nil),
		Labor:       handlers.NewLaborHandler(labor.NewMemoryStore(), nil, m, nil),
		Health:      handlers.NewHealthHandler("clinical-api", "test", nil),
		Metrics:     metrics.HandlerFor(reg),
		Recorder:    m,
	})
}

func serve(h http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ProbesWithoutAuth(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/ready", "", "").Code)
}

func TestRouter_APIRequiresKey(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodPost, "/api/v1/classify", `{"text":"oi"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(r, http.MethodPost, "/api/v1/classify", `{"text":"calcular curb-65 na pneumonia"}`, "k-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_EnginesAndLaborShareThePrefix(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, http.MethodPost, "/api/v1/partogram/chart", `{"observations":[]}`, "k-1")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodPost, "/api/v1/labor", `{"patientRef":"p-1","startTime":"2026-03-01T08:00:00Z"}`, "k-1")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(r, http.MethodGet, "/api/v1/labor/unknown", "", "k-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_MetricsExposeRequests(t *testing.T) {
	r := newTestRouter(t)
	serve(r, http.MethodPost, "/api/v1/bloodgas", `{"isArterial":true,"pH":7.2,"paCO2":30,"hco3":15}`, "k-1")

	rec := serve(r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/v1/bloodgas"`)
	assert.Contains(t, body, `disorder="metabolic_acidosis"`)
}
