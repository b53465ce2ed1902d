package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/api/middleware"
	"github.com/medassist/clinical-core/internal/domain/labor"
	"github.com/medassist/clinical-core/internal/fhir/mapper"
	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
	"github.com/medassist/clinical-core/internal/partogram"
)

// ChartCache stores computed charts per record version.
type ChartCache interface {
	Get(ctx context.Context, recordID string, version int) (*partogram.ChartSeries, bool)
	Set(ctx context.Context, recordID string, version int, series *partogram.ChartSeries)
}

// LaborHandler handles labor record endpoints
type LaborHandler struct {
	store   labor.Store
	cache   ChartCache
	metrics EngineRecorder
	logger  *zap.Logger
}

// NewLaborHandler creates a new handler. cache may be nil.
func NewLaborHandler(store labor.Store, cache ChartCache, metrics EngineRecorder, logger *zap.Logger) *LaborHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &LaborHandler{store: store, cache: cache, metrics: metrics, logger: logger}
}

// Routes returns the handler routes
func (h *LaborHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/events", h.GetEvents)
	r.Get("/{id}/chart", h.GetChart)
	r.Post("/{id}/observations", h.RecordObservation)
	r.Put("/{id}/start-time", h.CorrectStartTime)
	r.Put("/{id}/observations/{seq}/timestamp", h.CorrectObservationTime)
	return r
}

// CreateRequest is the request body for opening a labor record
type CreateRequest struct {
	PatientRef string            `json:"patientRef"`
	StartTime  time.Time         `json:"startTime"`
	Config     *partogram.Config `json:"config,omitempty"`
}

// RecordResponse describes a labor record
type RecordResponse struct {
	ID                string              `json:"id"`
	Status            labor.Status        `json:"status"`
	Version           int                 `json:"version"`
	PatientRef        string              `json:"patientRef"`
	StartTime         time.Time           `json:"startTime"`
	Config            partogram.Config    `json:"config"`
	Observations      []labor.Observation `json:"observations"`
	CrossesActionLine bool                `json:"crossesActionLine"`
	AlertCount        int                 `json:"alertCount"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func recordResponse(agg *labor.Aggregate) RecordResponse {
	return RecordResponse{
		ID:                agg.ID(),
		Status:            agg.Status(),
		Version:           agg.Version(),
		PatientRef:        agg.PatientRef(),
		StartTime:         agg.StartTime(),
		Config:            agg.Config(),
		Observations:      agg.Observations(),
		CrossesActionLine: agg.CrossesActionLine(),
		AlertCount:        agg.AlertCount(),
		UpdatedAt:         agg.UpdatedAt(),
	}
}

// Create handles POST /labor
func (h *LaborHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("labor-handler").Start(r.Context(), "create_labor_record")
	defer span.End()

	var req CreateRequest
	if err := decode(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg := partogram.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}

	id := uuid.New().String()
	span.SetAttributes(attribute.String("labor.record_id", id))

	agg := labor.NewAggregate(id)
	if err := agg.Start(req.PatientRef, req.StartTime, cfg, auditFrom(r)); err != nil {
		h.domainError(w, r, err)
		return
	}
	if err := h.store.Save(ctx, agg); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.logger.Info("labor record opened",
		zap.String("record_id", id),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)
	writeJSON(w, http.StatusCreated, recordResponse(agg))
}

// Get handles GET /labor/{id}
func (h *LaborHandler) Get(w http.ResponseWriter, r *http.Request) {
	agg, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(agg))
}

// GetEvents handles GET /labor/{id}/events
func (h *LaborHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := h.store.GetEvents(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get events", zap.String("record_id", id), zap.Error(err))
		jsonError(w, "failed to get events", http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		jsonError(w, "labor record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ObservationRequest is the request body for recording an assessment
type ObservationRequest struct {
	Timestamp      time.Time `json:"timestamp"`
	DilationCm     float64   `json:"dilationCm"`
	Station        *int      `json:"station,omitempty"`
	FetalHeartRate *int      `json:"fetalHeartRate,omitempty"`
	BloodPressure  string    `json:"bloodPressure,omitempty"`
	Notes          string    `json:"notes,omitempty"`
}

// ObservationResponse is the response for a recorded assessment
type ObservationResponse struct {
	Sequence          int  `json:"sequence"`
	Version           int  `json:"version"`
	CrossesActionLine bool `json:"crossesActionLine"`
	AlertCount        int  `json:"alertCount"`
}

// RecordObservation handles POST /labor/{id}/observations
func (h *LaborHandler) RecordObservation(w http.ResponseWriter, r *http.Request) {
	var req ObservationRequest
	if err := decode(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var seq int
	agg, ok := h.mutate(w, r, "record_observation", func(agg *labor.Aggregate) error {
		var err error
		seq, err = agg.RecordObservation(partogram.Observation{
			Timestamp:      req.Timestamp,
			DilationCm:     req.DilationCm,
			Station:        req.Station,
			FetalHeartRate: req.FetalHeartRate,
			BloodPressure:  req.BloodPressure,
			Notes:          req.Notes,
		}, auditFrom(r))
		return err
	})
	if !ok {
		return
	}

	writeJSON(w, http.StatusCreated, ObservationResponse{
		Sequence:          seq,
		Version:           agg.Version(),
		CrossesActionLine: agg.CrossesActionLine(),
		AlertCount:        agg.AlertCount(),
	})
}

// TimeRequest is the request body of both time corrections
type TimeRequest struct {
	StartTime time.Time `json:"startTime,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// CorrectStartTime handles PUT /labor/{id}/start-time
func (h *LaborHandler) CorrectStartTime(w http.ResponseWriter, r *http.Request) {
	var req TimeRequest
	if err := decode(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	agg, ok := h.mutate(w, r, "correct_start_time", func(agg *labor.Aggregate) error {
		return agg.CorrectStartTime(req.StartTime, auditFrom(r))
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(agg))
}

// CorrectObservationTime handles PUT /labor/{id}/observations/{seq}/timestamp
func (h *LaborHandler) CorrectObservationTime(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil {
		jsonError(w, "invalid observation sequence", http.StatusBadRequest)
		return
	}
	var req TimeRequest
	if err := decode(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	agg, ok := h.mutate(w, r, "correct_observation_time", func(agg *labor.Aggregate) error {
		return agg.CorrectObservationTime(seq, req.Timestamp, auditFrom(r))
	})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(agg))
}

// GetChart handles GET /labor/{id}/chart. ?format=fhir returns a Bundle.
func (h *LaborHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("labor-handler").Start(r.Context(), "get_labor_chart")
	defer span.End()

	agg, ok := h.load(w, r)
	if !ok {
		return
	}

	series, cached := h.cachedChart(ctx, agg)
	if !cached {
		start := time.Now()
		var err error
		series, err = agg.Chart()
		if err != nil {
			h.domainError(w, r, err)
			return
		}
		h.metrics.ObserveChart(series.CrossesActionLine, time.Since(start))
		if h.cache != nil {
			h.cache.Set(ctx, agg.ID(), agg.Version(), series)
		}
	}
	span.SetAttributes(
		attribute.String("labor.record_id", agg.ID()),
		attribute.Bool("labor.chart_cached", cached),
	)

	if wantsFHIR(r) {
		writeFHIR(w, http.StatusOK, mapper.PartogramBundle(series, agg.Config(), mapper.Options{
			PatientRef: agg.PatientRef(),
			Effective:  agg.StartTime(),
		}))
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (h *LaborHandler) cachedChart(ctx context.Context, agg *labor.Aggregate) (*partogram.ChartSeries, bool) {
	if h.cache == nil {
		return nil, false
	}
	return h.cache.Get(ctx, agg.ID(), agg.Version())
}

func (h *LaborHandler) load(w http.ResponseWriter, r *http.Request) (*labor.Aggregate, bool) {
	agg, err := h.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.domainError(w, r, err)
		return nil, false
	}
	return agg, true
}

// mutate loads the record, applies cmd and saves the resulting events.
func (h *LaborHandler) mutate(w http.ResponseWriter, r *http.Request, spanName string, cmd func(*labor.Aggregate) error) (*labor.Aggregate, bool) {
	ctx, span := otel.Tracer("labor-handler").Start(r.Context(), spanName)
	defer span.End()

	agg, ok := h.load(w, r)
	if !ok {
		return nil, false
	}
	span.SetAttributes(attribute.String("labor.record_id", agg.ID()))

	if err := cmd(agg); err != nil {
		h.domainError(w, r, err)
		return nil, false
	}
	if err := h.store.Save(ctx, agg); err != nil {
		h.domainError(w, r, err)
		return nil, false
	}
	return agg, true
}

// domainError maps aggregate and store errors onto HTTP statuses.
func (h *LaborHandler) domainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, labor.ErrRecordNotFound):
		fhirError(w, r, "labor record not found", http.StatusNotFound, fhir.IssueNotFound)
	case errors.Is(err, labor.ErrObservationNotFound):
		fhirError(w, r, err.Error(), http.StatusNotFound, fhir.IssueNotFound)
	case errors.Is(err, labor.ErrVersionConflict),
		errors.Is(err, labor.ErrAlreadyStarted),
		errors.Is(err, labor.ErrNotStarted):
		fhirError(w, r, err.Error(), http.StatusConflict, fhir.IssueConflict)
	case errors.Is(err, labor.ErrInvalidCommand):
		fhirError(w, r, err.Error(), http.StatusBadRequest, fhir.IssueInvalid)
	case errors.Is(err, partogram.ErrInvalidInputRange), errors.Is(err, partogram.ErrInvalidConfig):
		field, _ := invalidField(err)
		h.metrics.ObserveValidationError(enginePartogram, field)
		validationError(w, r, err)
	default:
		h.logger.Error("labor record operation failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		fhirError(w, r, "internal error", http.StatusInternalServerError, fhir.IssueException)
	}
}

func auditFrom(r *http.Request) labor.Audit {
	return labor.Audit{
		RecordedBy:    middleware.GetClientID(r.Context()),
		CorrelationID: middleware.GetRequestID(r.Context()),
	}
}
