package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/acidbase"
	"github.com/medassist/clinical-core/internal/classifier"
	"github.com/medassist/clinical-core/internal/fhir/mapper"
	fhir "github.com/medassist/clinical-core/internal/fhir/r5"
	"github.com/medassist/clinical-core/internal/partogram"
)

// Engine names used in metrics labels.
const (
	engineAcidBase  = "acidbase"
	enginePartogram = "partogram"
)

// TextClassifier routes free text to a lexicon entry.
type TextClassifier interface {
	Classify(text string) classifier.Result
}

// BloodGasInterpreter reads one blood gas sample.
type BloodGasInterpreter interface {
	Interpret(s acidbase.Sample) (*acidbase.Interpretation, error)
}

// EngineRecorder receives engine metrics.
type EngineRecorder interface {
	ObserveClassification(policy, category string, d time.Duration)
	ObserveInterpretation(sampleType, disorder string, d time.Duration)
	ObserveChart(crossesActionLine bool, d time.Duration)
	ObserveValidationError(engine, field string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveClassification(string, string, time.Duration) {}
func (nopRecorder) ObserveInterpretation(string, string, time.Duration) {}
func (nopRecorder) ObserveChart(bool, time.Duration)                    {}
func (nopRecorder) ObserveValidationError(string, string)               {}

// EngineHandler exposes the stateless engines.
type EngineHandler struct {
	intent    TextClassifier
	score     TextClassifier
	bloodGas  BloodGasInterpreter
	partogram partogram.Config
	metrics   EngineRecorder
	logger    *zap.Logger
}

// NewEngineHandler creates a new handler. chartCfg is used when a chart
// request carries no config of its own.
func NewEngineHandler(intent, score TextClassifier, bloodGas BloodGasInterpreter, chartCfg partogram.Config, metrics EngineRecorder, logger *zap.Logger) *EngineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &EngineHandler{
		intent:    intent,
		score:     score,
		bloodGas:  bloodGas,
		partogram: chartCfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// RegisterRoutes adds the engine routes to r. They share their prefix with
// other resources, so they are registered rather than mounted.
func (h *EngineHandler) RegisterRoutes(r chi.Router) {
	r.Post("/classify", h.ClassifyIntent)
	r.Post("/classify/score", h.ClassifyScore)
	r.Post("/bloodgas", h.InterpretBloodGas)
	r.Post("/partogram/chart", h.ComputeChart)
}

// ClassifyRequest is the request body of both classify routes.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyIntent handles POST /classify
func (h *EngineHandler) ClassifyIntent(w http.ResponseWriter, r *http.Request) {
	h.classify(w, r, h.intent, "classify_intent")
}

// ClassifyScore handles POST /classify/score
func (h *EngineHandler) ClassifyScore(w http.ResponseWriter, r *http.Request) {
	h.classify(w, r, h.score, "classify_score")
}

func (h *EngineHandler) classify(w http.ResponseWriter, r *http.Request, c TextClassifier, spanName string) {
	_, span := otel.Tracer("engine-handler").Start(r.Context(), spanName)
	defer span.End()

	var req ClassifyRequest
	if err := decode(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	res := c.Classify(req.Text)
	h.metrics.ObserveClassification(res.Policy, string(res.Category), time.Since(start))

	span.SetAttributes(
		attribute.String("classifier.policy", res.Policy),
		attribute.String("classifier.category", string(res.Category)),
		attribute.String("classifier.slug", res.Slug),
	)
	writeJSON(w, http.StatusOK, res)
}

// BloodGasRequest is a sample plus optional export context.
type BloodGasRequest struct {
	acidbase.Sample
	PatientRef  string     `json:"patientRef,omitempty"`
	CollectedAt *time.Time `json:"collectedAt,omitempty"`
}

// InterpretBloodGas handles POST /bloodgas. ?format=fhir returns a Bundle.
func (h *EngineHandler) InterpretBloodGas(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("engine-handler").Start(r.Context(), "interpret_blood_gas")
	defer span.End()

	var req BloodGasRequest
	if err := decode(w, r, &req); err != nil {
		fhirError(w, r, "invalid request body", http.StatusBadRequest, fhir.IssueInvalid)
		return
	}

	start := time.Now()
	in, err := h.bloodGas.Interpret(req.Sample)
	if err != nil {
		if errors.Is(err, acidbase.ErrInvalidInputRange) {
			field, _ := invalidField(err)
			h.metrics.ObserveValidationError(engineAcidBase, field)
			validationError(w, r, err)
			return
		}
		h.logger.Error("blood gas interpretation failed", zap.Error(err))
		fhirError(w, r, "failed to interpret sample", http.StatusInternalServerError, fhir.IssueException)
		return
	}

	disorder := ""
	if in.PrimaryDisorder != nil {
		disorder = string(*in.PrimaryDisorder)
	}
	h.metrics.ObserveInterpretation(string(in.SampleType), disorder, time.Since(start))
	span.SetAttributes(
		attribute.String("acidbase.sample_type", string(in.SampleType)),
		attribute.String("acidbase.disorder", disorder),
		attribute.Bool("acidbase.estimated_from_venous", in.EstimatedFromVenous),
	)

	if wantsFHIR(r) {
		opts := mapper.Options{PatientRef: req.PatientRef}
		if req.CollectedAt != nil {
			opts.Effective = *req.CollectedAt
		}
		writeFHIR(w, http.StatusOK, mapper.BloodGasBundle(in, opts))
		return
	}
	writeJSON(w, http.StatusOK, in)
}

// ChartRequest carries a stateless chart computation. With StartTime set,
// hours are recomputed from observation timestamps; otherwise each
// observation's hoursFromStart is used as given.
type ChartRequest struct {
	StartTime    *time.Time              `json:"startTime,omitempty"`
	Observations []partogram.Observation `json:"observations"`
	Config       *partogram.Config       `json:"config,omitempty"`
	PatientRef   string                  `json:"patientRef,omitempty"`
}

// ComputeChart handles POST /partogram/chart. ?format=fhir returns a Bundle.
func (h *EngineHandler) ComputeChart(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("engine-handler").Start(r.Context(), "compute_chart")
	defer span.End()

	var req ChartRequest
	if err := decode(w, r, &req); err != nil {
		fhirError(w, r, "invalid request body", http.StatusBadRequest, fhir.IssueInvalid)
		return
	}

	cfg := h.partogram
	if req.Config != nil {
		cfg = *req.Config
	}
	obs := req.Observations
	if req.StartTime != nil {
		obs = partogram.PrepareObservations(*req.StartTime, obs)
	}

	start := time.Now()
	series, err := partogram.ComputeChartSeries(obs, cfg)
	if err != nil {
		field, _ := invalidField(err)
		h.metrics.ObserveValidationError(enginePartogram, field)
		validationError(w, r, err)
		return
	}
	h.metrics.ObserveChart(series.CrossesActionLine, time.Since(start))
	span.SetAttributes(
		attribute.Int("partogram.observations", len(series.Observed)),
		attribute.Bool("partogram.crosses_action_line", series.CrossesActionLine),
	)

	if wantsFHIR(r) {
		opts := mapper.Options{PatientRef: req.PatientRef}
		if req.StartTime != nil {
			opts.Effective = *req.StartTime
		}
		writeFHIR(w, http.StatusOK, mapper.PartogramBundle(series, cfg, opts))
		return
	}
	writeJSON(w, http.StatusOK, series)
}
