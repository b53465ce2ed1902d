package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medassist/clinical-core/internal/infrastructure/redpanda"
	"github.com/medassist/clinical-core/pkg/circuitbreaker"
	"github.com/medassist/clinical-core/pkg/idempotency"
	"github.com/medassist/clinical-core/pkg/workerpool"
)

// Delivery outcomes reported to the Recorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Inbox deduplicates deliveries; idempotency.Inbox and MemoryInbox implement it.
type Inbox interface {
	Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error)
}

// Recorder receives delivery metrics.
type Recorder interface {
	ObserveAlert(channel, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAlert(string, string, time.Duration) {}

// BreakerConfig returns the breaker template for notification channels.
// Terminal rejections say nothing about channel health and never trip it.
func BreakerConfig() circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || idempotency.IsTerminal(err)
	}
	return cfg
}

// Dispatcher fans each alert out to every notifier, at most once per channel.
type Dispatcher struct {
	inbox     Inbox
	breakers  *circuitbreaker.Manager
	notifiers []Notifier
	pool      *workerpool.Pool
	metrics   Recorder
	logger    *zap.Logger
	tracer    trace.Tracer
}

type delivery struct {
	alert    *Alert
	payload  json.RawMessage
	notifier Notifier
}

// NewDispatcher wires the dispatcher and its worker pool. Call Start before Handle.
func NewDispatcher(poolCfg workerpool.Config, inbox Inbox, breakers *circuitbreaker.Manager, notifiers []Notifier, metrics Recorder, logger *zap.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if inbox == nil {
		return nil, errors.New("alerting: inbox is required")
	}
	if len(notifiers) == 0 {
		return nil, errors.New("alerting: at least one notifier is required")
	}
	if breakers == nil {
		breakers = circuitbreaker.NewManager(BreakerConfig(), logger)
	}

	d := &Dispatcher{
		inbox:     inbox,
		breakers:  breakers,
		notifiers: notifiers,
		metrics:   metrics,
		logger:    logger,
		tracer:    otel.Tracer("alert-dispatcher"),
	}

	pool, err := workerpool.New(poolCfg, d.deliver, logger)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	d.pool = pool
	return d, nil
}

// Start launches the delivery workers
func (d *Dispatcher) Start() {
	d.pool.Start()
}

// Stop drains the delivery workers
func (d *Dispatcher) Stop() error {
	return d.pool.Stop()
}

// Stats exposes the worker pool counters
func (d *Dispatcher) Stats() workerpool.Stats {
	return d.pool.Stats()
}

// Saturated reports whether the delivery queue is close to full
func (d *Dispatcher) Saturated() bool {
	return d.pool.Saturated()
}

// Handle is a redpanda.MessageHandler. It returns once every channel has
// either delivered or failed, so the offset is committed only afterwards.
func (d *Dispatcher) Handle(ctx context.Context, msg *redpanda.ConsumedMessage) error {
	alert, err := DecodeAlert(msg.Value)
	if err != nil {
		return err
	}
	return d.Dispatch(ctx, alert, msg.Value)
}

// Dispatch delivers alert to every channel and joins the failures.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert, payload json.RawMessage) error {
	ctx, span := d.tracer.Start(ctx, "dispatch_alert",
		trace.WithAttributes(
			attribute.String("event_id", alert.EventID),
			attribute.String("record_id", alert.RecordID),
		))
	defer span.End()

	var errs []error
	for _, n := range d.notifiers {
		res, err := d.pool.SubmitWait(ctx, &workerpool.Task{
			ID:      idempotency.GenerateKey(alert.EventID, n.Channel()),
			Payload: &delivery{alert: alert, payload: payload, notifier: n},
			Context: ctx,
		})
		if err == nil && !res.Success {
			err = res.Error
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Channel(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	dl := task.Payload.(*delivery)
	channel := dl.notifier.Channel()
	start := time.Now()

	breaker, err := d.breakers.GetOrCreate(channel)
	if err != nil {
		return &workerpool.Result{TaskID: task.ID, Error: err, Permanent: true}
	}

	res, err := d.inbox.Process(ctx, task.ID, "alert."+channel, dl.payload,
		func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
			err := breaker.Execute(ctx, func(ctx context.Context) error {
				return dl.notifier.Notify(ctx, dl.alert)
			})
			if err != nil {
				return nil, err
			}
			return json.Marshal(map[string]interface{}{
				"channel":      channel,
				"delivered_at": time.Now().UTC(),
			})
		})

	switch {
	case err == nil && res.Duplicate:
		d.metrics.ObserveAlert(channel, OutcomeDuplicate, time.Since(start))
		d.logger.Debug("alert already delivered",
			zap.String("event_id", dl.alert.EventID), zap.String("channel", channel))
		return &workerpool.Result{TaskID: task.ID, Success: true}
	case err == nil:
		d.metrics.ObserveAlert(channel, OutcomeDelivered, time.Since(start))
		d.logger.Info("alert delivered",
			zap.String("event_id", dl.alert.EventID),
			zap.String("record_id", dl.alert.RecordID),
			zap.String("channel", channel))
		return &workerpool.Result{TaskID: task.ID, Success: true, Data: res.Result}
	case idempotency.IsTerminal(err) || errors.Is(err, idempotency.ErrPreviouslyFailed):
		d.metrics.ObserveAlert(channel, OutcomeRejected, time.Since(start))
		return &workerpool.Result{TaskID: task.ID, Error: err, Permanent: true}
	default:
		d.metrics.ObserveAlert(channel, OutcomeFailed, time.Since(start))
		return &workerpool.Result{TaskID: task.ID, Error: err}
	}
}
