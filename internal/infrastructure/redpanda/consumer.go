package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig holds configuration for the alert consumer
type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	// MaxPollRecords bounds one poll
	MaxPollRecords int
	FetchMaxBytes  int32
	// FromBeginning starts a new group at the oldest offset instead of the newest
	FromBeginning bool
	// DeadLetterTopic receives records whose handler failed; empty disables it
	DeadLetterTopic string
}

// DefaultConsumerConfig returns defaults for the alert dispatcher
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:           []string{"localhost:9092"},
		GroupID:           "alert-dispatcher",
		Topics:            []string{TopicLaborAlerts},
		SessionTimeout:    30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MaxPollRecords:    100,
		FetchMaxBytes:     1 << 20,
		FromBeginning:     true,
		DeadLetterTopic:   TopicDeadLetter,
	}
}

// Publisher sends raw records; the Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// MessageHandler is called for each consumed message
type MessageHandler func(ctx context.Context, msg *ConsumedMessage) error

// ConsumedMessage is a record as seen by a handler
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

func toMessage(record *kgo.Record) *ConsumedMessage {
	msg := &ConsumedMessage{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   make(map[string]string, len(record.Headers)),
		Timestamp: record.Timestamp,
	}
	for _, h := range record.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// Consumer reads alerts in partition order and commits manually. A record is
// committed once its handler succeeded or it was dead lettered; a partition
// stops advancing at the first record that could be neither.
type Consumer struct {
	client  *kgo.Client
	config  ConsumerConfig
	logger  *zap.Logger
	tracer  trace.Tracer
	handler MessageHandler
	dlq     Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handled      atomic.Int64
	failed       atomic.Int64
	deadLettered atomic.Int64
	lastCommit   atomic.Int64 // unix nanos
}

func consumerOpts(cfg ConsumerConfig, logger *zap.Logger) []kgo.Opt {
	reset := kgo.NewOffset().AtEnd()
	if cfg.FromBeginning {
		reset = kgo.NewOffset().AtStart()
	}
	return []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.FetchMaxBytes(cfg.FetchMaxBytes),
		kgo.FetchMaxPartitionBytes(cfg.FetchMaxBytes),
		kgo.ConsumeResetOffset(reset),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			logger.Info("partitions assigned", zap.Any("partitions", assigned))
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			logger.Info("partitions revoked", zap.Any("partitions", revoked))
		}),
	}
}

// NewConsumer creates a consumer; call Start to begin polling
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		return nil, errors.New("message handler is required")
	}

	client, err := kgo.NewClient(consumerOpts(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		client:  client,
		config:  cfg,
		logger:  logger,
		tracer:  otel.Tracer("redpanda-consumer"),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// WithDeadLetter routes records whose handler failed to the configured
// dead letter topic through pub, so the partition can move on.
func (c *Consumer) WithDeadLetter(pub Publisher) *Consumer {
	c.dlq = pub
	return c
}

// Start begins consuming messages
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.pollLoop()
}

// Stop waits for the in-flight poll to finish and closes the client
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	c.client.Close()
	return nil
}

func (c *Consumer) pollLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		fetches := c.client.PollRecords(c.ctx, c.config.MaxPollRecords)
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
		})

		var commit []*kgo.Record
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, record := range p.Records {
				if !c.process(record) {
					c.logger.Warn("partition blocked, record left uncommitted",
						zap.String("topic", record.Topic),
						zap.Int32("partition", record.Partition),
						zap.Int64("offset", record.Offset))
					return
				}
				commit = append(commit, record)
			}
		})
		if len(commit) == 0 {
			continue
		}

		// Commit on a fresh context so a shutdown mid-batch still records progress.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.client.CommitRecords(ctx, commit...); err != nil {
			c.logger.Error("offset commit failed", zap.Int("records", len(commit)), zap.Error(err))
		} else {
			c.lastCommit.Store(time.Now().UnixNano())
		}
		cancel()
	}
}

// process runs the handler for one record and reports whether it may be committed
func (c *Consumer) process(record *kgo.Record) bool {
	ctx := extractTraceContext(c.ctx, record)
	ctx, span := c.tracer.Start(ctx, "alerts.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", record.Topic),
			attribute.Int64("messaging.partition", int64(record.Partition)),
			attribute.Int64("messaging.offset", record.Offset),
		))
	defer span.End()

	err := c.handler(ctx, toMessage(record))
	if err == nil {
		c.handled.Add(1)
		return true
	}

	c.failed.Add(1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.logger.Error("alert handler failed",
		zap.String("key", string(record.Key)),
		zap.Int64("offset", record.Offset),
		zap.Error(err))
	return c.deadLetter(ctx, record, err)
}

// deadLetterEnvelope wraps a record whose handler failed
type deadLetterEnvelope struct {
	OriginalTopic string          `json:"originalTopic"`
	Partition     int32           `json:"partition"`
	Offset        int64           `json:"offset"`
	Key           string          `json:"key"`
	Payload       json.RawMessage `json:"payload"`
	Error         string          `json:"error"`
	FailedAt      time.Time       `json:"failedAt"`
}

func newDeadLetterEnvelope(record *kgo.Record, cause error, at time.Time) ([]byte, error) {
	payload := json.RawMessage(record.Value)
	if !json.Valid(record.Value) {
		quoted, err := json.Marshal(string(record.Value))
		if err != nil {
			return nil, err
		}
		payload = quoted
	}
	return json.Marshal(deadLetterEnvelope{
		OriginalTopic: record.Topic,
		Partition:     record.Partition,
		Offset:        record.Offset,
		Key:           string(record.Key),
		Payload:       payload,
		Error:         cause.Error(),
		FailedAt:      at.UTC(),
	})
}

func (c *Consumer) deadLetter(ctx context.Context, record *kgo.Record, cause error) bool {
	if c.dlq == nil || c.config.DeadLetterTopic == "" {
		return false
	}

	body, err := newDeadLetterEnvelope(record, cause, time.Now())
	if err != nil {
		c.logger.Error("dead letter encoding failed", zap.Error(err))
		return false
	}
	if err := c.dlq.Publish(ctx, c.config.DeadLetterTopic, string(record.Key), body); err != nil {
		c.logger.Error("failed to publish to dead letter", zap.Error(err))
		return false
	}
	c.deadLettered.Add(1)
	return true
}

// ConsumerStats holds consumer counters
type ConsumerStats struct {
	Handled      int64
	Failed       int64
	DeadLettered int64
	LastCommit   time.Time
}

// Stats returns the current counters
func (c *Consumer) Stats() ConsumerStats {
	s := ConsumerStats{
		Handled:      c.handled.Load(),
		Failed:       c.failed.Load(),
		DeadLettered: c.deadLettered.Load(),
	}
	if ns := c.lastCommit.Load(); ns > 0 {
		s.LastCommit = time.Unix(0, ns)
	}
	return s
}
