package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Workers:                 2,
		QueueSize:               4,
		MaxRetries:              2,
		RetryDelay:              time.Millisecond,
		GracefulShutdownTimeout: time.Second,
	}
}

func TestSubmitWait_Success(t *testing.T) {
	p, err := New(testConfig(), func(ctx context.Context, task *Task) *Result {
		return &Result{Success: true, Data: task.Payload.(int) * 2}
	}, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "a", Payload: 21})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "a", res.TaskID)
	assert.Equal(t, 42, res.Data)
	assert.Equal(t, 1, res.Attempts)
}

func TestSubmitWait_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	p, err := New(testConfig(), func(ctx context.Context, task *Task) *Result {
		if atomic.AddInt32(&calls, 1) < 3 {
			return &Result{Error: errors.New("temporary")}
		}
		return &Result{Success: true}
	}, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "b"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int64(2), p.Stats().TasksRetried)
}

func TestSubmitWait_ExhaustsRetries(t *testing.T) {
	cause := errors.New("down")
	p, err := New(testConfig(), func(ctx context.Context, task *Task) *Result {
		return &Result{Error: cause}
	}, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "c"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.ErrorIs(t, res.Error, cause)
	assert.Equal(t, int64(1), p.Stats().TasksFailed)
}

func TestSubmitWait_PermanentFailureIsNotRetried(t *testing.T) {
	var calls int32
	p, err := New(testConfig(), func(ctx context.Context, task *Task) *Result {
		atomic.AddInt32(&calls, 1)
		return &Result{Error: errors.New("rejected"), Permanent: true}
	}, nil)
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	res, err := p.SubmitWait(context.Background(), &Task{ID: "d"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.EqualError(t, res.Error, "rejected")
}

func TestSubmit_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 1
	p, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		return &Result{Success: true}
	}, nil)
	require.NoError(t, err)

	// workers not started, so the queue only fills
	require.NoError(t, p.Submit(&Task{ID: "1"}))
	assert.ErrorIs(t, p.Submit(&Task{ID: "2"}), ErrQueueFull)
	assert.True(t, p.Saturated())
}

func TestSubmit_AfterStop(t *testing.T) {
	p, err := New(testConfig(), func(ctx context.Context, task *Task) *Result {
		return &Result{Success: true}
	}, nil)
	require.NoError(t, err)
	p.Start()
	require.NoError(t, p.Stop())

	assert.ErrorIs(t, p.Submit(&Task{ID: "late"}), ErrStopped)
	assert.NoError(t, p.Stop(), "second stop is a no-op")
}

func TestSubmitWait_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	p, err := New(testConfig(), func(ctx context.Context, task *Task) *Result {
		<-release
		return &Result{Success: true}
	}, nil)
	require.NoError(t, err)
	p.Start()
	defer func() {
		close(release)
		p.Stop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.SubmitWait(ctx, &Task{ID: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_RequiresWorkerFunc(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil)
	assert.Error(t, err)
}
