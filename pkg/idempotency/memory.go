package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryInbox is a process-local Inbox for single-instance deployments and tests.
type MemoryInbox struct {
	mu      sync.Mutex
	entries map[string]*InboxEntry
}

// NewMemoryInbox creates an empty in-memory inbox
func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{entries: make(map[string]*InboxEntry)}
}

// Process has the same contract as Inbox.Process.
func (m *MemoryInbox) Process(ctx context.Context, key, handlerName string, payload json.RawMessage, fn ProcessFunc) (*ProcessResult, error) {
	m.mu.Lock()
	entry, seen := m.entries[key]
	if seen {
		switch entry.Status {
		case StatusFinished:
			result := entry.Result
			m.mu.Unlock()
			return &ProcessResult{Duplicate: true, Result: result}, nil
		case StatusFailed:
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrPreviouslyFailed, key)
		case StatusStarted:
			m.mu.Unlock()
			return nil, ErrMessageInProgress
		}
		entry.Status = StatusStarted
	} else {
		entry = &InboxEntry{Key: key, Handler: handlerName, Status: StatusStarted, Payload: payload}
		m.entries[key] = entry
	}
	m.mu.Unlock()

	result, err := fn(ctx, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		entry.Status = StatusRecoverable
		if IsTerminal(err) {
			entry.Status = StatusFailed
		}
		return nil, err
	}
	entry.Status = StatusFinished
	entry.Result = result
	return &ProcessResult{IsNew: !seen, WasRecovered: seen, Result: result}, nil
}

// Status returns the recorded status for key
func (m *MemoryInbox) Status(key string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false
	}
	return entry.Status, true
}
