package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/clinical-core/pkg/idempotency"
)

func TestWebhookNotifier(t *testing.T) {
	var got Alert
	var key, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	}, srv.Client())
	require.NoError(t, err)
	assert.Contains(t, n.Channel(), "webhook:127.0.0.1")

	err = n.Notify(context.Background(), &Alert{EventID: "evt-1", RecordID: "rec-1"})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", key)
	assert.Equal(t, "Bearer token", auth)
	assert.Equal(t, "rec-1", got.RecordID)
}

func TestWebhookNotifierStatusHandling(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantErr  bool
		terminal bool
	}{
		{"ok", http.StatusOK, false, false},
		{"bad request", http.StatusBadRequest, true, true},
		{"gone", http.StatusGone, true, true},
		{"throttled", http.StatusTooManyRequests, true, false},
		{"server error", http.StatusBadGateway, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL}, srv.Client())
			require.NoError(t, err)

			err = n.Notify(context.Background(), &Alert{EventID: "evt"})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.terminal, idempotency.IsTerminal(err))
			if tt.terminal {
				assert.ErrorIs(t, err, ErrRejected)
			}
		})
	}
}

func TestNewWebhookNotifierRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host/x", "http://", "::"} {
		_, err := NewWebhookNotifier(WebhookConfig{URL: raw}, nil)
		assert.Error(t, err, raw)
	}
}
