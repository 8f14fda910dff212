package limits

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/rbac"
)

func TestFormatSlackMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	qe := &QuotaExceededError{
		Kind:      KindRules,
		Limit:     1,
		Current:   1,
		Requested: 1,
		Resource:  &rbac.ResourceRef{Type: rbac.ResourceCollection, ID: "col-1"},
	}

	msg := FormatSlackMessage("org-1", qe, at)
	assert.Equal(t, "Organization org-1 exceeded its rules limit", msg.Text)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, at.Unix(), msg.Attachments[0].Ts)

	fields := msg.Attachments[0].Fields
	require.Len(t, fields, 5)
	assert.Equal(t, "2", fields[3].Value)
	assert.Equal(t, "collection:col-1", fields[4].Value)
}

func TestWebhookNotifier(t *testing.T) {
	var got SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, server.Client())
	err := notifier.NotifyLimitsExceeded(context.Background(), "org-1", &QuotaExceededError{Kind: KindProjects, Limit: 1, Current: 1, Requested: 1})
	require.NoError(t, err)
	assert.Equal(t, "Organization org-1 exceeded its projects limit", got.Text)
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, nil)
	err := notifier.NotifyLimitsExceeded(context.Background(), "org-1", &QuotaExceededError{Kind: KindProjects})
	assert.EqualError(t, err, "request returned non-2xx status: 502")
}
