package notification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/config"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var gotPayload Event
	var gotSignature string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotSignature = r.Header.Get("X-DraftForge-Signature")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = body
		require.NoError(t, json.Unmarshal(body, &gotPayload))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.NotifierConfig{
		Type:   config.NotificationChannelWebhook,
		URL:    server.URL,
		Secret: "s3cret",
	})

	event := &Event{
		Type:         EventJobFailed,
		JobID:        "job-1",
		DocumentID:   "doc-1",
		DocumentName: "draft.docx",
		Mode:         "replace",
		Completed:    1,
		Failed:       1,
		Total:        2,
		ErrorMessage: "llm endpoint returned status 503",
		Timestamp:    time.Now(),
	}
	require.NoError(t, n.Send(context.Background(), event))

	assert.Equal(t, EventJobFailed, gotPayload.Type)
	assert.Equal(t, "job-1", gotPayload.JobID)
	assert.Equal(t, "draft.docx", gotPayload.DocumentName)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, gotSignature)
}

func TestWebhookNotifier_NoSignatureWithoutSecret(t *testing.T) {
	var gotSignature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-DraftForge-Signature")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.NotifierConfig{URL: server.URL})
	require.NoError(t, n.Send(context.Background(), &Event{Type: EventJobCompleted, JobID: "job-2"}))
	assert.Empty(t, gotSignature)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(config.NotifierConfig{URL: server.URL})
	err := n.Send(context.Background(), &Event{Type: EventJobCompleted, JobID: "job-3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-success status: 500")
}

func TestWebhookNotifier_MissingURL(t *testing.T) {
	n := NewWebhookNotifier(config.NotifierConfig{})
	err := n.Send(context.Background(), &Event{Type: EventJobCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
