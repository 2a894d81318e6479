package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/pkg/errors"
)

func TestComplete_ChatShape(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"generated text"}}],"usage":{"total_tokens":42}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	result, err := c.Complete(context.Background(), CompletionRequest{
		Model:       "gpt-test",
		Prompt:      "write something",
		Temperature: 0.5,
		MaxTokens:   256,
		Collections: []string{"kb-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated text", result.Content)
	assert.Equal(t, 42, result.TokensUsed)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "write something", got.Messages[0].Content)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Equal(t, 256, got.MaxTokens)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "collection", got.Files[0].Type)
	assert.Equal(t, "kb-1", got.Files[0].ID)
}

func TestComplete_FallbackShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"fallback text"}`))
	}))
	defer srv.Close()

	result, err := New(Config{BaseURL: srv.URL}).Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "fallback text", result.Content)
	assert.Zero(t, result.TokensUsed, "fallback shape carries no usage")
}

func TestComplete_UnknownShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeLLMBadResponse, appErr.Code)
}

func TestComplete_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, errors.ErrCodeLLMBadResponse, appErr.Code)
}

func TestComplete_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeLLMUpstream, appErr.Code)
	assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatus())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr, "upstream status must be preserved")
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "model overloaded")
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeLLMTimeout, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus())
}

func TestComplete_NotConfigured(t *testing.T) {
	_, err := New(Config{}).Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	appErr, _ := errors.AsAppError(err)
	assert.Equal(t, errors.ErrCodeLLMNotConfigured, appErr.Code)
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		w.Write([]byte(`{"data":[{"id":"m1","name":"Model One"},{"id":"m2","name":"Model Two"}]}`))
	}))
	defer srv.Close()

	models, err := New(Config{BaseURL: srv.URL}).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "m1", models[0].ID)
	assert.Equal(t, "Model Two", models[1].Name)
}

func TestListCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/knowledge/list", r.URL.Path)
		w.Write([]byte(`[{"id":"c1","name":"Standards","description":"house style"}]`))
	}))
	defer srv.Close()

	cols, err := New(Config{BaseURL: srv.URL}).ListCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "c1", cols[0].ID)
	assert.Equal(t, "Standards", cols[0].Name)
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL + "/"}).ListModels(context.Background())
	require.NoError(t, err)
}
