// Package llm implements the HTTP client for the chat-completions
// endpoint that performs section generation. The client is stateless and
// never retries; retry policy belongs to the caller.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draftforge/draftforge/pkg/errors"
	"github.com/draftforge/draftforge/pkg/logger"
)

// DefaultTimeout bounds a single completion request
const DefaultTimeout = 300 * time.Second

// Config carries the connection settings for one upstream endpoint
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CompletionRequest describes one generation call
type CompletionRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// Collections holds knowledge collection IDs attached as files
	Collections []string
}

// CompletionResult is the extracted generation outcome
type CompletionResult struct {
	Content    string
	TokensUsed int
}

// ModelInfo describes one model offered by the upstream endpoint
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CollectionInfo describes one knowledge collection on the upstream endpoint
type CollectionInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Client talks to an OpenAI-compatible chat-completions endpoint
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// New creates a client for the given endpoint configuration
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// Wire types for the chat-completions contract

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFile struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Files       []chatFile    `json:"files,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	// Response is the fallback shape some endpoints return
	Response *string `json:"response"`
}

// Complete performs one chat-completions call and extracts the generated
// text. Timeouts map to ErrCodeLLMTimeout, transport failures and non-2xx
// statuses to ErrCodeLLMUpstream, and unrecognized bodies to
// ErrCodeLLMBadResponse.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	if c.baseURL == "" {
		return nil, errors.New(errors.ErrCodeLLMNotConfigured, "no LLM base URL configured")
	}

	payload := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Stream:      false,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, id := range req.Collections {
		payload.Files = append(payload.Files, chatFile{Type: "collection", ID: id})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to encode completion request", err)
	}

	start := time.Now()
	status, respBody, err := c.do(ctx, http.MethodPost, "/api/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		apiErr := &APIError{StatusCode: status, Body: truncateBody(respBody)}
		return nil, errors.Wrap(errors.ErrCodeLLMUpstream, fmt.Sprintf("LLM endpoint returned status %d", status), apiErr)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLLMBadResponse, "LLM response is not valid JSON", err)
	}

	result := &CompletionResult{}
	switch {
	case len(parsed.Choices) > 0:
		result.Content = parsed.Choices[0].Message.Content
		result.TokensUsed = parsed.Usage.TotalTokens
	case parsed.Response != nil:
		result.Content = *parsed.Response
	default:
		return nil, errors.New(errors.ErrCodeLLMBadResponse, "LLM response has no recognized content field")
	}

	logger.Debug("LLM completion finished",
		zap.String("model", req.Model),
		zap.Int("prompt_chars", len(req.Prompt)),
		zap.Int("tokens_used", result.TokensUsed),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// ListModels fetches the models offered by the endpoint
// (open-webui shape: {"data":[{id,name}]})
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if c.baseURL == "" {
		return nil, errors.New(errors.ErrCodeLLMNotConfigured, "no LLM base URL configured")
	}

	status, body, err := c.do(ctx, http.MethodGet, "/api/models", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		apiErr := &APIError{StatusCode: status, Body: truncateBody(body)}
		return nil, errors.Wrap(errors.ErrCodeLLMUpstream, fmt.Sprintf("model listing returned status %d", status), apiErr)
	}

	var parsed struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLLMBadResponse, "model listing is not valid JSON", err)
	}
	return parsed.Data, nil
}

// ListCollections fetches the knowledge collections available for grounding
func (c *Client) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	if c.baseURL == "" {
		return nil, errors.New(errors.ErrCodeLLMNotConfigured, "no LLM base URL configured")
	}

	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/knowledge/list", nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		apiErr := &APIError{StatusCode: status, Body: truncateBody(body)}
		return nil, errors.Wrap(errors.ErrCodeLLMUpstream, fmt.Sprintf("collection listing returned status %d", status), apiErr)
	}

	var parsed []CollectionInfo
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLLMBadResponse, "collection listing is not valid JSON", err)
	}
	return parsed, nil
}

// do executes one HTTP request under the configured timeout and returns
// the status code and full body
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, errors.Wrap(errors.ErrCodeInternal, "failed to build LLM request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, nil, errors.Wrap(errors.ErrCodeLLMTimeout, "LLM request timed out", err)
		}
		return 0, nil, errors.Wrap(errors.ErrCodeLLMUpstream, "LLM request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(errors.ErrCodeLLMUpstream, "failed to read LLM response", err)
	}
	return resp.StatusCode, data, nil
}

// truncateBody bounds error payloads carried in APIError
func truncateBody(body []byte) string {
	const max = 2048
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
