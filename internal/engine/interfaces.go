// Package engine orchestrates section generation for DraftForge.
// This file defines the seams between the engine and the LLM transport.
package engine

import (
	"context"

	"github.com/draftforge/draftforge/internal/llm"
)

// CompletionClient performs one generation call against an upstream
// chat-completions endpoint. The production implementation is llm.Client;
// tests substitute a scripted stub through the engine's client factory.
type CompletionClient interface {
	// Complete sends the prompt and extracts the generated text.
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error)
}

// ClientFactory builds a CompletionClient for one endpoint configuration.
// A fresh client is built per call because the effective endpoint depends
// on the requesting user's stored settings.
type ClientFactory func(cfg llm.Config) CompletionClient
