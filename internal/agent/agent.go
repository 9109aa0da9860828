// Package agent wraps the LLM providers used to summarize PDF text and to
// drive MCP tools from natural-language instructions.
package agent

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// SummarySystemPrompt is the system instruction used when summarizing
// extracted PDF text.
const SummarySystemPrompt = "You are a helpful PDF analysis assistant. " +
	"Provide clear, concise summaries of PDF content. " +
	"Focus on key points, main topics, and important details."

// ToolSystemPrompt is the system instruction for the tool-calling agent.
const ToolSystemPrompt = "You are a helpful PDF analysis assistant. " +
	"You have access to tools for extracting text and metadata from PDF files. " +
	"When asked to summarize a PDF, first extract its text, then provide a clear, " +
	"concise summary of the content. Include key points, main topics, and any " +
	"important details. If metadata is relevant, mention it as well."

// Runner turns a prompt into free text.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "gemini" (default) or "openai"
	Model    string
	APIKey   string
	System   string
	BaseURL  string // optional, for proxies and tests
}

func (c Config) provider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderGemini
	}
	return p
}

// NewRunner returns the Runner for cfg.Provider.
func NewRunner(ctx context.Context, cfg Config) (Runner, error) {
	switch cfg.provider() {
	case ProviderGemini:
		return NewGeminiRunner(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIRunner(cfg)
	default:
		return nil, fmt.Errorf("unsupported agent provider %q", cfg.Provider)
	}
}
