package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiRunner runs single-turn prompts against the Gemini API.
type GeminiRunner struct {
	client *genai.Client
	model  string
	system string
}

func newGeminiClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiRunner creates a Gemini runner. Default model is gemini-2.5-flash.
func NewGeminiRunner(ctx context.Context, cfg Config) (*GeminiRunner, error) {
	client, err := newGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiRunner{client: client, model: model, system: cfg.System}, nil
}

func (g *GeminiRunner) Run(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if g.system != "" {
		config.SystemInstruction = genai.NewContentFromText(g.system, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	runID := uuid.NewString()
	log.Printf("Agent run %s: model %s, prompt %d chars", runID, g.model, len(prompt))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	log.Printf("Agent run %s: %d chars returned", runID, len(text))
	return text, nil
}

var _ Runner = (*GeminiRunner)(nil)
