package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIRunner runs single-turn prompts as OpenAI chat completions.
type OpenAIRunner struct {
	client openai.Client
	model  string
	system string
}

// NewOpenAIRunner creates an OpenAI runner. Default model is gpt-4o-mini.
func NewOpenAIRunner(cfg Config) (*OpenAIRunner, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIRunner{
		client: openai.NewClient(opts...),
		model:  model,
		system: cfg.System,
	}, nil
}

func (o *OpenAIRunner) Run(ctx context.Context, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if o.system != "" {
		messages = append(messages, openai.SystemMessage(o.system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	runID := uuid.NewString()
	log.Printf("Agent run %s: model %s, prompt %d chars", runID, o.model, len(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Printf("Agent run %s: %d chars returned", runID, len(text))
	return text, nil
}

var _ Runner = (*OpenAIRunner)(nil)
