package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/clssck/pdf-mcp-client/pkg/mcp"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// DefaultMaxTurns bounds the model/tool round trips of one ToolAgent run.
const DefaultMaxTurns = 10

// ErrMaxTurns is returned when the model keeps calling tools past MaxTurns.
var ErrMaxTurns = errors.New("agent exceeded maximum tool-calling turns")

// ToolSession is an MCP session the agent can list and call tools on.
// *stdio.Client satisfies it.
type ToolSession interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAgent lets a Gemini model call the tools of an MCP session until it
// produces a text answer.
type ToolAgent struct {
	client   *genai.Client
	model    string
	system   string
	session  ToolSession
	MaxTurns int

	tools []*genai.Tool
}

// NewToolAgent creates a tool-calling agent. Only the Gemini provider
// supports tool calling here.
func NewToolAgent(ctx context.Context, cfg Config, session ToolSession) (*ToolAgent, error) {
	if session == nil {
		return nil, errors.New("tool session is required")
	}
	if p := cfg.provider(); p != ProviderGemini {
		return nil, fmt.Errorf("tool calling is not supported for provider %q", p)
	}
	client, err := newGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	system := cfg.System
	if system == "" {
		system = ToolSystemPrompt
	}
	return &ToolAgent{
		client:   client,
		model:    model,
		system:   system,
		session:  session,
		MaxTurns: DefaultMaxTurns,
	}, nil
}

// declareTools converts the session's MCP tools to Gemini function
// declarations. The result is cached for the life of the agent.
func (a *ToolAgent) declareTools(ctx context.Context) ([]*genai.Tool, error) {
	if a.tools != nil {
		return a.tools, nil
	}
	mcpTools, err := a.session.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list MCP tools: %w", err)
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(mcpTools))
	for _, tool := range mcpTools {
		decl := &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
		}
		if tool.InputSchema != nil {
			decl.ParametersJsonSchema = tool.InputSchema
		}
		decls = append(decls, decl)
	}
	a.tools = []*genai.Tool{{FunctionDeclarations: decls}}
	return a.tools, nil
}

// Run sends prompt to the model and executes the tool calls it asks for,
// feeding results back, until the model answers with text.
func (a *ToolAgent) Run(ctx context.Context, prompt string) (string, error) {
	tools, err := a.declareTools(ctx)
	if err != nil {
		return "", err
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(a.system, genai.RoleUser),
		Tools:             tools,
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	maxTurns := a.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	runID := uuid.NewString()
	log.Printf("Tool agent run %s: model %s, %d tools", runID, a.model, len(tools[0].FunctionDeclarations))

	for turn := 1; turn <= maxTurns; turn++ {
		resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
		if err != nil {
			return "", fmt.Errorf("gemini generate content: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			return strings.TrimSpace(resp.Text()), nil
		}
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}

		parts := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			log.Printf("Tool agent run %s turn %d: calling %s", runID, turn, call.Name)
			part := genai.NewPartFromFunctionResponse(call.Name, a.callTool(ctx, call))
			part.FunctionResponse.ID = call.ID
			parts = append(parts, part)
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
	}
	return "", fmt.Errorf("%w (%d)", ErrMaxTurns, maxTurns)
}

// callTool runs one function call and shapes the outcome as a function
// response. Tool failures are reported to the model, not returned.
func (a *ToolAgent) callTool(ctx context.Context, call *genai.FunctionCall) map[string]any {
	result, err := a.session.CallTool(ctx, call.Name, call.Args)
	if err != nil {
		log.Printf("Tool %s failed: %v", call.Name, err)
		return map[string]any{"error": err.Error()}
	}
	text := resultText(result)
	if result.IsError {
		return map[string]any{"error": text}
	}
	return map[string]any{"output": text}
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, item := range result.Content {
		if item.Type == "text" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ Runner = (*ToolAgent)(nil)
