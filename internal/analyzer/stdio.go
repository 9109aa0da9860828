package analyzer

import (
	"context"
	"fmt"

	"github.com/clssck/pdf-mcp-client/internal/agent"
	"github.com/clssck/pdf-mcp-client/internal/pdf"
)

// StdioSummarizer asks a tool-calling agent, connected to a local MCP
// server, to work on a PDF by path. The agent decides which tools to call.
type StdioSummarizer struct {
	agent   agent.Runner
	history Recorder
}

// NewStdioSummarizer creates a summarizer. history may be nil.
func NewStdioSummarizer(runner agent.Runner, history Recorder) *StdioSummarizer {
	return &StdioSummarizer{agent: runner, history: history}
}

func (s *StdioSummarizer) Summarize(ctx context.Context, pdfPath string) (string, error) {
	return s.run(ctx, pdfPath, OpSummarize, "Please summarize the PDF file at: %s")
}

func (s *StdioSummarizer) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	return s.run(ctx, pdfPath, OpExtract, "Extract all text from the PDF file at: %s")
}

func (s *StdioSummarizer) GetMetadata(ctx context.Context, pdfPath string) (string, error) {
	return s.run(ctx, pdfPath, OpMetadata, "Get the metadata from the PDF file at: %s")
}

func (s *StdioSummarizer) run(ctx context.Context, pdfPath, op, format string) (string, error) {
	abs, err := pdf.ValidatePath(pdfPath)
	if err != nil {
		return "", err
	}
	out, err := s.agent.Run(ctx, fmt.Sprintf(format, abs))
	recordRun(ctx, s.history, abs, op, TransportStdio, out, err)
	if err != nil {
		return "", fmt.Errorf("agent %s failed: %w", op, err)
	}
	return out, nil
}
