// Package analyzer implements the PDF workflows behind the CLIs: direct
// extraction over HTTP with optional LLM summaries, and agent-driven
// summaries over a stdio MCP server.
package analyzer

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/clssck/pdf-mcp-client/internal/agent"
	"github.com/clssck/pdf-mcp-client/internal/db"
	"github.com/clssck/pdf-mcp-client/internal/pdf"
)

// Operation names recorded in the run history.
const (
	OpExtract   = "extract"
	OpMetadata  = "metadata"
	OpSummarize = "summarize"
	OpAnalyze   = "analyze"
)

const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Extractor performs token-free extraction. *mcphttp.Client satisfies it.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
	ExtractMetadata(ctx context.Context, pdfPath string) (map[string]any, error)
}

// Recorder stores run history. *db.Database satisfies it.
type Recorder interface {
	SaveRun(ctx context.Context, run db.Run) (string, error)
}

// Analysis is the combined result of Analyze.
type Analysis struct {
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	TextLength int            `json:"text_length"`
	WordCount  int            `json:"word_count"`
	Summary    string         `json:"summary,omitempty"`
}

// HTTPAnalyzer sends PDFs straight to the MCP server and only hands the
// extracted text to the LLM, never the PDF itself.
type HTTPAnalyzer struct {
	extractor Extractor
	runner    agent.Runner // nil disables summaries
	history   Recorder     // nil disables history
}

// NewHTTPAnalyzer creates an analyzer. runner and history may be nil.
func NewHTTPAnalyzer(extractor Extractor, runner agent.Runner, history Recorder) *HTTPAnalyzer {
	return &HTTPAnalyzer{extractor: extractor, runner: runner, history: history}
}

// UsesAgent reports whether summaries go through the LLM.
func (a *HTTPAnalyzer) UsesAgent() bool { return a.runner != nil }

func (a *HTTPAnalyzer) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	text, err := a.extractor.ExtractText(ctx, pdfPath)
	a.record(ctx, pdfPath, OpExtract, TransportHTTP, text, err)
	return text, err
}

func (a *HTTPAnalyzer) ExtractMetadata(ctx context.Context, pdfPath string) (map[string]any, error) {
	metadata, err := a.extractor.ExtractMetadata(ctx, pdfPath)
	a.record(ctx, pdfPath, OpMetadata, TransportHTTP, "", err)
	return metadata, err
}

// Summarize extracts the text and asks the LLM for a concise summary. Without
// a runner the raw text is returned.
func (a *HTTPAnalyzer) Summarize(ctx context.Context, pdfPath string) (string, error) {
	text, err := a.extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		a.record(ctx, pdfPath, OpSummarize, TransportHTTP, "", err)
		return "", err
	}
	if a.runner == nil {
		a.record(ctx, pdfPath, OpSummarize, TransportHTTP, text, nil)
		return text, nil
	}

	summary, err := a.runner.Run(ctx, "Please provide a concise summary of this PDF content:\n\n"+text)
	a.record(ctx, pdfPath, OpSummarize, TransportHTTP, text, err)
	if err != nil {
		return "", err
	}
	return summary, nil
}

// Analyze extracts text and metadata, counts characters and words, and adds
// an LLM summary when a runner is configured.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, pdfPath string) (*Analysis, error) {
	text, err := a.extractor.ExtractText(ctx, pdfPath)
	if err != nil {
		a.record(ctx, pdfPath, OpAnalyze, TransportHTTP, "", err)
		return nil, err
	}
	metadata, err := a.extractor.ExtractMetadata(ctx, pdfPath)
	if err != nil {
		a.record(ctx, pdfPath, OpAnalyze, TransportHTTP, text, err)
		return nil, err
	}

	result := &Analysis{
		Text:       text,
		Metadata:   metadata,
		TextLength: utf8.RuneCountInString(text),
		WordCount:  len(strings.Fields(text)),
	}

	if a.runner != nil {
		summary, err := a.runner.Run(ctx, "Provide a brief summary and key insights from this PDF content:\n\n"+text)
		if err != nil {
			a.record(ctx, pdfPath, OpAnalyze, TransportHTTP, text, err)
			return nil, err
		}
		result.Summary = summary
	}

	a.record(ctx, pdfPath, OpAnalyze, TransportHTTP, text, nil)
	return result, nil
}

func (a *HTTPAnalyzer) record(ctx context.Context, pdfPath, op, transport, text string, opErr error) {
	recordRun(ctx, a.history, pdfPath, op, transport, text, opErr)
}

// recordRun saves one history row. Failures are logged and never affect the
// operation's result.
func recordRun(ctx context.Context, history Recorder, pdfPath, op, transport, text string, opErr error) {
	if history == nil {
		return
	}

	run := db.Run{
		PDFPath:    pdfPath,
		Operation:  op,
		Transport:  transport,
		TextLength: utf8.RuneCountInString(text),
		WordCount:  len(strings.Fields(text)),
		Status:     db.StatusOK,
	}
	if abs, err := pdf.ValidatePath(pdfPath); err == nil {
		run.PDFPath = abs
	}
	if size, err := pdf.Size(pdfPath); err == nil {
		run.SizeBytes = size
	}
	if opErr != nil {
		run.Status = db.StatusError
		run.Error = sql.NullString{String: opErr.Error(), Valid: true}
	}

	// The caller's context may already be cancelled; history still gets written.
	if _, err := history.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("Warning: failed to record %s run for %s: %v", op, pdfPath, err)
	}
}
