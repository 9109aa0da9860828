// Command pdf-summarizer-stdio starts a local PDF MCP server as a
// subprocess and lets a tool-calling agent summarize, extract or describe a
// PDF through it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/clssck/pdf-mcp-client/internal/agent"
	"github.com/clssck/pdf-mcp-client/internal/analyzer"
	"github.com/clssck/pdf-mcp-client/internal/config"
	"github.com/clssck/pdf-mcp-client/internal/db"
	"github.com/clssck/pdf-mcp-client/internal/pdf"
	"github.com/clssck/pdf-mcp-client/internal/stdio"
	"github.com/joho/godotenv"
)

const usageText = `PDF Summarizer - AI-powered PDF analysis using an MCP server over stdio.

Usage:
  pdf-summarizer-stdio <command> [flags] <pdf_path>

Commands:
  summarize   Summarize a PDF file
  extract     Extract text from a PDF file
  metadata    Get metadata from a PDF file

Flags:
  -mcp-server  path to the MCP server script (env PDF_MCP_SERVER_PATH)
  -config      config file (default ~/.pdf-mcp-client/config.yaml)
`

type operation struct {
	status string
	title  string
	call   func(*analyzer.StdioSummarizer, context.Context, string) (string, error)
}

var operations = map[string]operation{
	"summarize": {
		status: "Summarizing PDF: %s\nInitializing AI agent...\nAnalyzing PDF...",
		title:  "SUMMARY",
		call:   (*analyzer.StdioSummarizer).Summarize,
	},
	"extract": {
		status: "Extracting text from PDF: %s",
		title:  "EXTRACTED TEXT",
		call:   (*analyzer.StdioSummarizer).ExtractText,
	},
	"metadata": {
		status: "Getting metadata from PDF: %s",
		title:  "PDF METADATA",
		call:   (*analyzer.StdioSummarizer).GetMetadata,
	},
}

func main() {
	log.SetOutput(os.Stderr)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nInterrupted by user")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	if command == "help" || command == "-h" || command == "-help" || command == "--help" {
		fmt.Fprint(out, usageText)
		return nil
	}
	op, ok := operations[command]
	if !ok {
		return fmt.Errorf("unknown command %q (see pdf-summarizer-stdio help)", command)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	serverPath := fs.String("mcp-server", "", "path to the MCP server script")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("%s: expected exactly one PDF path", command)
	}
	pdfPath, err := pdf.ValidatePath(positional[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *serverPath != "" {
		cfg.Stdio.ServerPath = *serverPath
	}

	stdioCfg, err := serverConfig(cfg.Stdio)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, op.status+"\n", pdfPath)

	session, err := stdio.Start(ctx, stdioCfg)
	if err != nil {
		return err
	}
	defer session.Close()

	toolAgent, err := agent.NewToolAgent(ctx, agent.Config{
		Provider: cfg.Agent.Provider,
		Model:    cfg.Agent.Model,
		APIKey:   cfg.Agent.APIKey,
	}, session)
	if err != nil {
		return err
	}

	var recorder analyzer.Recorder
	if cfg.History.Enabled {
		history, err := db.NewDatabase(db.Config{Path: cfg.History.Path, Timeout: cfg.History.Timeout})
		if err != nil {
			log.Printf("Warning: run history disabled: %v", err)
		} else {
			defer history.Close()
			recorder = history
		}
	}

	result, err := op.call(analyzer.NewStdioSummarizer(toolAgent, recorder), ctx, pdfPath)
	if err != nil {
		return err
	}
	printSection(out, op.title, result)
	return nil
}

// serverConfig turns the configured server script into a subprocess
// command line, failing early when the script is missing.
func serverConfig(cfg config.StdioConfig) (stdio.Config, error) {
	if cfg.ServerPath == "" {
		return stdio.Config{}, errors.New("MCP server path is required (use -mcp-server or PDF_MCP_SERVER_PATH)")
	}
	if _, err := os.Stat(cfg.ServerPath); err != nil {
		return stdio.Config{}, fmt.Errorf("MCP server not found at %s", cfg.ServerPath)
	}

	args := append([]string{}, cfg.Args...)
	args = append(args, cfg.ServerPath)
	return stdio.Config{
		Command:      cfg.Command,
		Args:         args,
		Env:          cfg.Env,
		StartTimeout: cfg.StartTimeout,
	}, nil
}

func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func printSection(out io.Writer, title, content string) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n%s\n%s\n", rule, title, rule, content, rule)
}
