// Command pdf-analyzer-http analyzes PDFs through a remote MCP server over
// plain HTTP. Extraction uses no LLM tokens; only extracted text is ever sent
// to the model for summaries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/clssck/pdf-mcp-client/internal/agent"
	"github.com/clssck/pdf-mcp-client/internal/analyzer"
	"github.com/clssck/pdf-mcp-client/internal/config"
	"github.com/clssck/pdf-mcp-client/internal/db"
	"github.com/clssck/pdf-mcp-client/internal/mcphttp"
	"github.com/joho/godotenv"
)

const usageText = `PDF Analyzer (HTTP) - Token-efficient PDF analysis for remote MCP servers.

Usage:
  pdf-analyzer-http <command> [flags] <pdf_path>

Commands:
  extract     Extract text from PDF (direct HTTP - 0 LLM tokens)
  metadata    Get PDF metadata (direct HTTP - 0 LLM tokens)
  summarize   Summarize PDF (extraction via HTTP, optional AI summary)
  analyze     Comprehensive PDF analysis (text + metadata + summary)
  health      Check that the MCP server is reachable
  history     Show recent runs

Common flags:
  -mcp-url    MCP server base URL (env MCP_SERVER_URL)
  -api-key    MCP server API key (env MCP_API_KEY)
  -config     config file (default ~/.pdf-mcp-client/config.yaml)
`

var errUnhealthy = errors.New("MCP server is unhealthy")

// App holds the dependencies of one command invocation.
type App struct {
	cfg      config.Config
	client   *mcphttp.Client
	history  *db.Database
	analyzer *analyzer.HTTPAnalyzer
}

type commonFlags struct {
	configPath string
	mcpURL     string
	apiKey     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to config file")
	fs.StringVar(&c.mcpURL, "mcp-url", "", "MCP server base URL")
	fs.StringVar(&c.apiKey, "api-key", "", "MCP server API key")
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
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, out io.Writer) error {
	switch command {
	case "extract":
		return runExtract(ctx, args, out)
	case "metadata":
		return runMetadata(ctx, args, out)
	case "summarize":
		return runSummarize(ctx, args, out)
	case "analyze":
		return runAnalyze(ctx, args, out)
	case "health":
		return runHealth(ctx, args, out)
	case "history":
		return runHistory(ctx, args, out)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(out, usageText)
		return nil
	default:
		return fmt.Errorf("unknown command %q (see pdf-analyzer-http help)", command)
	}
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positionals.
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

func pdfArg(fs *flag.FlagSet, args []string) (string, error) {
	positional, err := parseArgs(fs, args)
	if err != nil {
		return "", err
	}
	if len(positional) != 1 {
		return "", fmt.Errorf("%s: expected exactly one PDF path", fs.Name())
	}
	return positional[0], nil
}

func loadConfig(flags commonFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if flags.mcpURL != "" {
		cfg.Server.URL = flags.mcpURL
	}
	if flags.apiKey != "" {
		cfg.Server.APIKey = flags.apiKey
	}
	return cfg, nil
}

func newApp(ctx context.Context, flags commonFlags, useAgent bool) (*App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if cfg.Server.URL == "" {
		return nil, errors.New("MCP server URL is required (use -mcp-url or MCP_SERVER_URL)")
	}

	client, err := mcphttp.NewClient(mcphttp.Config{
		BaseURL:        cfg.Server.URL,
		APIKey:         cfg.Server.APIKey,
		ConnectTimeout: cfg.Server.ConnectTimeout,
		ReadTimeout:    cfg.Server.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, client: client}

	var runner agent.Runner
	if useAgent {
		runner, err = agent.NewRunner(ctx, agent.Config{
			Provider: cfg.Agent.Provider,
			Model:    cfg.Agent.Model,
			APIKey:   cfg.Agent.APIKey,
			System:   agent.SummarySystemPrompt,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	// History is best effort: a broken database never blocks analysis.
	var recorder analyzer.Recorder
	if cfg.History.Enabled {
		history, err := db.NewDatabase(db.Config{Path: cfg.History.Path, Timeout: cfg.History.Timeout})
		if err != nil {
			log.Printf("Warning: run history disabled: %v", err)
		} else {
			app.history = history
			recorder = history
		}
	}

	app.analyzer = analyzer.NewHTTPAnalyzer(client, runner, recorder)
	return app, nil
}

func (a *App) Close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Printf("Error closing history database: %v", err)
		}
	}
}

func printSection(out io.Writer, title, content string) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n%s\n%s\n", rule, title, rule, content, rule)
}

func runExtract(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	path, err := pdfArg(fs, args)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, flags, false)
	if err != nil {
		return err
	}
	defer app.Close()

	text, err := app.analyzer.ExtractText(ctx, path)
	if err != nil {
		return err
	}
	if text == "" {
		text = "(No text extracted)"
	}
	printSection(out, "EXTRACTED TEXT (via Direct HTTP - 0 tokens used)", text)
	return nil
}

func runMetadata(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("metadata", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	path, err := pdfArg(fs, args)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, flags, false)
	if err != nil {
		return err
	}
	defer app.Close()

	metadata, err := app.analyzer.ExtractMetadata(ctx, path)
	if err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format metadata: %w", err)
	}
	printSection(out, "PDF METADATA (via Direct HTTP - 0 tokens used)", string(encoded))
	return nil
}

func runSummarize(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	noAgent := fs.Bool("no-agent", false, "return extracted text without an AI summary")
	path, err := pdfArg(fs, args)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, flags, !*noAgent)
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := app.analyzer.Summarize(ctx, path)
	if err != nil {
		return err
	}

	title := "PDF TEXT (direct extraction - 0 tokens)"
	if app.analyzer.UsesAgent() {
		title = "PDF SUMMARY (AI-generated from extracted text)\n" +
			"Token usage: Only extracted text sent to LLM, not PDF binary"
	}
	printSection(out, title, summary)
	return nil
}

func runAnalyze(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	path, err := pdfArg(fs, args)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, flags, true)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.analyzer.Analyze(ctx, path)
	if err != nil {
		return err
	}
	printSection(out, "ANALYSIS RESULTS", formatAnalysis(result))
	return nil
}

func formatAnalysis(result *analyzer.Analysis) string {
	metadata, err := json.MarshalIndent(result.Metadata, "", "  ")
	if err != nil {
		metadata = []byte(fmt.Sprint(result.Metadata))
	}
	summary := result.Summary
	if summary == "" {
		summary = "N/A"
	}
	lines := []string{
		"\nCOMPREHENSIVE PDF ANALYSIS\n",
		"METADATA:",
		string(metadata),
		fmt.Sprintf("\nSTATS: %d words, %d characters\n", result.WordCount, result.TextLength),
		"SUMMARY:",
		summary,
	}
	return strings.Join(lines, "\n")
}

func runHealth(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	var flags commonFlags
	flags.register(fs)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	app, err := newApp(ctx, flags, false)
	if err != nil {
		return err
	}
	defer app.Close()

	if !app.client.HealthCheck(ctx) {
		fmt.Fprintf(out, "MCP server at %s is unhealthy\n", app.client.BaseURL())
		return errUnhealthy
	}
	fmt.Fprintf(out, "MCP server at %s is healthy\n", app.client.BaseURL())
	return nil
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 20, "number of runs to show (0 for all)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("run history is disabled (PDF_MCP_HISTORY=false)")
	}

	history, err := db.NewDatabase(db.Config{Path: cfg.History.Path, Timeout: cfg.History.Timeout})
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOPERATION\tTRANSPORT\tSTATUS\tWORDS\tPDF")
	for _, r := range runs {
		status := r.Status
		if r.Error.Valid {
			status += ": " + truncate(r.Error.String, 40)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Operation, r.Transport, status, r.WordCount, r.PDFPath)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
