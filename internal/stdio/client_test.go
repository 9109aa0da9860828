package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/clssck/pdf-mcp-client/pkg/mcp"
)

// TestHelperProcess is not a real test. It is re-executed by the tests below
// as a fake MCP server speaking newline-delimited JSON-RPC on stdin/stdout.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	if os.Getenv("HELPER_MODE") == "crash" {
		fmt.Fprintln(os.Stderr, "server exploded")
		os.Exit(3)
	}

	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	reply := func(v any) {
		b, _ := json.Marshal(v)
		writer.Write(b)
		writer.WriteByte('\n')
		writer.Flush()
	}

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		var req mcp.RequestMessage
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}
		if req.ID == nil {
			continue // notification
		}

		// Interleave a server notification and some log noise before every response.
		reply(map[string]any{"jsonrpc": "2.0", "method": "notifications/message", "params": map[string]any{"level": "info"}})
		writer.WriteString("not json\n")

		switch req.Method {
		case "initialize":
			reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"protocolVersion": "2025-06-18", "capabilities": map[string]any{}}})
		case "tools/list":
			reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"tools": []map[string]any{
				{"name": "extract_text", "description": "Extract text", "inputSchema": map[string]any{"type": "object"}},
				{"name": "extract_metadata", "description": "Extract metadata", "inputSchema": map[string]any{"type": "object"}},
			}}})
		case "tools/call":
			params, _ := req.Params.(map[string]any)
			args, _ := params["arguments"].(map[string]any)
			switch params["name"] {
			case "extract_text":
				text, _ := json.Marshal(map[string]any{"text": fmt.Sprintf("text of %v", args["filePath"])})
				reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"content": []map[string]any{{"type": "text", "text": string(text)}}}})
			case "env":
				reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"content": []map[string]any{{"type": "text", "text": os.Getenv("PDF_TEST_MARKER")}}}})
			case "slow":
				time.Sleep(2 * time.Second)
				reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"content": []any{}}})
			default:
				reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32602, "message": fmt.Sprintf("Unknown tool: %v", params["name"])}})
			}
		default:
			reply(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "Method not found"}})
		}
	}
}

func helperConfig(env map[string]string) Config {
	merged := map[string]string{"GO_WANT_HELPER_PROCESS": "1"}
	for k, v := range env {
		merged[k] = v
	}
	return Config{
		Command:      os.Args[0],
		Args:         []string{"-test.run=TestHelperProcess", "--"},
		Env:          merged,
		StartTimeout: 10 * time.Second,
	}
}

func startHelper(t *testing.T, env map[string]string) *Client {
	t.Helper()
	client, err := Start(context.Background(), helperConfig(env))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestListTools(t *testing.T) {
	client := startHelper(t, nil)

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "extract_text" || tools[1].Name != "extract_metadata" {
		t.Errorf("unexpected tools: %+v", tools)
	}
}

func TestCallTool(t *testing.T) {
	client := startHelper(t, nil)

	result, err := client.CallTool(context.Background(), "extract_text", map[string]any{"filePath": "/docs/a.pdf"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
	if result.Content[0].Text != `{"text":"text of /docs/a.pdf"}` {
		t.Errorf("unexpected text %q", result.Content[0].Text)
	}
}

func TestCallToolServerError(t *testing.T) {
	client := startHelper(t, nil)

	_, err := client.CallTool(context.Background(), "nope", nil)
	var rpcErr *mcp.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *mcp.Error, got %T: %v", err, err)
	}
	if !strings.Contains(rpcErr.Message, "Unknown tool: nope") {
		t.Errorf("unexpected message %q", rpcErr.Message)
	}
}

func TestExplicitEnvReachesChild(t *testing.T) {
	client := startHelper(t, map[string]string{"PDF_TEST_MARKER": "marker-123"})

	result, err := client.CallTool(context.Background(), "env", nil)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.Content[0].Text != "marker-123" {
		t.Errorf("expected marker in child env, got %q", result.Content[0].Text)
	}
	if os.Getenv("PDF_TEST_MARKER") != "" {
		t.Error("child env leaked into parent process")
	}
}

func TestRequestHonorsContext(t *testing.T) {
	client := startHelper(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.CallTool(ctx, "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestStartFailsWhenServerExits(t *testing.T) {
	client, err := Start(context.Background(), helperConfig(map[string]string{"HELPER_MODE": "crash"}))
	if err == nil {
		client.Close()
		t.Fatal("expected initialize to fail when the server exits")
	}
	if !strings.Contains(err.Error(), "initialize failed") {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestStartRequiresCommand(t *testing.T) {
	if _, err := Start(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	client, err := Start(context.Background(), helperConfig(nil))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := client.ListTools(context.Background()); err == nil {
		t.Error("expected error after Close")
	}
}

func TestFormatEnv(t *testing.T) {
	got := formatEnv(map[string]string{"B": "2", "A": "1", " ": "skip"})
	want := []string{"A=1", "B=2"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
	if formatEnv(nil) != nil {
		t.Error("expected nil for empty env")
	}
}
