package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clssck/pdf-mcp-client/pkg/mcp"
)

const (
	protocolVersion = "2025-06-18"
	clientName      = "pdf-mcp-client"
	clientVersion   = "0.1.0"

	defaultStartTimeout = 30 * time.Second
	closeGrace          = 2 * time.Second
	maxLineSize         = 32 * 1024 * 1024
	maxStderrTail       = 4096
)

// ErrClosed is returned by calls made after the server exited or Close was called.
var ErrClosed = errors.New("mcp stdio server is not running")

// Config describes the MCP server subprocess. Env is merged onto the parent
// environment for the child only.
type Config struct {
	Command      string
	Args         []string
	Env          map[string]string
	Dir          string
	StartTimeout time.Duration
}

// Client speaks newline-delimited JSON-RPC to an MCP server over its
// stdin/stdout. Requests are serialized; responses are matched by ID and
// server notifications are skipped.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	done   chan struct{}
	stderr *tailBuffer

	readErr   error // set before lines is closed
	mu        sync.Mutex
	nextID    int64
	closeOnce sync.Once
}

// Start launches the server and performs the MCP initialize handshake.
func Start(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("stdio command required")
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), formatEnv(cfg.Env)...)
	cmd.Dir = cfg.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open server stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open server stdout: %w", err)
	}
	stderr := &tailBuffer{limit: maxStderrTail}
	cmd.Stderr = stderr

	log.Printf("Starting MCP server: %s %s", cfg.Command, strings.Join(cfg.Args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start MCP server %s: %w", cfg.Command, err)
	}

	c := &Client{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan []byte, 16),
		done:   make(chan struct{}),
		stderr: stderr,
	}
	go c.readLoop(stdout)

	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.initialize(initCtx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case c.lines <- append([]byte(nil), line...):
		case <-c.done:
			close(c.lines)
			return
		}
	}
	c.readErr = scanner.Err()
	close(c.lines)
}

func (c *Client) initialize(ctx context.Context) error {
	params := mcp.InitializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      mcp.ClientInfo{Name: clientName, Version: clientVersion},
	}
	resp, err := c.request(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if _, err := resp.Outcome(); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	if err := c.notify(mcp.NewNotification("notifications/initialized", map[string]any{})); err != nil {
		return fmt.Errorf("initialized notification failed: %w", err)
	}
	log.Println("MCP stdio session initialized.")
	return nil
}

// ListTools returns the tools advertised by the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	resp, err := c.request(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	raw, err := resp.Outcome()
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	var result mcp.ListToolsResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tools/list result: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool by name and returns its raw result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	resp, err := c.request(ctx, mcp.MethodToolsCall, mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	raw, err := resp.Outcome()
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}
	var result mcp.CallToolResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tools/call result: %w", err)
		}
	}
	return &result, nil
}

func (c *Client) request(ctx context.Context, method string, params any) (*mcp.ResponseMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if err := c.writeLocked(mcp.NewRequest(method, params, id)); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case line, ok := <-c.lines:
			if !ok {
				return nil, c.exitError()
			}
			var resp mcp.ResponseMessage
			if err := json.Unmarshal(line, &resp); err != nil {
				log.Printf("Skipping non-JSON line from MCP server: %.80s", line)
				continue
			}
			if resp.ID == nil {
				continue // notification
			}
			if fmt.Sprint(resp.ID) == fmt.Sprint(id) {
				return &resp, nil
			}
			log.Printf("Skipping response with unexpected id %v (want %d)", resp.ID, id)
		}
	}
}

func (c *Client) notify(msg mcp.RequestMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(msg)
}

func (c *Client) writeLocked(msg mcp.RequestMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", msg.Method, err)
	}
	if _, err := fmt.Fprintf(c.stdin, "%s\n", payload); err != nil {
		return fmt.Errorf("failed to write to MCP server: %w", err)
	}
	return nil
}

func (c *Client) exitError() error {
	msg := strings.TrimSpace(c.stderr.String())
	if c.readErr != nil {
		return fmt.Errorf("%w: %v %s", ErrClosed, c.readErr, msg)
	}
	if msg != "" {
		return fmt.Errorf("%w: %s", ErrClosed, msg)
	}
	return ErrClosed
}

// Close closes the server's stdin and waits briefly for it to exit before
// killing it. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.stdin.Close()
		done := make(chan error, 1)
		go func() { done <- c.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(closeGrace):
			if c.cmd.Process != nil {
				_ = c.cmd.Process.Kill()
			}
			<-done
		}
		log.Println("MCP stdio server stopped.")
	})
	return nil
}

func formatEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(env))
	for key, value := range env {
		if strings.TrimSpace(key) == "" {
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return pairs
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
