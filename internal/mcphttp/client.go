package mcphttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clssck/pdf-mcp-client/internal/pdf"
	"github.com/clssck/pdf-mcp-client/pkg/mcp"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 60 * time.Second

	mcpPath    = "/mcp"
	healthPath = "/health"

	// maxErrorBody bounds how much of a failed response is kept in errors.
	maxErrorBody = 512
)

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("mcp http client is closed")
	// ErrReadTimeout is wrapped in the TransportError of a response body
	// that stalled for longer than the read timeout.
	ErrReadTimeout = errors.New("read timeout")
)

// Config holds configuration for the MCP HTTP client.
type Config struct {
	BaseURL        string        // Required, e.g. "http://localhost:3000"
	APIKey         string        // Optional, sent as a bearer token
	ConnectTimeout time.Duration // Optional, defaults to DefaultConnectTimeout
	ReadTimeout    time.Duration // Optional, defaults to DefaultReadTimeout
}

// Client sends PDF tool calls to an MCP server as plain JSON-RPC over HTTP,
// so the PDF bytes never pass through an LLM.
//
// A Client owns a pooled connection set for its lifetime; release it with
// Close. It is safe for concurrent use.
type Client struct {
	httpClient *retryablehttp.Client
	baseURL    string
	endpoint   string
	headers    http.Header

	readTimeout time.Duration

	requestID atomic.Int64
	closed    atomic.Bool
}

// NewClient creates and configures a new MCP HTTP client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("MCP server URL is required")
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{
		Transport: transport,
		// Redirects are reported as non-2xx statuses, never followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	retryClient.Logger = log.New(io.Discard, "", 0) // we log ourselves
	// A failed attempt is a failed call: no retries, no backoff.
	retryClient.RetryMax = 0
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		return false, nil
	}
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json, text/event-stream")
	if cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	client := &Client{
		httpClient: retryClient,
		baseURL:    baseURL,
		endpoint:   baseURL + mcpPath,
		headers:    headers,

		readTimeout: readTimeout,
	}

	log.Printf("MCP HTTP client initialized for %s", client.endpoint)
	return client, nil
}

// BaseURL returns the server base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Endpoint returns the JSON-RPC endpoint, BaseURL() + "/mcp".
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) nextRequestID() int64 {
	return c.requestID.Add(1)
}

// ExtractText reads the PDF at pdfPath and returns the text extracted by the
// server's extract_text tool. A result without a "text" string yields "".
func (c *Client) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	content, err := pdf.ReadBase64(pdfPath)
	if err != nil {
		return "", err
	}

	result, err := c.CallTool(ctx, mcp.ToolExtractText, content)
	if err != nil {
		return "", err
	}

	text, _ := result["text"].(string)
	return text, nil
}

// ExtractMetadata reads the PDF at pdfPath and returns the metadata object
// produced by the server's extract_metadata tool, unmodified.
func (c *Client) ExtractMetadata(ctx context.Context, pdfPath string) (map[string]any, error) {
	content, err := pdf.ReadBase64(pdfPath)
	if err != nil {
		return nil, err
	}
	return c.CallTool(ctx, mcp.ToolExtractMetadata, content)
}

// CallTool invokes toolName with the base64-encoded PDF as its fileContent
// argument and decodes the JSON object carried by the first text content item.
//
// An empty or missing content list, or a first item that is not of type
// "text", yields an empty map rather than an error.
func (c *Client) CallTool(ctx context.Context, toolName, fileContentBase64 string) (map[string]any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := c.nextRequestID()
	request := mcp.NewToolCallRequest(toolName, map[string]any{
		mcp.ArgFileContent: fileContentBase64,
	}, id)

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = values
	}

	log.Printf("Calling tool %s (request %d, payload %d bytes) at %s", toolName, id, len(fileContentBase64), c.endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Op: http.MethodPost, URL: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	log.Printf("Received response for request %d: Status %s", id, resp.Status)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := c.readBody(io.LimitReader(resp.Body, maxErrorBody), cancel)
		return nil, &TransportError{
			Op:         http.MethodPost,
			URL:        c.endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	respBody, err := c.readBody(resp.Body, cancel)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: c.endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	rpcResp, err := decodeResponse(resp.Header.Get("Content-Type"), respBody)
	if err != nil {
		return nil, err
	}

	result, err := rpcResp.Outcome()
	if err != nil {
		var rpcErr *mcp.Error
		if errors.As(err, &rpcErr) {
			return nil, &ProtocolError{Code: rpcErr.Code, Message: rpcErr.Message}
		}
		return nil, err
	}

	return decodeToolResult(toolName, result)
}

// readBody reads body to EOF, cancelling the request when no data arrives
// for the read timeout. The timer is re-armed after every read.
func (c *Client) readBody(body io.Reader, cancel context.CancelFunc) ([]byte, error) {
	var timedOut atomic.Bool
	timer := time.AfterFunc(c.readTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer timer.Stop()

	data, err := io.ReadAll(&idleReader{r: body, timer: timer, timeout: c.readTimeout})
	if err != nil && timedOut.Load() {
		return data, fmt.Errorf("%w: no data for %s", ErrReadTimeout, c.readTimeout)
	}
	return data, err
}

type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	return n, err
}

// decodeResponse parses a JSON-RPC response delivered either as a JSON body or
// as the first data event of a text/event-stream body.
func decodeResponse(contentType string, body []byte) (*mcp.ResponseMessage, error) {
	payload := body
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/event-stream") {
		events, err := mcp.ParseSSEEvents(bytes.NewReader(body))
		if err != nil {
			return nil, &ParseError{What: "event stream", Err: err}
		}
		payload = nil
		for _, event := range events {
			if strings.TrimSpace(event.Data) != "" {
				payload = []byte(event.Data)
				break
			}
		}
		if payload == nil {
			return nil, &ParseError{What: "event stream", Err: errors.New("no data events")}
		}
	}

	var rpcResp mcp.ResponseMessage
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		log.Printf("Failed to unmarshal response body (%d bytes)", len(payload))
		return nil, &ParseError{What: "JSON-RPC response", Err: err}
	}
	return &rpcResp, nil
}

func decodeToolResult(toolName string, raw json.RawMessage) (map[string]any, error) {
	empty := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return empty, nil
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ParseError{What: "tool result", Err: err}
	}
	if len(result.Content) == 0 {
		return empty, nil
	}

	first := result.Content[0]
	if first.Type != "text" {
		log.Printf("Tool %s returned %q content, expected text; ignoring", toolName, first.Type)
		return empty, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(first.Text), &out); err != nil {
		return nil, &ParseError{What: "text content", Err: err}
	}
	if out == nil {
		return empty, nil
	}
	return out, nil
}

// HealthCheck reports whether GET <base>/health answers 200. Network errors
// are reported as false, never returned.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}

	url := c.baseURL + healthPath
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("Health check request could not be built: %v", err)
		return false
	}
	if auth := c.headers.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		log.Printf("Health check against %s failed: %v", url, err)
		return false
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Close releases the pooled connections. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.HTTPClient.CloseIdleConnections()
	return nil
}
