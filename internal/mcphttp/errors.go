package mcphttp

import (
	"fmt"

	"github.com/clssck/pdf-mcp-client/pkg/mcp"
)

// TransportError reports an HTTP-level failure: the request could not be
// delivered, timed out, or came back with a non-2xx status.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body for non-2xx statuses
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: HTTP %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError carries the error member of a JSON-RPC response.
type ProtocolError struct {
	Code    mcp.ErrorCode
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("MCP error [%d]: %s", e.Code, e.Message)
}

// ParseError reports a response that is not valid JSON, either the JSON-RPC
// envelope itself or the JSON document embedded in a text content item.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
