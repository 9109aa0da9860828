package mcp

import (
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC version this package speaks.
const Version = "2.0"

// MethodToolsCall is the MCP method used to invoke a server-side tool.
const MethodToolsCall = "tools/call"

// Tool names exposed by the PDF extraction server.
const (
	ToolExtractText     = "extract_text"
	ToolExtractMetadata = "extract_metadata"
)

// ArgFileContent carries the base64-encoded PDF in tool arguments.
const ArgFileContent = "fileContent"

// ErrorCode defines the standard JSON-RPC error codes.
type ErrorCode int

const (
	ErrorCodeParseError     ErrorCode = -32700
	ErrorCodeInvalidRequest ErrorCode = -32600
	ErrorCodeMethodNotFound ErrorCode = -32601
	ErrorCodeInvalidParams  ErrorCode = -32602
	ErrorCodeInternalError  ErrorCode = -32603
)

// Error represents the error object in a JSON-RPC response.
type Error struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("MCP error [%d]: %s", e.Code, e.Message)
}

// RequestMessage represents a JSON-RPC request. ID is an integer or a string;
// it is omitted for notifications.
type RequestMessage struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// ResponseMessage represents a JSON-RPC response. A well-formed response
// carries exactly one of Result or Error; use Outcome to read it.
type ResponseMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Outcome returns the result payload, or the server error when the error
// member is present. The error member is checked first.
func (r *ResponseMessage) Outcome() (json.RawMessage, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	return r.Result, nil
}

// Tool represents the definition of a tool available on the server.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResponse is the result of a "tools/list" request.
type ListToolsResponse struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams represents the parameters for a "tools/call" request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolResultContent represents a single content item in a tool result.
// For the PDF tools Text holds a JSON document when Type is "text".
type CallToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallToolResult is the result of a "tools/call" request.
type CallToolResult struct {
	Content []CallToolResultContent `json:"content"`
	IsError bool                    `json:"isError,omitempty"`
}

// InitializeParams is sent as the first request of a session.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// ClientInfo identifies the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
