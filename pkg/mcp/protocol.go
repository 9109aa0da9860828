package mcp

// NewRequest builds a JSON-RPC request. Params are passed through untouched;
// the server decides whether they are valid.
func NewRequest(method string, params any, id any) RequestMessage {
	return RequestMessage{
		Jsonrpc: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewToolCallRequest builds a "tools/call" request for the named tool.
func NewToolCallRequest(toolName string, arguments map[string]any, id any) RequestMessage {
	return NewRequest(MethodToolsCall, CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	}, id)
}

// NewNotification builds a request without an ID. Servers do not reply to it.
func NewNotification(method string, params any) RequestMessage {
	return RequestMessage{
		Jsonrpc: Version,
		Method:  method,
		Params:  params,
	}
}
