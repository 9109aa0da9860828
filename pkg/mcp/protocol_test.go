package mcp_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/clssck/pdf-mcp-client/pkg/mcp"
)

func TestNewToolCallRequestShape(t *testing.T) {
	req := mcp.NewToolCallRequest("extract_text", map[string]any{"fileContent": "abc"}, 7)

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"extract_text","arguments":{"fileContent":"abc"}}}`
	if string(data) != want {
		t.Errorf("unexpected envelope\n got: %s\nwant: %s", data, want)
	}
}

func TestNewRequestPassesParamsThrough(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params any
		id     any
		want   string
	}{
		{
			name:   "integer id",
			method: "tools/list",
			params: map[string]any{},
			id:     1,
			want:   `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`,
		},
		{
			name:   "string id",
			method: "custom/method",
			params: map[string]any{"anything": []int{1, 2}},
			id:     "req-9",
			want:   `{"jsonrpc":"2.0","id":"req-9","method":"custom/method","params":{"anything":[1,2]}}`,
		},
		{
			name:   "empty method is not validated",
			method: "",
			params: map[string]any{"k": "v"},
			id:     3,
			want:   `{"jsonrpc":"2.0","id":3,"method":"","params":{"k":"v"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(mcp.NewRequest(tt.method, tt.params, tt.id))
			if err != nil {
				t.Fatalf("marshal error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestNewNotificationOmitsID(t *testing.T) {
	data, err := json.Marshal(mcp.NewNotification("notifications/initialized", nil))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	want := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestResponseOutcome(t *testing.T) {
	var ok mcp.ResponseMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[]}}`), &ok); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	result, err := ok.Outcome()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"content":[]}` {
		t.Errorf("unexpected result %s", result)
	}

	var failed mcp.ResponseMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":2,"error":{"code":-32602,"message":"Invalid PDF"}}`), &failed); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	_, err = failed.Outcome()
	var rpcErr *mcp.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *mcp.Error, got %T", err)
	}
	if rpcErr.Code != mcp.ErrorCodeInvalidParams {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
	if rpcErr.Error() != "MCP error [-32602]: Invalid PDF" {
		t.Errorf("unexpected message %q", rpcErr.Error())
	}
}
