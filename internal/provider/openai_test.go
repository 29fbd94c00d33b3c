package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"coursechat/internal/domain"
)

const openaiToolReply = `{
	"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
	"choices":[{"index":0,"message":{"role":"assistant","content":"",
		"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_course_content","arguments":"{\"query\":\"vectors\",\"lesson_number\":2}"}}]},
		"finish_reason":"tool_calls"}],
	"usage":{"prompt_tokens":7,"completion_tokens":9,"total_tokens":16}}`

const openaiTextReply = `{
	"id":"chatcmpl-2","object":"chat.completion","created":1,"model":"gpt-4o-mini",
	"choices":[{"index":0,"message":{"role":"assistant","content":"final answer"},"finish_reason":"stop"}],
	"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`

func newOpenAIServer(reply string) (*httptest.Server, *requestCapture) {
	capture := &requestCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		capture.mu.Lock()
		capture.body = body
		capture.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, reply)
	}))
	return srv, capture
}

type requestCapture struct {
	mu   sync.Mutex
	body []byte
}

func (c *requestCapture) decode(t *testing.T) map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var m map[string]any
	if err := json.Unmarshal(c.body, &m); err != nil {
		t.Fatalf("decode captured request: %v", err)
	}
	return m
}

func TestOpenAIChat_ParsesToolCalls(t *testing.T) {
	srv, _ := newOpenAIServer(openaiToolReply)
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "q"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "search_course_content" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	if tc.Arguments["query"] != "vectors" {
		t.Fatalf("expected parsed arguments, got %v", tc.Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Fatalf("expected tool_calls finish reason, got %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Fatalf("expected usage, got %+v", resp.Usage)
	}
}

func TestOpenAIChat_MapsToolResultRole(t *testing.T) {
	srv, capture := newOpenAIServer(openaiTextReply)
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "q"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{
				ID: "call_1", Name: "search_course_content",
				Arguments: map[string]any{"query": "q"},
			}}},
			{Role: domain.RoleTool, ToolCallID: "call_1", Content: "results"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	req := capture.decode(t)
	msgs := req["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	assistant := msgs[1].(map[string]any)
	calls, ok := assistant["tool_calls"].([]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("expected assistant tool_calls, got %v", assistant)
	}

	toolMsg := msgs[2].(map[string]any)
	if toolMsg["role"] != "tool" {
		t.Fatalf("expected tool role, got %v", toolMsg["role"])
	}
	if toolMsg["tool_call_id"] != "call_1" {
		t.Fatalf("expected tool_call_id, got %v", toolMsg["tool_call_id"])
	}
	if toolMsg["content"] != "results" {
		t.Fatalf("expected tool output, got %v", toolMsg["content"])
	}
}

func TestOpenAIChat_SendsFunctionTools(t *testing.T) {
	srv, capture := newOpenAIServer(openaiTextReply)
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "q"}},
		Tools: []domain.ToolDefinition{{
			Name:        "search_course_content",
			Description: "Search course materials",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	req := capture.decode(t)
	tools, ok := req["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("expected 1 tool in request, got %v", req["tools"])
	}
	tool := tools[0].(map[string]any)
	if tool["type"] != "function" {
		t.Fatalf("expected function tool, got %v", tool["type"])
	}
	fn := tool["function"].(map[string]any)
	if fn["name"] != "search_course_content" {
		t.Fatalf("expected tool name, got %v", fn["name"])
	}
}

func TestOpenAIChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "bad", APIBase: srv.URL, Logger: testLogger()})
	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "q"}},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}
