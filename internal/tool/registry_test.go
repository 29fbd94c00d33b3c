package tool

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"coursechat/internal/domain"
)

// stubTool is a minimal tool for testing the registry.
type stubTool struct {
	name    string
	result  string
	sources []domain.SourceRef
	err     error
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "stub: " + s.name }
func (s *stubTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, []domain.SourceRef, error) {
	return s.result, s.sources, s.err
}

var _ domain.Tool = (*stubTool)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "test_tool", result: "ok"})

	got := reg.Get("test_tool")
	if got == nil {
		t.Fatal("expected to find registered tool")
	}
	if got.Name() != "test_tool" {
		t.Fatalf("expected 'test_tool', got %q", got.Name())
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := NewRegistry(testLogger())
	if got := reg.Get("nonexistent"); got != nil {
		t.Fatal("expected nil for unknown tool")
	}
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{
		name:    "echo",
		result:  "hello",
		sources: []domain.SourceRef{{Label: "Echo - Lesson 1"}},
	})

	result, sources, err := reg.Execute(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != "hello" {
		t.Fatalf("expected 'hello', got %q", result)
	}
	if len(sources) != 1 || sources[0].Label != "Echo - Lesson 1" {
		t.Fatalf("expected tool sources to pass through, got %v", sources)
	}
}

func TestRegistry_ExecuteUnknown(t *testing.T) {
	reg := NewRegistry(testLogger())
	_, _, err := reg.Execute(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegistry_NamesInRegistrationOrder(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "alpha"})
	reg.Register(&stubTool{name: "beta"})
	reg.Register(&stubTool{name: "gamma"})

	names := reg.Names()
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %d", len(names))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if names[i] != want {
			t.Fatalf("expected %q at position %d, got %v", want, i, names)
		}
	}
}

func TestRegistry_GetDefinitionsOrder(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "tool1"})
	reg.Register(&stubTool{name: "tool2"})

	defs := reg.GetDefinitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "tool1" || defs[1].Name != "tool2" {
		t.Fatalf("definitions out of registration order: %v", defs)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	reg := NewRegistry(testLogger())
	reg.Register(&stubTool{name: "first"})
	reg.Register(&stubTool{name: "dup", result: "v1"})
	reg.Register(&stubTool{name: "dup", result: "v2"})

	result, _, _ := reg.Execute(context.Background(), "dup", nil)
	if result != "v2" {
		t.Fatalf("expected overwritten tool result 'v2', got %q", result)
	}

	// Replacement keeps the original schema position.
	names := reg.Names()
	if len(names) != 2 || names[0] != "first" || names[1] != "dup" {
		t.Fatalf("expected [first dup], got %v", names)
	}
}

// --- ToolParameters ---

func TestToolParameters_WithRequired(t *testing.T) {
	params := ToolParameters(
		map[string]Param{
			"query":       {Type: "string", Description: "The search text"},
			"course_name": {Type: "string", Description: "Optional course filter"},
		},
		[]string{"query"},
	)

	if params["type"] != "object" {
		t.Fatal("expected type=object")
	}
	props := params["properties"].(map[string]any)
	if len(props) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(props))
	}

	queryParam := props["query"].(map[string]any)
	if queryParam["description"] != "The search text" {
		t.Fatalf("expected 'The search text', got %q", queryParam["description"])
	}

	required := params["required"].([]string)
	if len(required) != 1 || required[0] != "query" {
		t.Fatalf("unexpected required: %v", required)
	}
}

func TestToolParameters_NoRequired(t *testing.T) {
	params := ToolParameters(
		map[string]Param{
			"query": {Type: "string", Description: "Search query"},
		},
		nil,
	)
	if _, ok := params["required"]; ok {
		t.Fatal("should not have 'required' key when nil")
	}
}

// --- ArgsString / ArgsInt ---

func TestArgsString_StringValue(t *testing.T) {
	args := map[string]any{"key": "value"}
	if got := ArgsString(args, "key"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
}

func TestArgsString_MissingKey(t *testing.T) {
	args := map[string]any{"other": "value"}
	if got := ArgsString(args, "key"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestArgsString_NilArgs(t *testing.T) {
	if got := ArgsString(nil, "key"); got != "" {
		t.Fatalf("expected empty for nil args, got %q", got)
	}
}

func TestArgsInt_Float64(t *testing.T) {
	args := map[string]any{"lesson_number": 3.0}
	n, ok := ArgsInt(args, "lesson_number")
	if !ok || n != 3 {
		t.Fatalf("expected 3, got %d ok=%v", n, ok)
	}
}

func TestArgsInt_StringDigits(t *testing.T) {
	args := map[string]any{"lesson_number": " 7 "}
	n, ok := ArgsInt(args, "lesson_number")
	if !ok || n != 7 {
		t.Fatalf("expected 7, got %d ok=%v", n, ok)
	}
}

func TestArgsInt_Absent(t *testing.T) {
	if _, ok := ArgsInt(map[string]any{}, "lesson_number"); ok {
		t.Fatal("expected ok=false for absent key")
	}
	if _, ok := ArgsInt(nil, "lesson_number"); ok {
		t.Fatal("expected ok=false for nil args")
	}
}

func TestArgsInt_Garbage(t *testing.T) {
	if _, ok := ArgsInt(map[string]any{"lesson_number": "three"}, "lesson_number"); ok {
		t.Fatal("expected ok=false for non-numeric string")
	}
}
