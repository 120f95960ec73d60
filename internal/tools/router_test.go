package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/parleychat/parley/internal/llm"
)

type echoTool struct {
	name  string
	calls int
}

func (t *echoTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Type:     "function",
		Function: llm.FunctionSpec{Name: t.name},
	}
}

func (t *echoTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	t.calls++
	return "echo:" + string(args), nil
}

func TestRouterDispatchesToRegistry(t *testing.T) {
	registry := NewRegistry()
	echo := &echoTool{name: "echo"}
	registry.Register(echo)
	router := &Router{Registry: registry}

	result, err := router.Execute(context.Background(), llm.ToolCallRequest{
		ID:   "call_1",
		Type: "function",
		Function: llm.FunctionCall{
			Name:      "echo",
			Arguments: `{"x":1}`,
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != `echo:{"x":1}` {
		t.Errorf("unexpected result: %q", result)
	}
	if echo.calls != 1 {
		t.Errorf("expected 1 call, got %d", echo.calls)
	}
}

func TestRouterUnknownTool(t *testing.T) {
	router := &Router{Registry: NewRegistry()}

	result, err := router.Execute(context.Background(), llm.ToolCallRequest{
		Function: llm.FunctionCall{Name: "nope", Arguments: "{}"},
	})
	if err != nil {
		t.Fatalf("unknown tools should not error: %v", err)
	}
	if result != "Unknown tool: nope" {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestRegistrySpecsOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&echoTool{name: "b"})
	registry.Register(&echoTool{name: "a"})

	specs := registry.Specs()
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Function.Name != "b" || specs[1].Function.Name != "a" {
		t.Errorf("registration order not preserved: %v", specs)
	}
}
