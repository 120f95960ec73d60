package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestPythonToolRunsCommand(t *testing.T) {
	tool := &PythonTool{Command: []string{"cat"}}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"code":"print(1)"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "print(1)" {
		t.Errorf("code not piped through stdin: %q", result)
	}
}

func TestPythonToolEmptyOutput(t *testing.T) {
	tool := &PythonTool{Command: []string{"true"}}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"code":""}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "OK" {
		t.Errorf("expected OK for empty output, got %q", result)
	}
}

func TestPythonToolCommandFailure(t *testing.T) {
	tool := &PythonTool{Command: []string{"false"}}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"code":"x"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result, "[exit]") {
		t.Errorf("expected exit marker in result, got %q", result)
	}
}

func TestPythonToolUnconfigured(t *testing.T) {
	tool := &PythonTool{}
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"code":"x"}`)); err == nil {
		t.Fatal("expected error for unconfigured tool")
	}
}
