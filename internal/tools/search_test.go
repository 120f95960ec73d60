package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestGoogleSearchUnconfigured(t *testing.T) {
	tool := &GoogleSearchTool{}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"go"}`))
	if err != nil {
		t.Fatalf("configuration problems should be reported in-band: %v", err)
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(result), &payload); err != nil {
		t.Fatalf("result not JSON: %q", result)
	}
	if !strings.Contains(payload.Error, "not configured") {
		t.Errorf("unexpected error text: %q", payload.Error)
	}
}

func TestGoogleSearchMissingQuery(t *testing.T) {
	tool := &GoogleSearchTool{APIKey: "k", CX: "c"}

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result, "Missing required parameter: query") {
		t.Errorf("unexpected result: %q", result)
	}
}
