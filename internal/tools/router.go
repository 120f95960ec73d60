package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parleychat/parley/internal/llm"
	"github.com/parleychat/parley/internal/mcp"
)

// Router dispatches finalized tool calls: local registry first, then
// the remote MCP server when one is configured. An unknown tool name
// produces a descriptive result string rather than an error so the
// model can recover.
type Router struct {
	Registry *Registry
	Remote   *mcp.Client
}

// Specs returns the combined tool definitions, local tools first.
func (r *Router) Specs(ctx context.Context) ([]llm.ToolSpec, error) {
	var specs []llm.ToolSpec
	if r.Registry != nil {
		specs = append(specs, r.Registry.Specs()...)
	}
	if r.Remote != nil {
		remote, err := r.Remote.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		specs = append(specs, remote...)
	}
	return specs, nil
}

// Execute runs one tool call and returns its textual result.
func (r *Router) Execute(ctx context.Context, call llm.ToolCallRequest) (string, error) {
	name := call.Function.Name
	if r.Registry != nil {
		if tool, ok := r.Registry.Get(name); ok {
			return tool.Execute(ctx, json.RawMessage(call.Function.Arguments))
		}
	}
	if r.Remote != nil {
		return r.Remote.CallTool(ctx, name, call.Function.Arguments)
	}
	return fmt.Sprintf("Unknown tool: %s", name), nil
}
