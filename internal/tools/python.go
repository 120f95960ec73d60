package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/parleychat/parley/internal/llm"
)

// PythonTool executes model-supplied Python code through a configured
// interpreter command, typically a sandbox wrapper. The code is written
// to the command's stdin; stdout and stderr are captured and returned.
// The sandboxing policy lives entirely in the configured command.
type PythonTool struct {
	// Command is the interpreter invocation, e.g.
	// ["python3", "-"] or a container wrapper script.
	Command []string
}

func (t *PythonTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Type: "function",
		Function: llm.FunctionSpec{
			Name:        "python",
			Description: "Execute Python code and return output/result.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"code": {
						"type": "string",
						"description": "Python code to execute."
					}
				},
				"required": ["code"],
				"additionalProperties": false
			}`),
		},
	}
}

func (t *PythonTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid python tool arguments: %w", err)
	}
	if len(t.Command) == 0 {
		return "", fmt.Errorf("python tool is not configured")
	}

	cmd := exec.CommandContext(ctx, t.Command[0], t.Command[1:]...)
	cmd.Stdin = strings.NewReader(params.Code)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var parts []string
	if out := strings.TrimRight(stdout.String(), "\n"); out != "" {
		parts = append(parts, out)
	}
	if errOut := strings.TrimRight(stderr.String(), "\n"); errOut != "" {
		parts = append(parts, "[stderr]\n"+errOut)
	}
	if runErr != nil {
		parts = append(parts, fmt.Sprintf("[exit] %v", runErr))
	}

	result := strings.TrimSpace(strings.Join(parts, "\n"))
	if result == "" {
		result = "OK"
	}
	return result, nil
}
