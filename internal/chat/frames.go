package chat

import "encoding/json"

// Frame shapes sent to the client during a chat turn. Raw provider
// chunks are relayed verbatim and never pass through these types.

// ToolStatus announces a phase change for one tool invocation.
type ToolStatus struct {
	Phase      string `json:"phase"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
}

// ToolCallResult carries the outcome of one executed tool call.
type ToolCallResult struct {
	ToolCallID    string `json:"tool_call_id"`
	ToolName      string `json:"tool_name"`
	ArgumentsJSON string `json:"arguments_json"`
	Content       string `json:"content"`
	ErrorText     string `json:"error_text"`
}

func toolStatusFrame(phase, callID, name string) []byte {
	frame, _ := json.Marshal(map[string]ToolStatus{
		"tool_status": {Phase: phase, ToolCallID: callID, ToolName: name},
	})
	return frame
}

func toolCallFrame(result ToolCallResult) []byte {
	frame, _ := json.Marshal(map[string]ToolCallResult{"tool_call": result})
	return frame
}

func errorFrame(msg string) []byte {
	frame, _ := json.Marshal(map[string]string{"error": msg})
	return frame
}
