package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is one entry in the conversation passed to the provider.
// User messages may carry image attachments as data URLs; those marshal
// to the content-parts wire shape instead of a plain string.
type ChatMessage struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Images     []string          `json:"images,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
}

// ToolCallRequest is a completed provider-requested tool invocation.
type ToolCallRequest struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallDelta is a partial tool-call fragment from one streamed chunk.
// Index positions the call within the turn's tool-call list; id, name and
// arguments may each arrive independently across many fragments.
type ToolCallDelta struct {
	Index    int           `json:"index"`
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Function FunctionDelta `json:"function"`
}

// FunctionDelta is the function sub-object of a streamed fragment.
// Arguments are appended incrementally across fragments, never replaced.
type FunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolSpec is an OpenAI function-tool definition sent with a request.
type ToolSpec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes one callable function and its JSON schema.
type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatRequest is one streaming completion request.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Tools    []ToolSpec
}

// Event is one unit received from a provider stream. Raw carries the
// provider chunk verbatim so callers can relay it unmodified; the parsed
// fields are extracted from the same chunk.
type Event struct {
	Raw          json.RawMessage
	Content      string
	ToolCalls    []ToolCallDelta
	FinishReason string
}

// Stream yields events from an in-progress provider response.
// Recv returns io.EOF after the final event; Close releases the
// underlying connection and is safe to call more than once.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Streamer opens streaming completions. Implemented by Client and by
// test fakes.
type Streamer interface {
	StreamChat(ctx context.Context, req ChatRequest) (Stream, error)
}

// ModelInfo describes one model reported by a provider's models endpoint.
type ModelInfo struct {
	ID      string `json:"id"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// contentPart is one element of a multi-part user message.
type contentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *imageURLBlock `json:"image_url,omitempty"`
}

type imageURLBlock struct {
	URL string `json:"url"`
}

// MarshalJSON emits the OpenAI wire shape: plain string content unless
// the message carries images, in which case content becomes a part list.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type plain struct {
		Role       Role              `json:"role"`
		Content    string            `json:"content"`
		ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
		ToolCallID string            `json:"tool_call_id,omitempty"`
	}
	if len(m.Images) == 0 {
		return json.Marshal(plain{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}
	parts := make([]contentPart, 0, len(m.Images)+1)
	if m.Content != "" {
		parts = append(parts, contentPart{Type: "text", Text: m.Content})
	}
	for _, img := range m.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURLBlock{URL: img}})
	}
	type multi struct {
		Role    Role          `json:"role"`
		Content []contentPart `json:"content"`
	}
	return json.Marshal(multi{Role: m.Role, Content: parts})
}
