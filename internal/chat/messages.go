package chat

import "github.com/parleychat/parley/internal/llm"

// HasImages reports whether any user message carries image attachments.
func HasImages(messages []llm.ChatMessage) bool {
	for _, msg := range messages {
		if msg.Role == llm.RoleUser && len(msg.Images) > 0 {
			return true
		}
	}
	return false
}

// StripImages drops image attachments from user messages, keeping the
// text content. Used when the target model has no vision support.
func StripImages(messages []llm.ChatMessage) []llm.ChatMessage {
	out := make([]llm.ChatMessage, len(messages))
	for i, msg := range messages {
		if msg.Role == llm.RoleUser {
			msg.Images = nil
		}
		out[i] = msg
	}
	return out
}

// InjectSystemMessage prepends a system message unless the conversation
// already starts with one.
func InjectSystemMessage(messages []llm.ChatMessage, content string) []llm.ChatMessage {
	if content == "" {
		return messages
	}
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		return messages
	}
	out := make([]llm.ChatMessage, 0, len(messages)+1)
	out = append(out, llm.ChatMessage{Role: llm.RoleSystem, Content: content})
	return append(out, messages...)
}
