package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist or is not owned
// by the requesting user.
var ErrNotFound = errors.New("record not found")

// Dialog is one conversation owned by a user.
type Dialog struct {
	ID      string    `json:"dialog_id"`
	UserID  int64     `json:"-"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

// Message is one stored chat message. Edited-away turns stay in the
// table with Active false so a dialog's history is append-only.
type Message struct {
	ID       int64     `json:"message_id"`
	DialogID string    `json:"dialog_id"`
	UserID   int64     `json:"-"`
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Images   []string  `json:"images"`
	Sequence int64     `json:"sequence_index"`
	Active   bool      `json:"-"`
	Created  time.Time `json:"created"`
}

// ToolCallEvent records one executed tool invocation within a dialog.
type ToolCallEvent struct {
	ID            int64     `json:"-"`
	DialogID      string    `json:"dialog_id"`
	UserID        int64     `json:"-"`
	ToolCallID    string    `json:"tool_call_id"`
	ToolName      string    `json:"tool_name"`
	ArgumentsJSON string    `json:"arguments_json"`
	ResultText    string    `json:"result_text"`
	ErrorText     string    `json:"error_text"`
	Sequence      int64     `json:"sequence_index"`
	Created       time.Time `json:"created"`
}

// ConversationItem is one row of a dialog's visible history: either an
// active message or a tool-call event, ordered by sequence index.
type ConversationItem struct {
	MessageID     int64     `json:"message_id,omitempty"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Images        []string  `json:"images"`
	Sequence      int64     `json:"sequence_index"`
	Created       time.Time `json:"created"`
	ToolCallID    string    `json:"tool_call_id,omitempty"`
	ToolName      string    `json:"tool_name,omitempty"`
	ArgumentsJSON string    `json:"arguments_json,omitempty"`
	ErrorText     string    `json:"error_text,omitempty"`
}

// DialogPage is one page of a user's dialog list.
type DialogPage struct {
	CurrentPage int      `json:"current_page"`
	PerPage     int      `json:"per_page"`
	HasPrev     bool     `json:"has_prev"`
	HasNext     bool     `json:"has_next"`
	PrevPage    int      `json:"prev_page"`
	NextPage    int      `json:"next_page"`
	Dialogs     []Dialog `json:"dialogs"`
	NumDialogs  int      `json:"num_dialogs"`
}

// Prompt is a user-saved prompt snippet.
type Prompt struct {
	ID      int64     `json:"prompt_id"`
	UserID  int64     `json:"-"`
	Title   string    `json:"title"`
	Prompt  string    `json:"prompt"`
	Created time.Time `json:"created"`
}
