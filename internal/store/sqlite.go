package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DialogsPerPage is the dialog list page size.
const DialogsPerPage = 20

// Store persists dialogs, messages, tool-call events and prompts in
// SQLite. Ordering within a dialog is a per-dialog monotonic sequence
// index shared between messages and tool-call events, assigned inside
// the insert transaction.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS dialogs (
    dialog_id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dialogs_user_id ON dialogs(user_id);

CREATE TABLE IF NOT EXISTS messages (
    message_id INTEGER PRIMARY KEY AUTOINCREMENT,
    dialog_id TEXT NOT NULL REFERENCES dialogs(dialog_id) ON DELETE CASCADE,
    user_id INTEGER NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system', 'tool')),
    content TEXT NOT NULL,
    images TEXT NOT NULL DEFAULT '[]',
    sequence_index INTEGER NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_dialog ON messages(dialog_id, sequence_index);
CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id);

CREATE TABLE IF NOT EXISTS tool_call_events (
    tool_call_event_id INTEGER PRIMARY KEY AUTOINCREMENT,
    dialog_id TEXT NOT NULL REFERENCES dialogs(dialog_id) ON DELETE CASCADE,
    user_id INTEGER NOT NULL,
    tool_call_id TEXT NOT NULL,
    tool_name TEXT NOT NULL,
    arguments_json TEXT NOT NULL DEFAULT '{}',
    result_text TEXT NOT NULL DEFAULT '',
    error_text TEXT NOT NULL DEFAULT '',
    sequence_index INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tool_events_dialog ON tool_call_events(dialog_id, sequence_index);

CREATE TABLE IF NOT EXISTS prompts (
    prompt_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    prompt TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_prompts_user_id ON prompts(user_id);
`

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// nextSequence returns the next sequence index for a dialog, counting
// both messages and tool-call events. Must run inside the caller's
// transaction.
func nextSequence(ctx context.Context, tx *sql.Tx, dialogID string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM (
			SELECT sequence_index AS seq FROM messages WHERE dialog_id = ?
			UNION ALL
			SELECT sequence_index FROM tool_call_events WHERE dialog_id = ?
		)`, dialogID, dialogID).Scan(&seq)
	return seq, err
}

// CreateDialog creates a dialog and returns its id.
func (s *Store) CreateDialog(ctx context.Context, userID int64, title string) (string, error) {
	dialogID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dialogs (dialog_id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		dialogID, userID, title, time.Now())
	if err != nil {
		return "", fmt.Errorf("create dialog: %w", err)
	}
	return dialogID, nil
}

// GetDialog fetches a dialog scoped to its owner.
func (s *Store) GetDialog(ctx context.Context, userID int64, dialogID string) (Dialog, error) {
	var d Dialog
	err := s.db.QueryRowContext(ctx,
		`SELECT dialog_id, user_id, title, created_at FROM dialogs WHERE dialog_id = ? AND user_id = ?`,
		dialogID, userID).Scan(&d.ID, &d.UserID, &d.Title, &d.Created)
	if err == sql.ErrNoRows {
		return Dialog{}, ErrNotFound
	}
	if err != nil {
		return Dialog{}, fmt.Errorf("get dialog: %w", err)
	}
	return d, nil
}

// DeleteDialog removes a dialog and, via foreign keys, its messages
// and tool-call events.
func (s *Store) DeleteDialog(ctx context.Context, userID int64, dialogID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM dialogs WHERE dialog_id = ? AND user_id = ?`, dialogID, userID)
	if err != nil {
		return fmt.Errorf("delete dialog: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDialogs returns one page of the user's dialogs, newest first.
// A non-empty query matches dialog titles and active message content.
func (s *Store) ListDialogs(ctx context.Context, userID int64, page int, query string) (DialogPage, error) {
	if page < 1 {
		page = 1
	}
	query = strings.TrimSpace(query)

	where := `WHERE d.user_id = ?`
	args := []any{userID}
	if query != "" {
		pattern := "%" + query + "%"
		where += ` AND (d.title LIKE ? OR EXISTS (
			SELECT 1 FROM messages m
			WHERE m.dialog_id = d.dialog_id AND m.user_id = ? AND m.active AND m.content LIKE ?
		))`
		args = append(args, pattern, userID, pattern)
	}

	var total int
	countArgs := append([]any{}, args...)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dialogs d `+where, countArgs...).Scan(&total); err != nil {
		return DialogPage{}, fmt.Errorf("count dialogs: %w", err)
	}

	args = append(args, DialogsPerPage, (page-1)*DialogsPerPage)
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.dialog_id, d.user_id, d.title, d.created_at FROM dialogs d `+where+
			` ORDER BY d.created_at DESC, d.dialog_id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return DialogPage{}, fmt.Errorf("list dialogs: %w", err)
	}
	defer rows.Close()

	dialogs := []Dialog{}
	for rows.Next() {
		var d Dialog
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Created); err != nil {
			return DialogPage{}, err
		}
		dialogs = append(dialogs, d)
	}
	if err := rows.Err(); err != nil {
		return DialogPage{}, err
	}

	result := DialogPage{
		CurrentPage: page,
		PerPage:     DialogsPerPage,
		HasPrev:     page > 1,
		HasNext:     total > page*DialogsPerPage,
		Dialogs:     dialogs,
		NumDialogs:  total,
	}
	if result.HasPrev {
		result.PrevPage = page - 1
	}
	if result.HasNext {
		result.NextPage = page + 1
	}
	return result, nil
}

// CreateMessage stores a message, assigning the dialog's next sequence
// index, and returns the message id.
func (s *Store) CreateMessage(ctx context.Context, userID int64, dialogID, role, content string, images []string) (int64, error) {
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return 0, err
	}
	if images == nil {
		imagesJSON = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	seq, err := nextSequence(ctx, tx, dialogID)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (dialog_id, user_id, role, content, images, sequence_index, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dialogID, userID, role, content, string(imagesJSON), seq, time.Now())
	if err != nil {
		return 0, fmt.Errorf("create message: %w", err)
	}
	messageID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return messageID, nil
}

// CreateToolCallEvent records one executed tool call at the dialog's
// next sequence index.
func (s *Store) CreateToolCallEvent(ctx context.Context, ev ToolCallEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq, err := nextSequence(ctx, tx, ev.DialogID)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tool_call_events (dialog_id, user_id, tool_call_id, tool_name, arguments_json, result_text, error_text, sequence_index, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.DialogID, ev.UserID, ev.ToolCallID, ev.ToolName, ev.ArgumentsJSON, ev.ResultText, ev.ErrorText, seq, time.Now())
	if err != nil {
		return fmt.Errorf("create tool call event: %w", err)
	}

	return tx.Commit()
}

// GetMessages returns the dialog's visible history: active messages
// and, when includeTools is set, tool-call events, interleaved by
// sequence index.
func (s *Store) GetMessages(ctx context.Context, userID int64, dialogID string, includeTools bool) ([]ConversationItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, images, sequence_index, created_at
		 FROM messages WHERE dialog_id = ? AND user_id = ? AND active
		 ORDER BY sequence_index ASC LIMIT 1000`, dialogID, userID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	items := []ConversationItem{}
	for rows.Next() {
		var item ConversationItem
		var imagesJSON string
		if err := rows.Scan(&item.MessageID, &item.Role, &item.Content, &imagesJSON, &item.Sequence, &item.Created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(imagesJSON), &item.Images); err != nil {
			item.Images = nil
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if includeTools {
		toolRows, err := s.db.QueryContext(ctx,
			`SELECT tool_call_id, tool_name, arguments_json, result_text, error_text, sequence_index, created_at
			 FROM tool_call_events WHERE dialog_id = ? AND user_id = ?
			 ORDER BY sequence_index ASC`, dialogID, userID)
		if err != nil {
			return nil, fmt.Errorf("get tool call events: %w", err)
		}
		defer toolRows.Close()

		for toolRows.Next() {
			var item ConversationItem
			var resultText string
			if err := toolRows.Scan(&item.ToolCallID, &item.ToolName, &item.ArgumentsJSON, &resultText, &item.ErrorText, &item.Sequence, &item.Created); err != nil {
				return nil, err
			}
			item.Role = "tool"
			item.Content = resultText
			if resultText == "" {
				item.Content = item.ErrorText
			}
			items = append(items, item)
		}
		if err := toolRows.Err(); err != nil {
			return nil, err
		}

		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Sequence < items[j].Sequence
		})
	}

	return items, nil
}

// UpdateMessage edits a message's content, deactivates all later
// messages in the dialog and deletes later tool-call events, so the
// next turn replays from the edit point.
func (s *Store) UpdateMessage(ctx context.Context, userID, messageID int64, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var dialogID string
	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT dialog_id, sequence_index FROM messages WHERE message_id = ? AND user_id = ?`,
		messageID, userID).Scan(&dialogID, &seq)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET content = ? WHERE message_id = ?`, content, messageID); err != nil {
		return fmt.Errorf("update message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE messages SET active = FALSE WHERE dialog_id = ? AND user_id = ? AND sequence_index > ?`,
		dialogID, userID, seq); err != nil {
		return fmt.Errorf("deactivate later messages: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tool_call_events WHERE dialog_id = ? AND user_id = ? AND sequence_index > ?`,
		dialogID, userID, seq); err != nil {
		return fmt.Errorf("delete later tool call events: %w", err)
	}

	return tx.Commit()
}

// CreatePrompt stores a saved prompt and returns its id.
func (s *Store) CreatePrompt(ctx context.Context, userID int64, title, prompt string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (user_id, title, prompt, created_at) VALUES (?, ?, ?, ?)`,
		userID, title, prompt, time.Now())
	if err != nil {
		return 0, fmt.Errorf("create prompt: %w", err)
	}
	return result.LastInsertId()
}

// ListPrompts returns the user's prompts, newest first.
func (s *Store) ListPrompts(ctx context.Context, userID int64) ([]Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT prompt_id, user_id, title, prompt, created_at FROM prompts WHERE user_id = ? ORDER BY created_at DESC, prompt_id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	prompts := []Prompt{}
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Prompt, &p.Created); err != nil {
			return nil, err
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// GetPrompt fetches one prompt scoped to its owner.
func (s *Store) GetPrompt(ctx context.Context, userID, promptID int64) (Prompt, error) {
	var p Prompt
	err := s.db.QueryRowContext(ctx,
		`SELECT prompt_id, user_id, title, prompt, created_at FROM prompts WHERE prompt_id = ? AND user_id = ?`,
		promptID, userID).Scan(&p.ID, &p.UserID, &p.Title, &p.Prompt, &p.Created)
	if err == sql.ErrNoRows {
		return Prompt{}, ErrNotFound
	}
	if err != nil {
		return Prompt{}, fmt.Errorf("get prompt: %w", err)
	}
	return p, nil
}

// UpdatePrompt edits a prompt's title and text.
func (s *Store) UpdatePrompt(ctx context.Context, userID, promptID int64, title, prompt string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET title = ?, prompt = ? WHERE prompt_id = ? AND user_id = ?`,
		title, prompt, promptID, userID)
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePrompt removes one prompt.
func (s *Store) DeletePrompt(ctx context.Context, userID, promptID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM prompts WHERE prompt_id = ? AND user_id = ?`, promptID, userID)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
