package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "parley.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDialogLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dialogID, err := s.CreateDialog(ctx, 1, "first chat")
	if err != nil {
		t.Fatalf("CreateDialog: %v", err)
	}

	dialog, err := s.GetDialog(ctx, 1, dialogID)
	if err != nil {
		t.Fatalf("GetDialog: %v", err)
	}
	if dialog.Title != "first chat" {
		t.Errorf("unexpected title %q", dialog.Title)
	}

	if _, err := s.GetDialog(ctx, 2, dialogID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ownership not enforced: %v", err)
	}

	if err := s.DeleteDialog(ctx, 1, dialogID); err != nil {
		t.Fatalf("DeleteDialog: %v", err)
	}
	if err := s.DeleteDialog(ctx, 1, dialogID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMessageSequenceInterleaving(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dialogID, err := s.CreateDialog(ctx, 1, "chat")
	if err != nil {
		t.Fatalf("CreateDialog: %v", err)
	}

	if _, err := s.CreateMessage(ctx, 1, dialogID, "user", "run the tool", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := s.CreateToolCallEvent(ctx, ToolCallEvent{
		DialogID:      dialogID,
		UserID:        1,
		ToolCallID:    "call_1",
		ToolName:      "python",
		ArgumentsJSON: `{"code":"1"}`,
		ResultText:    "1",
	}); err != nil {
		t.Fatalf("CreateToolCallEvent: %v", err)
	}
	if _, err := s.CreateMessage(ctx, 1, dialogID, "assistant", "done", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	items, err := s.GetMessages(ctx, 1, dialogID, true)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Role != "user" || items[1].Role != "tool" || items[2].Role != "assistant" {
		t.Errorf("items not interleaved by sequence: %+v", items)
	}
	if items[1].ToolName != "python" || items[1].Content != "1" {
		t.Errorf("tool row wrong: %+v", items[1])
	}

	withoutTools, err := s.GetMessages(ctx, 1, dialogID, false)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(withoutTools) != 2 {
		t.Errorf("tool rows should be hidden, got %d items", len(withoutTools))
	}
}

func TestUpdateMessageCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dialogID, err := s.CreateDialog(ctx, 1, "chat")
	if err != nil {
		t.Fatalf("CreateDialog: %v", err)
	}

	firstID, err := s.CreateMessage(ctx, 1, dialogID, "user", "original", nil)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if _, err := s.CreateMessage(ctx, 1, dialogID, "assistant", "reply", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := s.CreateToolCallEvent(ctx, ToolCallEvent{
		DialogID: dialogID, UserID: 1, ToolCallID: "call_1", ToolName: "python",
	}); err != nil {
		t.Fatalf("CreateToolCallEvent: %v", err)
	}

	if err := s.UpdateMessage(ctx, 1, firstID, "edited"); err != nil {
		t.Fatalf("UpdateMessage: %v", err)
	}

	items, err := s.GetMessages(ctx, 1, dialogID, true)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("later turns should be invalidated, got %d items", len(items))
	}
	if items[0].Content != "edited" {
		t.Errorf("content not updated: %q", items[0].Content)
	}

	if err := s.UpdateMessage(ctx, 2, firstID, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ownership not enforced on update: %v", err)
	}
}

func TestListDialogsPaginationAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var lastID string
	for i := 0; i < DialogsPerPage+5; i++ {
		id, err := s.CreateDialog(ctx, 1, fmt.Sprintf("dialog %02d", i))
		if err != nil {
			t.Fatalf("CreateDialog: %v", err)
		}
		lastID = id
	}
	if _, err := s.CreateMessage(ctx, 1, lastID, "user", "needle in content", nil); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	page1, err := s.ListDialogs(ctx, 1, 1, "")
	if err != nil {
		t.Fatalf("ListDialogs: %v", err)
	}
	if len(page1.Dialogs) != DialogsPerPage || !page1.HasNext || page1.HasPrev {
		t.Errorf("page 1 wrong: %d dialogs, next=%v prev=%v", len(page1.Dialogs), page1.HasNext, page1.HasPrev)
	}

	page2, err := s.ListDialogs(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("ListDialogs: %v", err)
	}
	if len(page2.Dialogs) != 5 || page2.HasNext || !page2.HasPrev {
		t.Errorf("page 2 wrong: %d dialogs, next=%v prev=%v", len(page2.Dialogs), page2.HasNext, page2.HasPrev)
	}

	byTitle, err := s.ListDialogs(ctx, 1, 1, "dialog 03")
	if err != nil {
		t.Fatalf("ListDialogs: %v", err)
	}
	if byTitle.NumDialogs != 1 {
		t.Errorf("title search found %d dialogs", byTitle.NumDialogs)
	}

	byContent, err := s.ListDialogs(ctx, 1, 1, "needle")
	if err != nil {
		t.Fatalf("ListDialogs: %v", err)
	}
	if byContent.NumDialogs != 1 || byContent.Dialogs[0].ID != lastID {
		t.Errorf("content search wrong: %+v", byContent)
	}

	other, err := s.ListDialogs(ctx, 2, 1, "")
	if err != nil {
		t.Fatalf("ListDialogs: %v", err)
	}
	if other.NumDialogs != 0 {
		t.Errorf("dialogs leaked across users: %d", other.NumDialogs)
	}
}

func TestPromptCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreatePrompt(ctx, 1, "greeting", "say hi")
	if err != nil {
		t.Fatalf("CreatePrompt: %v", err)
	}

	prompt, err := s.GetPrompt(ctx, 1, id)
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if prompt.Title != "greeting" || prompt.Prompt != "say hi" {
		t.Errorf("unexpected prompt: %+v", prompt)
	}

	if err := s.UpdatePrompt(ctx, 1, id, "greeting2", "say hello"); err != nil {
		t.Fatalf("UpdatePrompt: %v", err)
	}
	prompts, err := s.ListPrompts(ctx, 1)
	if err != nil {
		t.Fatalf("ListPrompts: %v", err)
	}
	if len(prompts) != 1 || prompts[0].Title != "greeting2" {
		t.Errorf("update not visible: %+v", prompts)
	}

	if err := s.DeletePrompt(ctx, 2, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("ownership not enforced on delete: %v", err)
	}
	if err := s.DeletePrompt(ctx, 1, id); err != nil {
		t.Fatalf("DeletePrompt: %v", err)
	}
}
