package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parleychat/parley/internal/chat"
	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/llm"
	"github.com/parleychat/parley/internal/store"
)

type sliceStream struct {
	events []llm.Event
	index  int
}

func (s *sliceStream) Recv() (llm.Event, error) {
	if s.index >= len(s.events) {
		return llm.Event{}, io.EOF
	}
	ev := s.events[s.index]
	s.index++
	return ev, nil
}

func (s *sliceStream) Close() error { return nil }

type streamerFunc func(req llm.ChatRequest) (llm.Stream, error)

func (f streamerFunc) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	return f(req)
}

func textEvent(text string) llm.Event {
	raw := fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, text)
	return llm.Event{Raw: json.RawMessage(raw), Content: text}
}

const testAuthToken = "test-static-token"
const testAuthSecret = "test-signing-secret"

func newTestServer(t *testing.T, events []llm.Event) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "parley.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.AuthToken = testAuthToken
	cfg.Server.AuthSecret = testAuthSecret
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Chat.DefaultModel = "test-model"
	cfg.Chat.VisionModels = []string{"vision-model"}
	cfg.Models = map[string]config.ModelConfig{"test-model": {Provider: "test"}}
	cfg.Providers = map[string]config.ProviderConfig{"test": {BaseURL: "http://unused.invalid"}}

	orch := &chat.Orchestrator{
		Resolve: chat.NewProviderResolver(
			map[string]chat.ProviderInfo{"test": {BaseURL: "http://unused.invalid"}},
			map[string]chat.ModelRoute{"test-model": {Provider: "test"}},
		),
		NewStreamer: func(info chat.ProviderInfo) llm.Streamer {
			return streamerFunc(func(req llm.ChatRequest) (llm.Stream, error) {
				return &sliceStream{events: events}, nil
			})
		},
	}

	srv := New(cfg, st, orch)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := doJSON(t, ts, http.MethodGet, "/models", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/models", "wrong-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/models", testAuthToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with static token, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthz to be open, got %d", resp.StatusCode)
	}
}

func TestJWTAuthIsolatesUsers(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	token, err := MintToken(testAuthSecret, 42, time.Hour)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	resp := doJSON(t, ts, http.MethodPost, "/chat/dialogs", token, map[string]string{"title": "jwt dialog"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created struct {
		DialogID string `json:"dialog_id"`
	}
	decodeBody(t, resp, &created)

	resp = doJSON(t, ts, http.MethodGet, "/chat/dialogs/"+created.DialogID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner fetch: expected 200, got %d", resp.StatusCode)
	}

	// The static token runs as a different user and must not see it.
	resp = doJSON(t, ts, http.MethodGet, "/chat/dialogs/"+created.DialogID, testAuthToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user fetch: expected 404, got %d", resp.StatusCode)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	token, err := MintToken(testAuthSecret, 42, -time.Minute)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	resp := doJSON(t, ts, http.MethodGet, "/models", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.StatusCode)
	}
}

func TestDialogEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := doJSON(t, ts, http.MethodPost, "/chat/dialogs", testAuthToken, map[string]string{"title": "first"})
	var created struct {
		DialogID string `json:"dialog_id"`
	}
	decodeBody(t, resp, &created)
	if created.DialogID == "" {
		t.Fatal("expected a dialog id")
	}

	resp = doJSON(t, ts, http.MethodGet, "/chat/dialogs?page=1", testAuthToken, nil)
	var page struct {
		Dialogs []store.Dialog `json:"dialogs"`
	}
	decodeBody(t, resp, &page)
	if len(page.Dialogs) != 1 || page.Dialogs[0].Title != "first" {
		t.Fatalf("unexpected dialog page: %+v", page)
	}

	resp = doJSON(t, ts, http.MethodPost, "/chat/dialogs/"+created.DialogID+"/messages", testAuthToken,
		map[string]string{"role": "user", "content": "hello"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create message: expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/chat/dialogs/"+created.DialogID+"/messages", testAuthToken, nil)
	var msgs struct {
		Messages []store.ConversationItem `json:"messages"`
	}
	decodeBody(t, resp, &msgs)
	if len(msgs.Messages) != 1 || msgs.Messages[0].Content != "hello" {
		t.Fatalf("unexpected messages: %+v", msgs.Messages)
	}

	resp = doJSON(t, ts, http.MethodDelete, "/chat/dialogs/"+created.DialogID, testAuthToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/chat/dialogs/"+created.DialogID, testAuthToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestPromptEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := doJSON(t, ts, http.MethodPost, "/prompts", testAuthToken,
		map[string]string{"title": "Greeting", "prompt": "Say hello."})
	var created struct {
		PromptID int64 `json:"prompt_id"`
	}
	decodeBody(t, resp, &created)
	if created.PromptID == 0 {
		t.Fatal("expected a prompt id")
	}

	id := fmt.Sprintf("%d", created.PromptID)

	resp = doJSON(t, ts, http.MethodPatch, "/prompts/"+id, testAuthToken,
		map[string]string{"title": "Greeting", "prompt": "Say hi."})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("update: expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/prompts/"+id, testAuthToken, nil)
	var prompt store.Prompt
	decodeBody(t, resp, &prompt)
	if prompt.Prompt != "Say hi." {
		t.Fatalf("unexpected prompt after update: %+v", prompt)
	}

	resp = doJSON(t, ts, http.MethodDelete, "/prompts/"+id, testAuthToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
}

func TestChatStreamsSSE(t *testing.T) {
	ts, _ := newTestServer(t, []llm.Event{textEvent("Hello"), textEvent(" world")})

	resp := doJSON(t, ts, http.MethodPost, "/chat", testAuthToken, map[string]any{
		"model":    "test-model",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var frames []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			frames = append(frames, strings.TrimPrefix(line, "data: "))
		}
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %v", len(frames), frames)
	}
	if !strings.Contains(frames[0], "Hello") || !strings.Contains(frames[1], " world") {
		t.Fatalf("unexpected frames: %v", frames)
	}
}

func TestChatRejectsUnknownDialog(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := doJSON(t, ts, http.MethodPost, "/chat", testAuthToken, map[string]any{
		"model":     "test-model",
		"messages":  []map[string]string{{"role": "user", "content": "hi"}},
		"dialog_id": "no-such-dialog",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCreateMessageVisionValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := doJSON(t, ts, http.MethodPost, "/chat/dialogs", testAuthToken, map[string]string{"title": "images"})
	var created struct {
		DialogID string `json:"dialog_id"`
	}
	decodeBody(t, resp, &created)

	withImage := map[string]any{
		"role":    "user",
		"content": "look at this",
		"images":  []map[string]string{{"data_url": "data:image/png;base64,AAAA"}},
	}

	// Default model is not vision-capable.
	resp = doJSON(t, ts, http.MethodPost, "/chat/dialogs/"+created.DialogID+"/messages", testAuthToken, withImage)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-vision model, got %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error != chat.ImageModalityErrorMessage {
		t.Errorf("unexpected error message %q", body.Error)
	}

	withImage["model"] = "vision-model"
	resp = doJSON(t, ts, http.MethodPost, "/chat/dialogs/"+created.DialogID+"/messages", testAuthToken, withImage)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for vision model, got %d", resp.StatusCode)
	}
}

func TestPreflightBypassesAuth(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/chat/dialogs", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://example.com")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for unauthenticated preflight, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Errorf("unexpected allow-origin %q", got)
	}
}
