package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// httpClientTimeout is the default timeout for provider requests.
// Streaming completions can run for minutes on slow local models.
const httpClientTimeout = 10 * time.Minute

var defaultHTTPClient = &http.Client{
	Timeout:   httpClientTimeout,
	Transport: otelhttp.NewTransport(http.DefaultTransport),
}

// Client talks to an OpenAI-compatible chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the given base URL. The API key is
// optional, local servers typically ignore it.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: defaultHTTPClient,
	}
}

// Wire structures for the chat-completions endpoint.
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Tools    []ToolSpec    `json:"tools,omitempty"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Error   *wireError    `json:"error,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason"`
}

type chunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.httpClient.Do(httpReq)
}

// ListModels returns the models the provider advertises.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.makeRequest(ctx, "GET", "/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to parse models response: %w", err)
	}
	return modelsResp.Data, nil
}

// StreamChat opens one streaming completion. Each received chunk is
// yielded as an Event carrying the raw chunk bytes verbatim along with
// the parsed content and tool-call deltas.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		chatReq := chatCompletionRequest{
			Model:    req.Model,
			Messages: req.Messages,
			Tools:    req.Tools,
			Stream:   true,
		}
		body, err := json.Marshal(chatReq)
		if err != nil {
			return err
		}

		resp, err := c.makeRequest(ctx, "POST", "/chat/completions", body)
		if err != nil {
			return &APIError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			respBody, _ := io.ReadAll(resp.Body)
			return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				return &APIError{Body: data}
			}

			ev := Event{Raw: json.RawMessage(data)}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					ev.Content += choice.Delta.Content
				}
				if len(choice.Delta.ToolCalls) > 0 {
					ev.ToolCalls = append(ev.ToolCalls, choice.Delta.ToolCalls...)
				}
				if choice.FinishReason != "" {
					ev.FinishReason = choice.FinishReason
				}
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := scanner.Err(); err != nil {
			return &APIError{Err: err}
		}
		return nil
	}), nil
}
