package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/parleychat/parley/internal/llm"
)

const googleSearchAPIURL = "https://www.googleapis.com/customsearch/v1"

// GoogleSearchTool queries the Google Custom Search JSON API and
// returns compact JSON results. Configuration problems and upstream
// failures are reported inside the result JSON so the model can read
// them, not as Go errors.
type GoogleSearchTool struct {
	APIKey string
	CX     string

	// HTTPClient is swappable for tests; nil uses a 15s-timeout client.
	HTTPClient *http.Client
}

type searchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (t *GoogleSearchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Type: "function",
		Function: llm.FunctionSpec{
			Name:        "google_search",
			Description: "Search Google and return compact JSON results.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {
						"type": "string",
						"description": "Search query."
					},
					"num_results": {
						"type": "integer",
						"description": "Number of results to return (1-10)."
					}
				},
				"required": ["query"],
				"additionalProperties": false
			}`),
		},
	}
}

func (t *GoogleSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query      string `json:"query"`
		NumResults int    `json:"num_results"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return errorJSON("Invalid google_search arguments"), nil
	}
	if params.Query == "" {
		return errorJSON("Missing required parameter: query"), nil
	}
	if t.APIKey == "" || t.CX == "" {
		return errorJSON("Google Search tool is not configured. Set the search API key and engine id."), nil
	}

	count := params.NumResults
	if count < 1 {
		count = 5
	}
	if count > 10 {
		count = 10
	}

	query := url.Values{}
	query.Set("key", t.APIKey)
	query.Set("cx", t.CX)
	query.Set("q", params.Query)
	query.Set("num", strconv.Itoa(count))

	client := t.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, "GET", googleSearchAPIURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return errorJSON(fmt.Sprintf("Google Search request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorJSON(fmt.Sprintf("Google Search response unreadable: %v", err)), nil
	}
	if resp.StatusCode != 200 {
		return errorJSON(fmt.Sprintf("Google Search returned status %d", resp.StatusCode)), nil
	}

	var payload struct {
		Items []searchResult `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return errorJSON("Google Search returned invalid JSON"), nil
	}

	out, err := json.Marshal(map[string]any{"results": payload.Items})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func errorJSON(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
