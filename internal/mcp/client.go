package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parleychat/parley/internal/llm"
)

// Config describes the remote tool server connection.
type Config struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
}

// Client wraps a streamable-HTTP MCP server connection. The session is
// established lazily on first use and reused afterwards.
type Client struct {
	cfg    Config
	client *mcp.Client

	mu      sync.Mutex
	session *mcp.ClientSession
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		client: mcp.NewClient(&mcp.Implementation{
			Name:    "parley",
			Version: "1.0.0",
		}, nil),
	}
}

// bearerTransport adds the configured bearer token to every request.
type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}

func (c *Client) httpClient() *http.Client {
	client := &http.Client{Timeout: c.cfg.Timeout}
	if c.cfg.AuthToken != "" {
		client.Transport = &bearerTransport{base: http.DefaultTransport, token: c.cfg.AuthToken}
	}
	return client
}

func (c *Client) connect(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	transport := &mcp.StreamableClientTransport{
		Endpoint:   c.cfg.URL,
		HTTPClient: c.httpClient(),
	}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, transportErrorf(err, "Could not connect to the tool server: %v", err)
	}
	c.session = session
	return session, nil
}

// Close shuts down the session if one was established.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// ListTools fetches the server's tool list as OpenAI function-tool
// definitions.
func (c *Client) ListTools(ctx context.Context) ([]llm.ToolSpec, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		c.reset()
		return nil, transportErrorf(err, "Could not list tools from the tool server: %v", err)
	}

	specs := make([]llm.ToolSpec, 0, len(result.Tools))
	for _, t := range result.Tools {
		params, err := json.Marshal(t.InputSchema)
		if err != nil {
			continue
		}
		specs = append(specs, llm.ToolSpec{
			Type: "function",
			Function: llm.FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return specs, nil
}

// CallTool invokes one tool and returns its content as a string: text
// blocks concatenated, other content JSON-encoded.
func (c *Client) CallTool(ctx context.Context, name, argumentsJSON string) (string, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	var arguments map[string]any
	if argumentsJSON != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &arguments); err != nil {
			return "", transportErrorf(err, "Tool %s received invalid arguments", name)
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		c.reset()
		return "", transportErrorf(err, "Tool %s failed: %v", name, err)
	}

	if result.IsError {
		return "", transportErrorf(nil, "Tool %s returned an error: %s", name, formatContent(result.Content))
	}
	return formatContent(result.Content), nil
}

// reset drops a session after an RPC failure so the next call
// reconnects.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
}

func formatContent(content []mcp.Content) string {
	var result string
	for _, block := range content {
		switch v := block.(type) {
		case *mcp.TextContent:
			result += v.Text
		default:
			if data, err := json.Marshal(block); err == nil {
				result += string(data)
			}
		}
	}
	return result
}
