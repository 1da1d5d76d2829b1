// Package openai implements llm.Provider on the Chat Completions API.
// Any OpenAI-compatible endpoint works through WithBaseURL.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jkaninda/huddle/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com"
	DefaultModel     = "gpt-4o-mini"
	completionsPath  = "/v1/chat/completions"
	defaultMaxTokens = 4096
)

// Client speaks the Chat Completions wire format.
type Client struct {
	model    string
	baseURL  string
	endpoint llm.Endpoint
	logger   *slog.Logger
}

type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.endpoint.Client = hc }
}

// WithName overrides the reported provider name.
func WithName(name string) Option {
	return func(c *Client) { c.endpoint.Provider = name }
}

// NewClient creates an OpenAI-compatible provider. Local servers that need
// no key get no Authorization header.
func NewClient(apiKey, model string, logger *slog.Logger, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		model:   model,
		baseURL: defaultBaseURL,
		logger:  logger,
		endpoint: llm.Endpoint{
			Provider: "openai",
			Header:   http.Header{},
		},
	}
	if apiKey != "" {
		c.endpoint.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.endpoint.URL = c.baseURL + completionsPath
	return c
}

func (c *Client) Name() string { return c.endpoint.Provider }

func (c *Client) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var out apiResponse
	if err := c.endpoint.PostJSON(ctx, c.buildRequest(req), &out); err != nil {
		return nil, err
	}
	resp, err := toResponse(&out)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "chat completion finished",
		slog.String("provider", c.Name()),
		slog.String("model", c.model),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("stop_reason", resp.StopReason),
	)
	return resp, nil
}

func (c *Client) buildRequest(req *llm.Request) apiRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	out := apiRequest{Model: c.model, MaxTokens: maxTokens}

	if req.SystemPrompt != "" {
		out.Messages = append(out.Messages, apiMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toMessages(m)...)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, apiTool{
			Type: "function",
			Function: apiFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// toMessages maps one llm.Message onto the wire. Assistant tool_use blocks
// become tool_calls; each user tool_result becomes its own "tool" message.
func toMessages(m llm.Message) []apiMessage {
	if m.Role == llm.RoleAssistant {
		msg := apiMessage{Role: "assistant"}
		var text strings.Builder
		for _, b := range m.Blocks {
			switch b.Type {
			case llm.BlockText:
				text.WriteString(b.Text)
			case llm.BlockToolUse:
				args, _ := json.Marshal(b.Input)
				msg.ToolCalls = append(msg.ToolCalls, apiToolCall{
					ID:       b.ID,
					Type:     "function",
					Function: apiToolCallFunction{Name: b.Name, Arguments: string(args)},
				})
			}
		}
		msg.Content = text.String()
		return []apiMessage{msg}
	}

	var (
		text  strings.Builder
		tools []apiMessage
	)
	for _, b := range m.Blocks {
		switch b.Type {
		case llm.BlockText:
			text.WriteString(b.Text)
		case llm.BlockToolResult:
			tools = append(tools, apiMessage{Role: "tool", Content: b.Text, ToolCallID: b.ToolUseID})
		}
	}
	if text.Len() == 0 {
		return tools
	}
	return append([]apiMessage{{Role: "user", Content: text.String()}}, tools...)
}

func toResponse(apiResp *apiResponse) (*llm.Response, error) {
	resp := &llm.Response{
		Usage: llm.Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
		StopReason: llm.StopEndTurn,
	}
	if len(apiResp.Choices) == 0 {
		return resp, nil
	}

	choice := apiResp.Choices[0]
	if choice.Message.Content != "" {
		resp.Blocks = append(resp.Blocks, llm.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("decoding arguments for %s: %w", tc.Function.Name, err)
			}
		}
		resp.Blocks = append(resp.Blocks, llm.ToolUseBlock(tc.ID, tc.Function.Name, input))
	}

	switch choice.FinishReason {
	case "tool_calls":
		resp.StopReason = llm.StopToolUse
	case "length":
		resp.StopReason = llm.StopMaxTokens
	case "stop", "":
		if len(choice.Message.ToolCalls) > 0 {
			resp.StopReason = llm.StopToolUse
		}
	default:
		resp.StopReason = choice.FinishReason
	}
	return resp, nil
}

type apiRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens"`
	Tools     []apiTool    `json:"tools,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiTool struct {
	Type     string      `json:"type"`
	Function apiFunction `json:"function"`
}

type apiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type apiToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function apiToolCallFunction `json:"function"`
}

type apiToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Message      apiChoiceMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type apiChoiceMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
