// Package gemini implements llm.Provider on the Gemini generateContent API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jkaninda/huddle/internal/llm"
)

const (
	defaultBaseURL   = "https://generativelanguage.googleapis.com"
	DefaultModel     = "gemini-2.0-flash"
	defaultMaxTokens = 4096
)

// Client talks to Gemini over plain HTTP.
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

// NewClient creates a Gemini provider. An empty model selects DefaultModel.
func NewClient(apiKey, model string, logger *slog.Logger, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		model:   model,
		baseURL: defaultBaseURL,
		logger:  logger,
		endpoint: llm.Endpoint{
			Provider: "gemini",
			Header:   http.Header{"X-Goog-Api-Key": {apiKey}},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.endpoint.URL = c.baseURL + "/v1beta/models/" + c.model + ":generateContent"
	return c
}

func (c *Client) Name() string { return "gemini" }

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

func (c *Client) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	var out apiResponse
	if err := c.endpoint.PostJSON(ctx, buildRequest(req), &out); err != nil {
		return nil, err
	}
	resp := toResponse(&out)
	c.logger.DebugContext(ctx, "gemini call completed",
		slog.String("model", c.model),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
		slog.String("stop_reason", resp.StopReason),
	)
	return resp, nil
}

func buildRequest(req *llm.Request) apiRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	out := apiRequest{GenerationConfig: &apiGenerationConfig{MaxOutputTokens: maxTokens}}

	names := toolNames(req.Messages)
	for _, m := range req.Messages {
		out.Contents = append(out.Contents, toContent(m, names))
	}
	if req.SystemPrompt != "" {
		out.SystemInstruction = &apiContent{Parts: []apiPart{{Text: req.SystemPrompt}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]apiFunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, apiFunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			})
		}
		out.Tools = []apiToolDeclaration{{FunctionDeclarations: decls}}
	}
	return out
}

// toolNames maps synthetic call IDs to function names. Gemini answers
// function calls by name, so tool_result blocks without a name need it.
func toolNames(messages []llm.Message) map[string]string {
	names := make(map[string]string)
	for _, msg := range messages {
		for _, b := range msg.Blocks {
			if b.Type == llm.BlockToolUse && b.ID != "" {
				names[b.ID] = b.Name
			}
		}
	}
	return names
}

func toContent(m llm.Message, names map[string]string) apiContent {
	role := "user"
	if m.Role == llm.RoleAssistant {
		role = "model"
	}
	parts := make([]apiPart, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Type {
		case llm.BlockText:
			parts = append(parts, apiPart{Text: b.Text})
		case llm.BlockToolUse:
			parts = append(parts, apiPart{FunctionCall: &apiFunctionCall{Name: b.Name, Args: b.Input}})
		case llm.BlockToolResult:
			name := b.Name
			if name == "" {
				name = names[b.ToolUseID]
			}
			parts = append(parts, apiPart{FunctionResponse: &apiFunctionResponse{
				Name:     name,
				Response: map[string]any{"content": b.Text},
			}})
		}
	}
	return apiContent{Role: role, Parts: parts}
}

func toResponse(apiResp *apiResponse) *llm.Response {
	resp := &llm.Response{}
	if apiResp.UsageMetadata != nil {
		resp.Usage = llm.Usage{
			InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
		}
	}
	if len(apiResp.Candidates) == 0 {
		resp.StopReason = llm.StopEndTurn
		return resp
	}

	candidate := apiResp.Candidates[0]
	calls := 0
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			resp.Blocks = append(resp.Blocks, llm.TextBlock(part.Text))
		}
		if part.FunctionCall != nil {
			id := fmt.Sprintf("gemini-call-%d", calls)
			calls++
			resp.Blocks = append(resp.Blocks, llm.ToolUseBlock(id, part.FunctionCall.Name, part.FunctionCall.Args))
		}
	}

	switch {
	case calls > 0:
		resp.StopReason = llm.StopToolUse
	case candidate.FinishReason == "MAX_TOKENS":
		resp.StopReason = llm.StopMaxTokens
	case candidate.FinishReason == "STOP", candidate.FinishReason == "":
		resp.StopReason = llm.StopEndTurn
	default:
		resp.StopReason = strings.ToLower(candidate.FinishReason)
	}
	return resp
}

type apiRequest struct {
	Contents          []apiContent         `json:"contents"`
	SystemInstruction *apiContent          `json:"system_instruction,omitempty"`
	Tools             []apiToolDeclaration `json:"tools,omitempty"`
	GenerationConfig  *apiGenerationConfig `json:"generation_config,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text             string               `json:"text,omitempty"`
	FunctionCall     *apiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *apiFunctionResponse `json:"functionResponse,omitempty"`
}

type apiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type apiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type apiToolDeclaration struct {
	FunctionDeclarations []apiFunctionDeclaration `json:"function_declarations"`
}

type apiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type apiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type apiResponse struct {
	Candidates    []apiCandidate `json:"candidates"`
	UsageMetadata *apiUsage      `json:"usageMetadata,omitempty"`
}

type apiCandidate struct {
	Content      apiContent `json:"content"`
	FinishReason string     `json:"finishReason"`
}

type apiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}
