// Package llm defines the provider-agnostic interface the agents talk to.
package llm

import (
	"context"
	"strings"
)

// Provider is implemented by every LLM backend.
type Provider interface {
	SendMessage(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Request is one completion call: instructions, history and the tools on offer.
type Request struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Tools        []ToolDefinition // nil = no tool use
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Role identifies who sent a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Stop reasons normalized across providers.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Message is a single turn in the conversation.
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// UserText builds a plain user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Blocks: []ContentBlock{TextBlock(text)}}
}

// AssistantText builds a plain assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Blocks: []ContentBlock{TextBlock(text)}}
}

// Text returns the concatenated text blocks of the message.
func (m Message) Text() string {
	return joinText(m.Blocks)
}

// ContentBlock is a tagged union; Type selects which fields are meaningful.
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result (Text holds the result payload)
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock answers a tool_use block. name is carried for providers
// (Gemini) that match results by function name rather than call ID.
func ToolResultBlock(toolUseID, name, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Name: name, Text: content, IsError: isError}
}

// Response is what a provider returns for one Request.
type Response struct {
	Blocks     []ContentBlock
	Usage      Usage
	StopReason string
}

// Text returns the concatenated text of the response.
func (r *Response) Text() string {
	return joinText(r.Blocks)
}

// ToolCalls returns the tool_use blocks the model asked for.
func (r *Response) ToolCalls() []ContentBlock {
	var calls []ContentBlock
	for _, b := range r.Blocks {
		if b.Type == BlockToolUse {
			calls = append(calls, b)
		}
	}
	return calls
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

func joinText(blocks []ContentBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
