package httpapi

import (
	"strings"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/huddle/internal/agent"
)

// SSEEvent represents a server-sent event for streaming responses.
type SSEEvent struct {
	Type    string `json:"type"`              // "tool_result", "text", "done", "error"
	Content string `json:"content,omitempty"` // Text content.
	Tool    string `json:"tool,omitempty"`    // Tool name for tool events.
	Success *bool  `json:"success,omitempty"` // Tool outcome.
}

// handleQueryStream handles POST /v1/query/stream with SSE responses.
// Runs the assistant and streams each tool call followed by the final text.
func (g *Gateway) handleQueryStream(c *okapi.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("Bad request", err)
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.AbortBadRequest("message is required")
	}
	if req.ConversationID == "" {
		req.ConversationID = agent.NewConversationID()
	}

	// Buffered: the agent loop runs to completion, then events are replayed.
	resp, err := g.services.Assistant.Process(c.Context(), &agent.Input{
		Message:        req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		c.SSEvent("error", SSEEvent{Type: "error", Content: "processing failed"})
		return nil
	}

	for _, ev := range streamEvents(resp) {
		c.SSEvent(ev.Type, ev)
	}
	return nil
}

// streamEvents converts a finished response into the SSE sequence.
func streamEvents(resp *agent.Response) []SSEEvent {
	events := make([]SSEEvent, 0, len(resp.ToolCalls)+2)
	for _, tc := range resp.ToolCalls {
		success := tc.Success
		events = append(events, SSEEvent{Type: "tool_result", Tool: tc.Name, Content: tc.Output, Success: &success})
	}
	if resp.Text != "" {
		events = append(events, SSEEvent{Type: "text", Content: resp.Text})
	}
	return append(events, SSEEvent{Type: "done"})
}
