package agent

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jkaninda/huddle/internal/llm"
)

// DefaultMaxHistoryMessages bounds each conversation thread.
const DefaultMaxHistoryMessages = 50

// DefaultMaxHistoryTokens bounds the estimated size of a thread.
const DefaultMaxHistoryTokens = 12000

// Memory keeps conversation threads in process. History is lost on restart.
type Memory struct {
	mu          sync.Mutex
	maxMessages int
	maxTokens   int
	threads     map[string][]llm.Message
}

// NewMemory creates a memory keeping at most maxMessages per thread.
// maxMessages <= 0 means DefaultMaxHistoryMessages.
func NewMemory(maxMessages int) *Memory {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxHistoryMessages
	}
	return &Memory{
		maxMessages: maxMessages,
		maxTokens:   DefaultMaxHistoryTokens,
		threads:     make(map[string][]llm.Message),
	}
}

// NewConversationID returns a fresh thread ID.
func NewConversationID() string {
	return uuid.NewString()
}

// Load returns a copy of the thread, oldest first.
func (m *Memory) Load(id string) []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.threads[id])
}

// Append adds messages to the thread and trims it to the configured bounds.
func (m *Memory) Append(id string, msgs ...llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[id] = trimHistory(append(m.threads[id], msgs...), m.maxMessages, m.maxTokens)
}

// Len returns the number of messages stored for id.
func (m *Memory) Len(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.threads[id])
}

// Reset forgets a thread.
func (m *Memory) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, id)
}

// trimHistory drops the oldest messages until the thread fits both bounds,
// then keeps dropping until it starts with a plain user message. A thread
// must never open with an assistant turn or with orphaned tool results.
func trimHistory(history []llm.Message, maxMessages, maxTokens int) []llm.Message {
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}

	total := 0
	for _, msg := range history {
		total += estimateMessageTokens(msg)
	}
	for len(history) > 2 && total > maxTokens {
		total -= estimateMessageTokens(history[0])
		history = history[1:]
	}

	for len(history) > 0 && !isUserTurn(history[0]) {
		history = history[1:]
	}
	return slices.Clip(history)
}

func isUserTurn(msg llm.Message) bool {
	if msg.Role != llm.RoleUser {
		return false
	}
	for _, b := range msg.Blocks {
		if b.Type == llm.BlockToolResult {
			return false
		}
	}
	return true
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func estimateMessageTokens(msg llm.Message) int {
	tokens := estimateTokens(string(msg.Role)) + 4
	for _, b := range msg.Blocks {
		tokens += estimateTokens(b.Text) + estimateTokens(b.Name) + estimateTokens(b.ID) + estimateTokens(b.ToolUseID)
		if b.Input != nil {
			raw, _ := json.Marshal(b.Input)
			tokens += estimateTokens(string(raw))
		}
	}
	return tokens
}
