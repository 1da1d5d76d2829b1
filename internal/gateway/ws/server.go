// Package ws implements the WebSocket chat endpoint for the Zoom assistant.
// Each connection is one conversation: clients send {"message", "conversation_id"}
// frames and receive one reply frame per message.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/jkaninda/huddle/internal/agent"
	"github.com/jkaninda/huddle/internal/gateway"
	"github.com/jkaninda/huddle/internal/gateway/httpapi"
)

// Subprotocol is offered to clients during the handshake.
const Subprotocol = "huddle-chat-v1"

const (
	pingInterval = 30 * time.Second
	readLimit    = 64 << 10
)

// Message types sent by the server.
const (
	TypeReply = "reply"
	TypeError = "error"
)

// ClientMessage is a chat frame sent by the client.
type ClientMessage struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ServerMessage is a chat frame sent by the server.
type ServerMessage struct {
	Type           string   `json:"type"`
	Message        string   `json:"message"`
	ConversationID string   `json:"conversation_id,omitempty"`
	TokensUsed     int      `json:"tokens_used,omitempty"`
	ToolCalls      []string `json:"tool_calls,omitempty"`
}

// Server upgrades HTTP requests to WebSocket chat sessions.
type Server struct {
	assistant gateway.Assistant
	apiKeys   map[string]string // Empty = no authentication.
	logger    *slog.Logger
}

// NewServer creates a chat server. apiKeys uses the same mapping as the HTTP API.
func NewServer(a gateway.Assistant, apiKeys map[string]string, logger *slog.Logger) *Server {
	return &Server{assistant: a, apiKeys: apiKeys, logger: logger}
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if len(s.apiKeys) > 0 {
		// Browsers cannot set headers on WebSocket requests, so ?token= is accepted too.
		header := r.Header.Get("Authorization")
		if token := r.URL.Query().Get("token"); token != "" {
			header = "Bearer " + token
		}
		var err error
		if userID, err = httpapi.Authorize(s.apiKeys, header); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(readLimit)

	s.handleConnection(r.Context(), conn, userID)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn, userID string) {
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.pingLoop(pingCtx, conn)

	conversationID := agent.NewConversationID()
	logger := s.logger.With(slog.String("user_id", userID))

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				logger.Debug("chat client disconnected")
			} else {
				logger.Warn("chat connection error", slog.String("error", err.Error()))
			}
			return
		}
		if msg.ConversationID != "" {
			conversationID = msg.ConversationID
		}

		reply := s.reply(ctx, logger, msg.Message, conversationID)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			logger.Warn("chat write failed", slog.String("error", err.Error()))
			return
		}
	}
}

func (s *Server) reply(ctx context.Context, logger *slog.Logger, message, conversationID string) ServerMessage {
	if strings.TrimSpace(message) == "" {
		return ServerMessage{Type: TypeError, Message: "message is required", ConversationID: conversationID}
	}

	resp, err := s.assistant.Process(ctx, &agent.Input{Message: message, ConversationID: conversationID})
	if err != nil {
		logger.ErrorContext(ctx, "agent processing failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		return ServerMessage{Type: TypeError, Message: "processing failed", ConversationID: conversationID}
	}

	out := ServerMessage{
		Type:           TypeReply,
		Message:        resp.Text,
		ConversationID: conversationID,
		TokensUsed:     resp.TokensUsed,
	}
	for _, tc := range resp.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, tc.Name)
	}
	return out
}

// pingLoop keeps idle connections alive through proxies.
func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
