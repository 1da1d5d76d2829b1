// Package cli implements the interactive REPL for the Zoom assistant.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jkaninda/huddle/internal/agent"
	"github.com/jkaninda/huddle/internal/gateway"
)

const prompt = "huddle> "

// Gateway is the interactive command-line interface.
type Gateway struct {
	assistant      gateway.Assistant
	logger         *slog.Logger
	in             io.Reader
	out            io.Writer
	errOut         io.Writer
	done           chan struct{} // closed by Stop to signal shutdown
	conversationID string        // persistent until the user types "new"
}

// NewGateway creates a CLI gateway reading stdin and writing stdout.
func NewGateway(a gateway.Assistant, logger *slog.Logger) *Gateway {
	return &Gateway{
		assistant:      a,
		logger:         logger,
		in:             os.Stdin,
		out:            os.Stdout,
		errOut:         os.Stderr,
		done:           make(chan struct{}),
		conversationID: agent.NewConversationID(),
	}
}

// WithIO replaces the terminal streams.
func (g *Gateway) WithIO(in io.Reader, out, errOut io.Writer) *Gateway {
	g.in, g.out, g.errOut = in, out, errOut
	return g
}

// ConversationID returns the current conversation.
func (g *Gateway) ConversationID() string { return g.conversationID }

// Start runs the interactive REPL. Blocks until ctx is cancelled,
// Stop is called, input ends, or the user types "exit".
func (g *Gateway) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(g.in)

	fmt.Fprintln(g.out, "Huddle: Zoom meeting assistant")
	fmt.Fprintln(g.out, `Type your message ("new" starts a fresh conversation, "exit" quits).`)
	fmt.Fprintln(g.out)

	for {
		fmt.Fprint(g.out, prompt)

		// Check for context cancellation or Stop signal between prompts.
		select {
		case <-ctx.Done():
			fmt.Fprintln(g.out, "\nShutting down.")
			return nil
		case <-g.done:
			fmt.Fprintln(g.out, "\nShutting down.")
			return nil
		default:
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(g.out, "Goodbye.")
			return nil
		case "new":
			g.conversationID = agent.NewConversationID()
			fmt.Fprintln(g.out, "Started a new conversation.")
			continue
		}

		g.logger.DebugContext(ctx, "cli request",
			slog.String("conversation_id", g.conversationID),
		)

		resp, err := g.assistant.Process(ctx, &agent.Input{
			Message:        line,
			ConversationID: g.conversationID,
		})
		if err != nil {
			g.logger.ErrorContext(ctx, "agent processing failed",
				slog.String("conversation_id", g.conversationID),
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(g.errOut, "Error: %v\n", err)
			continue
		}

		fmt.Fprintln(g.out)
		fmt.Fprintln(g.out, resp.Text)
		fmt.Fprintln(g.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	return nil
}

// Stop signals the REPL to shut down.
func (g *Gateway) Stop(_ context.Context) error {
	select {
	case <-g.done:
		// Already closed.
	default:
		close(g.done)
	}
	return nil
}
