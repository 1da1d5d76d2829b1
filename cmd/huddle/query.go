package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/gateway/httpapi"
)

// Exit codes for the query command.
const (
	ExitSuccess           = 0
	ExitRequestError      = 1
	ExitServerError       = 2
	ExitConnectionFailure = 3
)

var (
	queryMessage    string
	queryGatewayURL string
	queryAPIKey     string
	queryStream     bool
	queryWorkflow   bool
	queryTimeout    int
	queryConvID     string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Send a one-shot query to a running gateway",
	Long: `Send a message to the Huddle HTTP gateway started with 'huddle serve'.

Examples:
  huddle query -m "create a meeting tomorrow at 3 pm about the roadmap"
  huddle query -m "what meetings do I have today?" --stream
  huddle query --workflow

Exit codes:
  0  success
  1  request rejected (bad input or unauthorized)
  2  server error
  3  gateway unreachable`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryMessage, "message", "m", "", "message to send")
	queryCmd.Flags().StringVar(&queryGatewayURL, "gateway-url", "http://localhost:8080", "gateway HTTP API URL (or HUDDLE_GATEWAY_URL env)")
	queryCmd.Flags().StringVar(&queryAPIKey, "api-key", "", "API key for gateway authentication (or HUDDLE_API_KEY env)")
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "stream response via SSE")
	queryCmd.Flags().BoolVar(&queryWorkflow, "workflow", false, "run the email workflow; --message becomes the workflow request")
	queryCmd.Flags().IntVar(&queryTimeout, "timeout", 300, "timeout in seconds")
	queryCmd.Flags().StringVar(&queryConvID, "conversation-id", "", "conversation ID for multi-turn context")
}

// queryClient talks to the gateway. Output goes to out, diagnostics to errOut.
type queryClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	out     io.Writer
	errOut  io.Writer
}

func runQuery(_ *cobra.Command, _ []string) error {
	if !queryWorkflow && strings.TrimSpace(queryMessage) == "" {
		return fmt.Errorf("message is required: use -m flag")
	}
	apiKey := goutils.Env("HUDDLE_API_KEY", queryAPIKey)
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required (use --api-key or set HUDDLE_API_KEY)")
		os.Exit(ExitRequestError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(queryTimeout)*time.Second)
	defer cancel()

	qc := &queryClient{
		baseURL: strings.TrimRight(goutils.Env("HUDDLE_GATEWAY_URL", queryGatewayURL), "/"),
		apiKey:  apiKey,
		http:    http.DefaultClient,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}

	var code int
	switch {
	case queryWorkflow:
		code = qc.workflow(ctx, queryMessage)
	case queryStream:
		code = qc.stream(ctx, queryMessage, queryConvID)
	default:
		code = qc.query(ctx, queryMessage, queryConvID)
	}
	cancel()
	if code != ExitSuccess {
		os.Exit(code)
	}
	return nil
}

// exitCodeFor maps a gateway status to a query exit code.
func exitCodeFor(status int) int {
	switch {
	case status >= 200 && status < 300:
		return ExitSuccess
	case status >= 500:
		return ExitServerError
	default:
		return ExitRequestError
	}
}

func (qc *queryClient) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+qc.apiKey)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return qc.http.Do(req)
}

// fail prints a non-2xx response and returns its exit code.
func (qc *queryClient) fail(resp *http.Response, body []byte) int {
	if resp.StatusCode == http.StatusUnauthorized {
		fmt.Fprintln(qc.errOut, "Error: unauthorized (check API key)")
	} else {
		fmt.Fprintf(qc.errOut, "Error: gateway returned %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return exitCodeFor(resp.StatusCode)
}

// query sends a synchronous query and prints the reply.
func (qc *queryClient) query(ctx context.Context, message, conversationID string) int {
	resp, err := qc.post(ctx, "/v1/query", httpapi.QueryRequest{Message: message, ConversationID: conversationID}, "")
	if err != nil {
		fmt.Fprintf(qc.errOut, "Error: cannot reach gateway at %s: %v\n", qc.baseURL, err)
		return ExitConnectionFailure
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return qc.fail(resp, body)
	}

	var result httpapi.QueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Fprintf(qc.errOut, "Error: decoding response: %v\n", err)
		return ExitServerError
	}
	fmt.Fprintln(qc.out, result.Message)
	fmt.Fprintf(qc.errOut, "\n[conversation_id=%s tokens=%d tools=%s]\n",
		result.ConversationID, result.TokensUsed, strings.Join(result.ToolCalls, ","))
	return ExitSuccess
}

// workflow triggers one workflow run and prints each stage.
func (qc *queryClient) workflow(ctx context.Context, request string) int {
	resp, err := qc.post(ctx, "/v1/workflow/run", httpapi.WorkflowRunRequest{Request: request}, "")
	if err != nil {
		fmt.Fprintf(qc.errOut, "Error: cannot reach gateway at %s: %v\n", qc.baseURL, err)
		return ExitConnectionFailure
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var run httpapi.RunResponse
	if err := json.Unmarshal(body, &run); err != nil || run.Status == "" {
		return qc.fail(resp, body)
	}
	for _, s := range run.Stages {
		fmt.Fprint(qc.out, formatStage(s))
	}
	fmt.Fprintf(qc.errOut, "[run_id=%s status=%s tokens=%d]\n", run.ID, run.Status, run.TokensUsed)
	if run.Error != "" {
		fmt.Fprintf(qc.errOut, "Error: %s\n", run.Error)
	}
	return exitCodeFor(resp.StatusCode)
}

// stream sends a streaming query and prints events as they arrive.
func (qc *queryClient) stream(ctx context.Context, message, conversationID string) int {
	resp, err := qc.post(ctx, "/v1/query/stream", httpapi.QueryRequest{Message: message, ConversationID: conversationID}, "text/event-stream")
	if err != nil {
		fmt.Fprintf(qc.errOut, "Error: cannot reach gateway at %s: %v\n", qc.baseURL, err)
		return ExitConnectionFailure
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return qc.fail(resp, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}

		var event httpapi.SSEEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "text":
			fmt.Fprint(qc.out, event.Content)
		case "tool_result":
			fmt.Fprintf(qc.errOut, "[tool: %s]\n", event.Tool)
		case "error":
			fmt.Fprintf(qc.errOut, "Error: %s\n", event.Content)
			return ExitServerError
		case "done":
			fmt.Fprintln(qc.out)
			return ExitSuccess
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(qc.errOut, "Error: stream interrupted: %v\n", err)
		return ExitConnectionFailure
	}
	fmt.Fprintln(qc.errOut, "Error: stream ended before completion")
	return ExitServerError
}
