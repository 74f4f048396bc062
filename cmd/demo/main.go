// Command demo sends a chat exchange to a running dirigent server and
// prints the progress events as they stream in. Text fragments print
// inline; tool activity and errors print on their own annotated lines.
//
// Usage:
//
//	demo [flags] [message...]
//
// The message defaults to "What is 2+2?". Point it at a server backed by
// the mock backend for a self-contained round trip.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dirigent-dev/dirigent/pkg/api"
)

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "dirigent server base URL")
	conversation := flag.String("conversation", "", "conversation id to continue (optional)")
	model := flag.String("model", "", "model to request (optional, server default otherwise)")
	apiKey := flag.String("key", "", "API key sent as a bearer token (optional)")
	flag.Parse()

	message := strings.Join(flag.Args(), " ")
	if message == "" {
		message = "What is 2+2?"
	}

	if err := run(*serverURL, *conversation, *model, *apiKey, message); err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}
}

func run(serverURL, conversation, model, apiKey, message string) error {
	body, err := json.Marshal(api.ChatRequest{
		Message:        message,
		ConversationID: conversation,
		Model:          model,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(serverURL, "/")+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	fmt.Printf("> %s\n\n", message)
	if err := printEvents(resp.Body); err != nil {
		return err
	}
	return nil
}

// printEvents reads data-only SSE frames and renders each progress event.
func printEvents(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	inText := false
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		var event api.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("parse event %q: %w", payload, err)
		}

		switch event.Type {
		case api.EventText:
			fmt.Print(event.Content)
			inText = true
		case api.EventToolCall:
			breakText(&inText)
			if event.AgentName != "" {
				fmt.Printf("[delegating to %s: %s(%s)]\n", event.AgentName, event.Tool, event.Input)
			} else {
				fmt.Printf("[calling %s(%s)]\n", event.Tool, event.Input)
			}
		case api.EventToolResult:
			breakText(&inText)
			fmt.Printf("[%s returned: %s]\n", event.Tool, event.Content)
		case api.EventError:
			breakText(&inText)
			fmt.Printf("[error: %s]\n", event.Message)
		case api.EventDone:
			breakText(&inText)
			fmt.Println("[done]")
		default:
			breakText(&inText)
			fmt.Printf("[%s event]\n", event.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// breakText terminates an inline text run before an annotated line.
func breakText(inText *bool) {
	if *inText {
		fmt.Println()
		*inText = false
	}
}
