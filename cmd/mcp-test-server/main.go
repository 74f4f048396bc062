// Command mcp-test-server runs a small MCP server for exercising the
// dirigent tool-source integration. It provides "get_weather", "get_time",
// and "echo" tools over streamable HTTP on /mcp. The get_weather tool
// pairs with the mock backend, which asks for it whenever tools are
// declared, so a full tool round can run against mocks alone.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	port := os.Getenv("MCP_PORT")
	if port == "" {
		port = "9092"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "dirigent-test-mcp", Version: "v1.0.0"},
		nil,
	)

	type WeatherInput struct {
		Location string `json:"location" jsonschema_description:"City to report the weather for"`
		Unit     string `json:"unit,omitempty" jsonschema_description:"celsius or fahrenheit"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_weather",
		Description: "Returns a canned weather report for a location",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input WeatherInput) (*mcp.CallToolResult, struct{}, error) {
		degrees := "18 degrees celsius"
		if input.Unit == "fahrenheit" {
			degrees = "64 degrees fahrenheit"
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Weather in %s: sunny, %s", input.Location, degrees)},
			},
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Current time: %s", time.Now().UTC().Format(time.RFC3339))},
			},
		}, struct{}{}, nil
	})

	type EchoInput struct {
		Message string `json:"message" jsonschema_description:"The message to echo back"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input EchoInput) (*mcp.CallToolResult, struct{}, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Echo: %s", input.Message)},
			},
		}, struct{}{}, nil
	})

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", handler)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	log.Printf("MCP test server starting on :%s", port)
	if err := http.ListenAndServe(":"+port, httpMux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
