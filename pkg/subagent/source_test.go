package subagent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dirigent-dev/dirigent/pkg/session"
	"github.com/dirigent-dev/dirigent/pkg/tools"
)

// collaboratorServer serves both the agent card and the delegation endpoint,
// recording the session_id of each delegation it receives.
func collaboratorServer(t *testing.T, replySession string) (*httptest.Server, *[]string) {
	t.Helper()
	sessions := &[]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/agent.json":
			w.Write([]byte(`{"name": "Researcher", "description": "Finds sources."}`))
		case "/v1/delegate":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			sess, _ := body["session_id"].(string)
			*sessions = append(*sessions, sess)
			reply := map[string]any{"message": "done: " + body["message"].(string)}
			if replySession != "" {
				reply["session_id"] = replySession
			}
			json.NewEncoder(w).Encode(reply)
		default:
			http.NotFound(w, r)
		}
	}))
	return srv, sessions
}

func discoveredSource(t *testing.T, srvURL, conversationID string) (*Source, *Pool) {
	t.Helper()
	pool, err := NewPool([]Config{{ID: "researcher", BaseURL: srvURL}}, session.NewStore(0))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	pool.Discover(context.Background())
	return pool.Source(conversationID), pool
}

func TestSourceExecuteTokenLifecycle(t *testing.T) {
	srv, seen := collaboratorServer(t, "sess-1")
	defer srv.Close()

	src, pool := discoveredSource(t, srv.URL, "conv_1")
	defer pool.Close()

	res, err := src.Execute(context.Background(), tools.Call{
		ID:    "call_1",
		Name:  "subagent_researcher",
		Input: json.RawMessage(`{"message": "find sources"}`),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}
	if res.Content != "done: find sources" {
		t.Errorf("content = %q", res.Content)
	}

	if _, err := src.Execute(context.Background(), tools.Call{
		ID:    "call_2",
		Name:  "subagent_researcher",
		Input: json.RawMessage(`{"message": "now summarize them"}`),
	}); err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if len(*seen) != 2 {
		t.Fatalf("collaborator saw %d delegations, want 2", len(*seen))
	}
	if (*seen)[0] != "" {
		t.Errorf("first delegation carried session %q, want none", (*seen)[0])
	}
	if (*seen)[1] != "sess-1" {
		t.Errorf("second delegation carried session %q, want sess-1", (*seen)[1])
	}
}

func TestSourceTokensScopedPerConversation(t *testing.T) {
	srv, seen := collaboratorServer(t, "sess-1")
	defer srv.Close()

	pool, err := NewPool([]Config{{ID: "researcher", BaseURL: srv.URL}}, session.NewStore(0))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()
	pool.Discover(context.Background())

	call := tools.Call{Name: "subagent_researcher", Input: json.RawMessage(`{"message": "hi"}`)}
	if _, err := pool.Source("conv_1").Execute(context.Background(), call); err != nil {
		t.Fatalf("Execute conv_1: %v", err)
	}
	if _, err := pool.Source("conv_2").Execute(context.Background(), call); err != nil {
		t.Fatalf("Execute conv_2: %v", err)
	}

	if (*seen)[1] != "" {
		t.Errorf("fresh conversation carried session %q from another conversation", (*seen)[1])
	}
}

func TestSourceExecuteMissingMessage(t *testing.T) {
	srv, _ := collaboratorServer(t, "")
	defer srv.Close()

	src, pool := discoveredSource(t, srv.URL, "conv_1")
	defer pool.Close()

	for _, input := range []json.RawMessage{nil, json.RawMessage(`{}`), json.RawMessage(`{"message": ""}`)} {
		res, err := src.Execute(context.Background(), tools.Call{Name: "subagent_researcher", Input: input})
		if err != nil {
			t.Fatalf("Execute(%s): %v", input, err)
		}
		if !res.IsError {
			t.Errorf("Execute(%s): want corrective error result", input)
		}
		if !strings.Contains(res.Content, "message") {
			t.Errorf("Execute(%s): content %q does not name the missing argument", input, res.Content)
		}
	}
}

func TestSourceExecuteDelegationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/.well-known/agent.json" {
			w.Write([]byte(`{"name": "Flaky"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src, pool := discoveredSource(t, srv.URL, "conv_1")
	defer pool.Close()

	_, err := src.Execute(context.Background(), tools.Call{
		Name:  "subagent_researcher",
		Input: json.RawMessage(`{"message": "hi"}`),
	})
	if err == nil {
		t.Fatal("expected error when delegation fails")
	}
	if !strings.Contains(err.Error(), "researcher") {
		t.Errorf("error = %v, want collaborator named", err)
	}
}

func TestSourceDisplayName(t *testing.T) {
	srv, _ := collaboratorServer(t, "")
	defer srv.Close()

	src, pool := discoveredSource(t, srv.URL, "conv_1")
	defer pool.Close()

	var namer tools.DisplayNamer = src
	if got := namer.DisplayName("subagent_researcher"); got != "Researcher" {
		t.Errorf("DisplayName = %q, want card name", got)
	}
	if got := namer.DisplayName("subagent_unknown"); got != "" {
		t.Errorf("DisplayName for unknown tool = %q, want empty", got)
	}
}
