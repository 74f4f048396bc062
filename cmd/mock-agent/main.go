// Command mock-agent runs a deterministic collaborator agent. It serves
// an agent card on GET /.well-known/agent.json and accepts delegated
// messages on POST /v1/delegate, keeping a per-session turn counter so
// session continuation is observable: the reply names the session and the
// turn number, and a delegation that carries a known session_id resumes
// where the previous one left off.
//
// A message containing "fail" makes the delegation return HTTP 500.
//
// Configuration:
//
//	MOCK_AGENT_PORT - Listen port (default: 9091)
//	MOCK_AGENT_NAME - Name advertised on the agent card (default: researcher)
//	MOCK_AGENT_KEY  - When set, both endpoints require this bearer token
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_AGENT_PORT")
	if port == "" {
		port = "9091"
	}
	name := os.Getenv("MOCK_AGENT_NAME")
	if name == "" {
		name = "researcher"
	}

	agent := &mockAgent{
		name:     name,
		key:      os.Getenv("MOCK_AGENT_KEY"),
		sessions: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent.json", agent.handleCard)
	mux.HandleFunc("POST /v1/delegate", agent.handleDelegate)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock agent starting", "port", port, "name", name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock agent failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock agent shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type mockAgent struct {
	name string
	key  string

	mu       sync.Mutex
	sessions map[string]int
	nextID   int
}

type delegationRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type delegationReply struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (a *mockAgent) handleCard(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        a.name,
		"description": "Deterministic collaborator for local development.",
		"capabilities": []map[string]any{
			{"name": "research", "description": "Looks things up and reports back."},
		},
	})
}

func (a *mockAgent) handleDelegate(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(w, r) {
		return
	}

	var req delegationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.Contains(strings.ToLower(req.Message), "fail") {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "mock agent induced failure",
		})
		return
	}

	session, turn := a.touchSession(req.SessionID)
	slog.Info("delegation", "session", session, "turn", turn)

	writeJSON(w, http.StatusOK, delegationReply{
		Message:   fmt.Sprintf("%s reply (session %s, turn %d): considered %q", a.name, session, turn, req.Message),
		SessionID: session,
	})
}

// touchSession increments a session's turn counter, creating the session
// when the id is empty or unknown.
func (a *mockAgent) touchSession(id string) (string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id == "" {
		a.nextID++
		id = fmt.Sprintf("sess_mock_%d", a.nextID)
	}
	a.sessions[id]++
	return id, a.sessions[id]
}

func (a *mockAgent) authorized(w http.ResponseWriter, r *http.Request) bool {
	if a.key == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+a.key {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
