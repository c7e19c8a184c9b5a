package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeBackend serves a small, well-formed HealthTestAI corpus. The assistant
// reply is present on the first history read after a message is sent.
type fakeBackend struct {
	mu       sync.Mutex
	messages []map[string]any
	empty    bool
}

func (f *fakeBackend) handler() http.Handler {
	req := map[string]any{
		"id": 7, "jiraKey": "HT-7", "title": "Consent must be captured before treatment",
		"description": "Record patient consent.", "priority": "High", "status": "Open",
	}
	tc := map[string]any{
		"id": 70, "requirementId": 7, "title": "Consent form blocks treatment",
		"description": "Try to treat without consent.", "steps": []any{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"status": "OK"})
	})
	mux.HandleFunc("GET /api/requirements", func(w http.ResponseWriter, r *http.Request) {
		if f.empty {
			respond(w, http.StatusOK, []any{})
			return
		}
		respond(w, http.StatusOK, []any{req})
	})
	mux.HandleFunc("GET /api/requirements/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "7" {
			respond(w, http.StatusNotFound, map[string]any{"error": "Requirement not found"})
			return
		}
		respond(w, http.StatusOK, req)
	})
	mux.HandleFunc("GET /api/test-cases", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []any{tc})
	})
	mux.HandleFunc("GET /api/test-cases/requirement/{id}", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []any{tc})
	})
	mux.HandleFunc("POST /api/chat/sessions", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"sessionId": 42})
	})
	mux.HandleFunc("POST /api/chat/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.messages = []map[string]any{
			{"id": 1, "role": "user", "content": body.Message},
			{"id": 2, "role": "assistant", "content": "# Test Cases\n\nThree cases generated."},
		}
		f.mu.Unlock()
		respond(w, http.StatusOK, map[string]any{"id": 1})
	})
	mux.HandleFunc("GET /api/chat/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		respond(w, http.StatusOK, f.messages)
	})
	mux.HandleFunc("GET /api/chat/requirements/{id}/sessions", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []any{map[string]any{"id": 42}})
	})
	mux.HandleFunc("DELETE /api/chat/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"success": true})
	})
	return mux
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeServer(t *testing.T, f *fakeBackend) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command with args from an empty working
// directory and returns stdout, stderr and the command error.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// fastFlags keeps chat timing short for tests.
var fastFlags = []string{"--settle-delay", "0s", "--poll-interval", "1ms", "--poll-timeout", "200ms"}

func runArgs(baseURL string, extra ...string) []string {
	args := append([]string{"run", baseURL}, fastFlags...)
	return append(args, extra...)
}
