package checks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/healthtestai/apicheck/internal/apiclient"
	"github.com/healthtestai/apicheck/internal/poll"
)

// fakeAPI is an in-memory stand-in for the HealthTestAI backend. The zero
// value plus newFakeAPI() serves a well-formed corpus and a working chat.
type fakeAPI struct {
	mu sync.Mutex

	requirements []map[string]any
	testCases    []map[string]any
	sessions     map[string][]map[string]any

	healthStatus int
	// replyAfter is how many history reads happen before the assistant reply
	// shows up.
	replyAfter int
	reads      int

	paths []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		healthStatus: http.StatusOK,
		requirements: []map[string]any{
			{
				"id": "req-1", "jiraKey": "HT-101", "title": "Patient data must be encrypted at rest",
				"description": "All PHI stored by the platform is encrypted with AES-256.",
				"priority":    "Critical", "status": "Open",
			},
			{
				"id": "req-2", "jiraKey": "HT-102", "title": "Audit log for record access",
				"description": "Every read of a patient record is audited.",
				"priority":    "High", "status": "In Progress",
			},
		},
		testCases: []map[string]any{
			{
				"id": "tc-1", "requirementId": "req-1", "title": "Verify encryption of stored records",
				"description": "Inspect storage for plaintext PHI.",
				"steps":       []any{map[string]any{"step": "Store a record", "expectedResult": "Ciphertext on disk"}},
			},
		},
		sessions: map[string][]map[string]any{},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)

	p := r.URL.Path
	switch {
	case p == "/api/health" && r.Method == http.MethodGet:
		writeJSON(w, f.healthStatus, map[string]any{"status": "ok"})

	case p == "/api/requirements" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, f.requirementsOrEmpty())

	case strings.HasPrefix(p, "/api/requirements/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(p, "/api/requirements/")
		for _, req := range f.requirements {
			if req["id"] == id {
				writeJSON(w, http.StatusOK, req)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Requirement not found"})

	case p == "/api/test-cases" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, f.testCases)

	case strings.HasPrefix(p, "/api/test-cases/requirement/"):
		id := strings.TrimPrefix(p, "/api/test-cases/requirement/")
		out := []map[string]any{}
		for _, tc := range f.testCases {
			if tc["requirementId"] == id {
				out = append(out, tc)
			}
		}
		writeJSON(w, http.StatusOK, out)

	case p == "/api/chat/sessions" && r.Method == http.MethodPost:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["requirementId"] == nil || body["requirementId"] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "requirementId is required"})
			return
		}
		id := "sess-1"
		f.sessions[id] = []map[string]any{}
		writeJSON(w, http.StatusOK, map[string]any{"sessionId": id})

	case strings.HasPrefix(p, "/api/chat/sessions/") && strings.HasSuffix(p, "/messages"):
		id := strings.TrimSuffix(strings.TrimPrefix(p, "/api/chat/sessions/"), "/messages")
		msgs, ok := f.sessions[id]
		if r.Method == http.MethodPost {
			if !ok {
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to send message"})
				return
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			msgs = append(msgs, map[string]any{"id": "m1", "role": "user", "content": body["message"]})
			f.sessions[id] = msgs
			f.reads = 0
			writeJSON(w, http.StatusOK, map[string]any{"id": "m1", "role": "user"})
			return
		}
		f.reads++
		if ok && len(msgs) > 0 && f.reads > f.replyAfter && !hasAssistant(msgs) {
			msgs = append(msgs, map[string]any{
				"id": "m2", "role": "assistant",
				"content": "## Generated Test Cases\n\nI've generated **3 test cases**.",
			})
			f.sessions[id] = msgs
		}
		if msgs == nil {
			msgs = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, msgs)

	case strings.HasPrefix(p, "/api/chat/requirements/") && strings.HasSuffix(p, "/sessions"):
		out := []map[string]any{}
		for id := range f.sessions {
			out = append(out, map[string]any{"id": id})
		}
		writeJSON(w, http.StatusOK, out)

	case strings.HasPrefix(p, "/api/chat/sessions/") && r.Method == http.MethodDelete:
		delete(f.sessions, strings.TrimPrefix(p, "/api/chat/sessions/"))
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) requirementsOrEmpty() []map[string]any {
	if f.requirements == nil {
		return []map[string]any{}
	}
	return f.requirements
}

func (f *fakeAPI) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func hasAssistant(msgs []map[string]any) bool {
	for _, m := range msgs {
		if m["role"] == "assistant" {
			return true
		}
	}
	return false
}

// newTestRunner starts srv and returns a runner with no settle delay and
// fast polling.
func newTestRunner(t *testing.T, h http.Handler, opts ...RunnerOption) (*Runner, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(srv.URL, apiclient.WithTimeout(5*time.Second))
	require.NoError(t, err)

	base := []RunnerOption{
		WithSettleDelay(0),
		WithPoll(poll.Options{Initial: time.Millisecond, Max: 5 * time.Millisecond, Deadline: 500 * time.Millisecond}),
	}
	return NewRunner(client, append(base, opts...)...), srv
}
