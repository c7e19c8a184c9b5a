package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/healthtestai/apicheck/internal/shape"
)

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the transcript filename for a chat session.
func Filename(sessionID string, ts time.Time) string {
	return fmt.Sprintf("chat-%s-%s.json", sanitizeName(sessionID), ts.Format("20060102-150405"))
}

// ChatTranscript is the persisted history of one chat session observed
// during a run.
type ChatTranscript struct {
	RunID         string              `json:"runId"`
	BaseURL       string              `json:"baseUrl"`
	SessionID     string              `json:"sessionId"`
	RequirementID string              `json:"requirementId"`
	CapturedAt    time.Time           `json:"capturedAt"`
	Counts        Counts              `json:"counts"`
	Messages      []shape.ChatMessage `json:"messages"`
}

// New builds a ChatTranscript from a decoded message list.
func New(runID, baseURL, sessionID, requirementID string, msgs []shape.ChatMessage, at time.Time) *ChatTranscript {
	return &ChatTranscript{
		RunID:         runID,
		BaseURL:       baseURL,
		SessionID:     sessionID,
		RequirementID: requirementID,
		CapturedAt:    at,
		Counts:        Tally(msgs),
		Messages:      msgs,
	}
}

// Write serializes a ChatTranscript and writes it to dir.
func Write(dir string, t *ChatTranscript) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	name := Filename(t.SessionID, t.CapturedAt)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	return path, nil
}
