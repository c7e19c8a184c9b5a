package checks

import (
	"fmt"
	"regexp"

	"github.com/healthtestai/apicheck/internal/apiclient"
	"github.com/healthtestai/apicheck/internal/shape"
)

// Session keys written by one check and read by later ones.
const (
	KeyRequirementID        = "requirementId"
	KeySessionID            = "sessionId"
	KeyUnknownRequirementID = "unknownRequirementId"
)

// Session is the run-scoped registry of values passed between checks. It is
// used from a single goroutine and needs no locking.
type Session struct {
	values   map[string]string
	messages []shape.ChatMessage
}

// NewSession returns an empty Session.
func NewSession() *Session {
	return &Session{values: map[string]string{}}
}

// Set stores v under key. Empty values are ignored so Requires stays honest.
func (s *Session) Set(key, v string) {
	if v == "" {
		return
	}
	s.values[key] = v
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Missing returns the keys that have no value, in order.
func (s *Session) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := s.values[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// RequirementID is the id sampled from the requirements listing.
func (s *Session) RequirementID() string { return s.values[KeyRequirementID] }

// SessionID is the chat session created during the run.
func (s *Session) SessionID() string { return s.values[KeySessionID] }

// Messages is the last chat history read during the run.
func (s *Session) Messages() []shape.ChatMessage { return s.messages }

func (s *Session) setMessages(msgs []shape.ChatMessage) { s.messages = msgs }

var placeholder = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9]*)\}`)

// Expand fills {key} placeholders in tmpl with path-escaped Session values.
func (s *Session) Expand(tmpl string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := s.values[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return apiclient.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("path %s: no value for %v", tmpl, missing)
	}
	return out, nil
}
