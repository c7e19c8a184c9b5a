package shape

// Key sets asserted on the first element of each listing.
var (
	RequirementKeys = []string{"id", "jiraKey", "title", "description", "priority", "status"}
	TestCaseKeys    = []string{"id", "requirementId", "title", "description", "steps"}
)

// Requirement is the subset of a requirement record used for display.
type Requirement struct {
	ID          string `mapstructure:"id"`
	JiraKey     string `mapstructure:"jiraKey"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Priority    string `mapstructure:"priority"`
	Status      string `mapstructure:"status"`
}

// TestCase is the subset of a test case record used for display.
type TestCase struct {
	ID            string `mapstructure:"id"`
	RequirementID string `mapstructure:"requirementId"`
	Title         string `mapstructure:"title"`
	Description   string `mapstructure:"description"`
	Steps         []any  `mapstructure:"steps"`
}

// ChatMessage is one entry of a chat session history.
type ChatMessage struct {
	ID      string `mapstructure:"id" json:"id"`
	Role    string `mapstructure:"role" json:"role"`
	Content string `mapstructure:"content" json:"content"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessages decodes every object in list into a ChatMessage, skipping
// elements that are not objects.
func ChatMessages(list []any) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var m ChatMessage
		if err := Decode(obj, &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// LastAssistant returns the most recent assistant message, if any.
func LastAssistant(msgs []ChatMessage) (ChatMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return ChatMessage{}, false
}
