package chat

import "time"

// Roles accepted in a session transcript and in provider turn lists.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message persists individual turns for audit/debug.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn is the role/content pair handed to the generation provider and
// accepted as fallback history from callers without a session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is what the orchestrator returns to the routing layer. A
// filtered result is a designed outcome, not an error: the canned
// redirect is carried in Response.
type Result struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	Filtered  bool   `json:"filtered"`
	SessionID string `json:"sessionId,omitempty"`
}
