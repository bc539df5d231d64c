package alert

import "time"

// Type classifies what triggered a parent-facing alert.
type Type string

const (
	TypeBlockedTopic      Type = "blocked_topic"
	TypeSensitiveQuestion Type = "sensitive_question"
	TypeBehaviorConcern   Type = "behavior_concern"
)

// Severity ranks how urgently a parent should look at an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is surfaced to a parent when a child's message or the assistant
// reply matched a sensitive or blocked pattern. Immutable except for the
// one-way unread -> read transition.
type Alert struct {
	ID              string     `json:"id"`
	ChildID         string     `json:"childId"`
	ChildName       string     `json:"childName,omitempty"`
	Type            Type       `json:"alertType"`
	Severity        Severity   `json:"severity"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	OriginalMessage string     `json:"originalMessage"`
	Response        string     `json:"response,omitempty"`
	WasRead         bool       `json:"wasRead"`
	CreatedAt       time.Time  `json:"createdAt"`
	ReadAt          *time.Time `json:"readAt,omitempty"`
}
