package chat

import "time"

// Session bounds a span of conversation turns for a single child.
// At most one session per child is active at any instant; once ended it
// is never reopened.
type Session struct {
	ID           string     `json:"id"`
	ChildID      string     `json:"childId"`
	Active       bool       `json:"active"`
	MessageCount int        `json:"messageCount"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}
