// Package store provides the persistence interface consumed by the
// conversation engine, with a SQLite implementation for deployments and
// an in-memory implementation for tests.
package store

import (
	"context"
	"errors"

	alertmodel "github.com/kidia/backend/internal/model/alert"
	chatmodel "github.com/kidia/backend/internal/model/chat"
)

// ErrChildNotFound is returned when an operation references a child id
// with no profile row.
var ErrChildNotFound = errors.New("child not found")

// ChildProfile is the read-only registration record used as fallback for
// the name/age memory keys and for parent-ownership checks.
type ChildProfile struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
	Name     string `json:"name"`
	Age      *int   `json:"age,omitempty"`
}

// Store is the repository consumed by the engine. Implementations must
// make FindOrCreateActiveSession atomic (two concurrent first messages
// for the same child converge on one session) and run UpdateMemoryContext
// as a transactional read-modify-write.
type Store interface {
	// Sessions.
	FindOrCreateActiveSession(ctx context.Context, childID string) (chatmodel.Session, error)
	EndSession(ctx context.Context, sessionID string) error

	// Messages. AppendMessage also bumps the owning session's
	// message_count; RecentMessages returns at most limit turns in
	// chronological order.
	AppendMessage(ctx context.Context, sessionID, role, content string) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]chatmodel.Turn, error)

	// Memory context. MemoryContext returns the stored map as-is (empty
	// for unknown children); UpdateMemoryContext applies mutate to the
	// current map and persists the result, returning it.
	MemoryContext(ctx context.Context, childID string) (map[string]any, error)
	UpdateMemoryContext(ctx context.Context, childID string, mutate func(map[string]any) map[string]any) (map[string]any, error)

	// Child profiles.
	ChildProfile(ctx context.Context, childID string) (*ChildProfile, error)
	UpsertChild(ctx context.Context, profile ChildProfile) error

	// Alerts. All queries and mutations are scoped through the
	// child-belongs-to-parent relationship; a mismatch yields no effect,
	// never an error.
	InsertAlert(ctx context.Context, a alertmodel.Alert) (string, error)
	AlertsByParent(ctx context.Context, parentID string, unreadOnly bool, limit int) ([]alertmodel.Alert, error)
	MarkAlertRead(ctx context.Context, alertID, parentID string) (bool, error)
	MarkAllAlertsRead(ctx context.Context, parentID string) (int, error)

	Close() error
}
