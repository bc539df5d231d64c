// Package conversation manages session lifecycle and the per-session
// message log on top of the persistent store.
package conversation

import (
	"context"
	"errors"
	"fmt"

	chatmodel "github.com/kidia/backend/internal/model/chat"
	"github.com/kidia/backend/internal/store"
)

var (
	ErrChildRequired   = errors.New("child id is required")
	ErrSessionRequired = errors.New("session id is required")
	ErrInvalidRole     = errors.New("role must be user or assistant")
)

// Service wraps the store's session and message operations.
type Service struct {
	store store.Store
}

// NewService builds a conversation service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// GetOrCreateActiveSession returns the child's active session, creating
// a fresh one when the previous session has ended or none exists. The
// store guarantees at most one active session per child even under
// concurrent calls.
func (s *Service) GetOrCreateActiveSession(ctx context.Context, childID string) (chatmodel.Session, error) {
	if childID == "" {
		return chatmodel.Session{}, ErrChildRequired
	}
	return s.store.FindOrCreateActiveSession(ctx, childID)
}

// EndSession transitions a session to its terminal ended state. Ending an
// already-ended session is a no-op.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	return s.store.EndSession(ctx, sessionID)
}

// Append stores one turn and bumps the session's message count.
func (s *Service) Append(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if role != chatmodel.RoleUser && role != chatmodel.RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return s.store.AppendMessage(ctx, sessionID, role, content)
}

// Recent returns at most limit most-recent turns in chronological order.
// It always reflects the current stored state and can be re-called.
func (s *Service) Recent(ctx context.Context, sessionID string, limit int) ([]chatmodel.Turn, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	return s.store.RecentMessages(ctx, sessionID, limit)
}
