// Package alert creates and queries parent-facing alerts. Everything is
// scoped through the child-belongs-to-parent relationship: an ownership
// mismatch yields no effect, never an error.
package alert

import (
	"context"
	"errors"

	alertmodel "github.com/kidia/backend/internal/model/alert"
	"github.com/kidia/backend/internal/store"
)

var (
	ErrChildRequired  = errors.New("child id is required")
	ErrParentRequired = errors.New("parent id is required")
)

// Service manages parent alerts through the store.
type Service struct {
	store store.Store
}

// NewService builds an alert service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create files a new unread alert for the child's parent and returns its
// id. Response may be empty when no assistant reply exists (blocked turns
// store the canned redirect instead).
func (s *Service) Create(ctx context.Context, childID string, typ alertmodel.Type, severity alertmodel.Severity, title, content, originalMessage, response string) (string, error) {
	if childID == "" {
		return "", ErrChildRequired
	}
	return s.store.InsertAlert(ctx, alertmodel.Alert{
		ChildID:         childID,
		Type:            typ,
		Severity:        severity,
		Title:           title,
		Content:         content,
		OriginalMessage: originalMessage,
		Response:        response,
	})
}

// ListUnread returns the parent's unread alerts, newest first.
func (s *Service) ListUnread(ctx context.Context, parentID string) ([]alertmodel.Alert, error) {
	if parentID == "" {
		return nil, ErrParentRequired
	}
	return s.store.AlertsByParent(ctx, parentID, true, 0)
}

// ListAll returns up to limit of the parent's alerts, newest first.
func (s *Service) ListAll(ctx context.Context, parentID string, limit int) ([]alertmodel.Alert, error) {
	if parentID == "" {
		return nil, ErrParentRequired
	}
	return s.store.AlertsByParent(ctx, parentID, false, limit)
}

// MarkRead transitions an owned alert to read. Marking an already-read
// alert reports success without refreshing read_at; an ownership mismatch
// or unknown id reports false.
func (s *Service) MarkRead(ctx context.Context, alertID, parentID string) (bool, error) {
	if alertID == "" || parentID == "" {
		return false, nil
	}
	return s.store.MarkAlertRead(ctx, alertID, parentID)
}

// MarkAllRead transitions every unread alert owned by the parent and
// returns the number changed.
func (s *Service) MarkAllRead(ctx context.Context, parentID string) (int, error) {
	if parentID == "" {
		return 0, ErrParentRequired
	}
	return s.store.MarkAllAlertsRead(ctx, parentID)
}
