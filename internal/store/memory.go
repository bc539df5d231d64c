package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	alertmodel "github.com/kidia/backend/internal/model/alert"
	chatmodel "github.com/kidia/backend/internal/model/chat"
)

// MemoryStore implements Store with mutex-guarded maps. It exists for
// tests and carries no hidden global state: every instance is explicit.
type MemoryStore struct {
	mu       sync.Mutex
	children map[string]ChildProfile
	contexts map[string]map[string]any
	sessions map[string]*chatmodel.Session
	messages map[string][]chatmodel.Message
	alerts   []alertmodel.Alert
	seq      int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		children: make(map[string]ChildProfile),
		contexts: make(map[string]map[string]any),
		sessions: make(map[string]*chatmodel.Session),
		messages: make(map[string][]chatmodel.Message),
	}
}

// Close implements Store; nothing to release.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) FindOrCreateActiveSession(_ context.Context, childID string) (chatmodel.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.ChildID == childID && session.Active {
			return *session, nil
		}
	}

	session := &chatmodel.Session{
		ID:        uuid.NewString(),
		ChildID:   childID,
		Active:    true,
		StartedAt: time.Now().UTC(),
	}
	s.sessions[session.ID] = session
	return *session, nil
}

func (s *MemoryStore) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || !session.Active {
		return nil
	}
	now := time.Now().UTC()
	session.Active = false
	session.EndedAt = &now
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	message := chatmodel.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC().Add(time.Duration(s.seq)), // keeps ordering strict
	}
	s.messages[sessionID] = append(s.messages[sessionID], message)

	if session, ok := s.sessions[sessionID]; ok {
		session.MessageCount++
	}
	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]chatmodel.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.messages[sessionID]
	start := 0
	if limit > 0 && len(stored) > limit {
		start = len(stored) - limit
	}

	turns := make([]chatmodel.Turn, 0, len(stored)-start)
	for _, message := range stored[start:] {
		turns = append(turns, chatmodel.Turn{Role: message.Role, Content: message.Content})
	}
	return turns, nil
}

func (s *MemoryStore) MemoryContext(_ context.Context, childID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyContext(s.contexts[childID]), nil
}

func (s *MemoryStore) UpdateMemoryContext(_ context.Context, childID string, mutate func(map[string]any) map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[childID]; !ok {
		return nil, ErrChildNotFound
	}

	updated := mutate(copyContext(s.contexts[childID]))
	s.contexts[childID] = updated
	return copyContext(updated), nil
}

func copyContext(src map[string]any) map[string]any {
	copied := make(map[string]any, len(src))
	for key, value := range src {
		if list, ok := value.([]string); ok {
			copied[key] = append([]string(nil), list...)
			continue
		}
		copied[key] = value
	}
	return copied
}

func (s *MemoryStore) ChildProfile(_ context.Context, childID string) (*ChildProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.children[childID]
	if !ok {
		return nil, ErrChildNotFound
	}
	return &profile, nil
}

func (s *MemoryStore) UpsertChild(_ context.Context, profile ChildProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[profile.ID] = profile
	return nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, a alertmodel.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	a.ID = uuid.NewString()
	a.WasRead = false
	a.ReadAt = nil
	a.CreatedAt = time.Now().UTC().Add(time.Duration(s.seq))
	s.alerts = append(s.alerts, a)
	return a.ID, nil
}

func (s *MemoryStore) AlertsByParent(_ context.Context, parentID string, unreadOnly bool, limit int) ([]alertmodel.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	var matched []alertmodel.Alert
	for _, a := range s.alerts {
		child, ok := s.children[a.ChildID]
		if !ok || child.ParentID != parentID {
			continue
		}
		if unreadOnly && a.WasRead {
			continue
		}
		a.ChildName = child.Name
		matched = append(matched, a)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) MarkAlertRead(_ context.Context, alertID, parentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID != alertID {
			continue
		}
		child, ok := s.children[s.alerts[i].ChildID]
		if !ok || child.ParentID != parentID {
			return false, nil
		}
		if s.alerts[i].WasRead {
			return true, nil
		}
		now := time.Now().UTC()
		s.alerts[i].WasRead = true
		s.alerts[i].ReadAt = &now
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) MarkAllAlertsRead(_ context.Context, parentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now().UTC()
	for i := range s.alerts {
		if s.alerts[i].WasRead {
			continue
		}
		child, ok := s.children[s.alerts[i].ChildID]
		if !ok || child.ParentID != parentID {
			continue
		}
		s.alerts[i].WasRead = true
		s.alerts[i].ReadAt = &now
		count++
	}
	return count, nil
}
