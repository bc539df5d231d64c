package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	alertmodel "github.com/kidia/backend/internal/model/alert"
	chatmodel "github.com/kidia/backend/internal/model/chat"
)

// testStores returns both implementations so every contract test runs
// against each.
func testStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func seedChild(t *testing.T, s Store, childID, parentID string) {
	t.Helper()
	age := 8
	err := s.UpsertChild(context.Background(), ChildProfile{
		ID: childID, ParentID: parentID, Name: "Ana", Age: &age,
	})
	if err != nil {
		t.Fatalf("seed child: %v", err)
	}
}

func TestSessionFindOrCreate(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChild(t, s, "child-1", "parent-1")

			first, err := s.FindOrCreateActiveSession(ctx, "child-1")
			if err != nil {
				t.Fatalf("first find-or-create: %v", err)
			}
			second, err := s.FindOrCreateActiveSession(ctx, "child-1")
			if err != nil {
				t.Fatalf("second find-or-create: %v", err)
			}
			if first.ID != second.ID {
				t.Fatalf("expected same session, got %s and %s", first.ID, second.ID)
			}

			if err := s.EndSession(ctx, first.ID); err != nil {
				t.Fatalf("end session: %v", err)
			}
			// Ending twice is a no-op.
			if err := s.EndSession(ctx, first.ID); err != nil {
				t.Fatalf("repeat end session: %v", err)
			}

			third, err := s.FindOrCreateActiveSession(ctx, "child-1")
			if err != nil {
				t.Fatalf("find-or-create after end: %v", err)
			}
			if third.ID == first.ID {
				t.Fatal("expected a fresh session after ending the previous one")
			}
		})
	}
}

func TestSessionFindOrCreateConcurrent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChild(t, s, "child-1", "parent-1")

			const workers = 4
			ids := make([]string, workers)
			errs := make([]error, workers)

			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					session, err := s.FindOrCreateActiveSession(ctx, "child-1")
					ids[i], errs[i] = session.ID, err
				}(i)
			}
			wg.Wait()

			for i := 0; i < workers; i++ {
				if errs[i] != nil {
					t.Fatalf("worker %d: %v", i, errs[i])
				}
				if ids[i] != ids[0] {
					t.Fatalf("two active sessions created: %s and %s", ids[0], ids[i])
				}
			}
		})
	}
}

func TestMessagesAppendAndRecent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChild(t, s, "child-1", "parent-1")

			session, err := s.FindOrCreateActiveSession(ctx, "child-1")
			if err != nil {
				t.Fatalf("find-or-create: %v", err)
			}

			turns := []chatmodel.Turn{
				{Role: chatmodel.RoleUser, Content: "oi"},
				{Role: chatmodel.RoleAssistant, Content: "olá!"},
				{Role: chatmodel.RoleUser, Content: "tudo bem?"},
				{Role: chatmodel.RoleAssistant, Content: "tudo ótimo!"},
				{Role: chatmodel.RoleUser, Content: "que bom"},
			}
			for _, turn := range turns {
				if err := s.AppendMessage(ctx, session.ID, turn.Role, turn.Content); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			recent, err := s.RecentMessages(ctx, session.ID, 3)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(recent) != 3 {
				t.Fatalf("expected 3 turns, got %d", len(recent))
			}
			for i, want := range turns[2:] {
				if recent[i] != want {
					t.Fatalf("turn %d: got %+v want %+v", i, recent[i], want)
				}
			}

			// Re-callable: a second read reflects current state.
			again, err := s.RecentMessages(ctx, session.ID, 3)
			if err != nil {
				t.Fatalf("recent again: %v", err)
			}
			if len(again) != 3 || again[0] != recent[0] {
				t.Fatal("expected identical result on repeat read")
			}

			updated, err := s.FindOrCreateActiveSession(ctx, "child-1")
			if err != nil {
				t.Fatalf("reload session: %v", err)
			}
			if updated.MessageCount != len(turns) {
				t.Fatalf("expected message count %d, got %d", len(turns), updated.MessageCount)
			}
		})
	}
}

func TestMemoryContextRoundTrip(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChild(t, s, "child-1", "parent-1")

			if _, err := s.UpdateMemoryContext(ctx, "missing", func(m map[string]any) map[string]any { return m }); err != ErrChildNotFound {
				t.Fatalf("expected ErrChildNotFound, got %v", err)
			}

			updated, err := s.UpdateMemoryContext(ctx, "child-1", func(m map[string]any) map[string]any {
				m["favorite_color"] = "azul"
				return m
			})
			if err != nil {
				t.Fatalf("update context: %v", err)
			}
			if updated["favorite_color"] != "azul" {
				t.Fatalf("unexpected updated context: %v", updated)
			}

			stored, err := s.MemoryContext(ctx, "child-1")
			if err != nil {
				t.Fatalf("read context: %v", err)
			}
			if stored["favorite_color"] != "azul" {
				t.Fatalf("unexpected stored context: %v", stored)
			}
		})
	}
}

func TestAlertOwnershipScoping(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChild(t, s, "child-1", "parent-1")
			seedChild(t, s, "child-2", "parent-2")

			alertID, err := s.InsertAlert(ctx, alertmodel.Alert{
				ChildID:         "child-1",
				Type:            alertmodel.TypeSensitiveQuestion,
				Severity:        alertmodel.SeverityMedium,
				Title:           "Pergunta sobre morte",
				Content:         "conteúdo",
				OriginalMessage: "por que as pessoas morrem?",
			})
			if err != nil {
				t.Fatalf("insert alert: %v", err)
			}

			// Wrong parent sees nothing and changes nothing.
			if alerts, _ := s.AlertsByParent(ctx, "parent-2", false, 0); len(alerts) != 0 {
				t.Fatalf("parent-2 should not see parent-1 alerts, got %d", len(alerts))
			}
			if marked, err := s.MarkAlertRead(ctx, alertID, "parent-2"); err != nil || marked {
				t.Fatalf("expected no effect for wrong parent, got marked=%v err=%v", marked, err)
			}

			unread, err := s.AlertsByParent(ctx, "parent-1", true, 0)
			if err != nil {
				t.Fatalf("list unread: %v", err)
			}
			if len(unread) != 1 || unread[0].WasRead {
				t.Fatalf("expected one unread alert, got %+v", unread)
			}
			if unread[0].ChildName != "Ana" {
				t.Fatalf("expected child name attached, got %q", unread[0].ChildName)
			}

			marked, err := s.MarkAlertRead(ctx, alertID, "parent-1")
			if err != nil || !marked {
				t.Fatalf("expected mark read to succeed, got marked=%v err=%v", marked, err)
			}

			all, err := s.AlertsByParent(ctx, "parent-1", false, 0)
			if err != nil || len(all) != 1 {
				t.Fatalf("list all: %v (%d alerts)", err, len(all))
			}
			if !all[0].WasRead || all[0].ReadAt == nil {
				t.Fatalf("expected read alert with read_at, got %+v", all[0])
			}
			firstReadAt := *all[0].ReadAt

			// Second mark-read succeeds trivially and keeps read_at.
			marked, err = s.MarkAlertRead(ctx, alertID, "parent-1")
			if err != nil || !marked {
				t.Fatalf("expected repeat mark read to succeed, got marked=%v err=%v", marked, err)
			}
			all, _ = s.AlertsByParent(ctx, "parent-1", false, 0)
			if all[0].ReadAt == nil || !all[0].ReadAt.Equal(firstReadAt) {
				t.Fatalf("read_at changed on repeat mark read: %v -> %v", firstReadAt, all[0].ReadAt)
			}
		})
	}
}

func TestMarkAllAlertsRead(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedChild(t, s, "child-1", "parent-1")
			seedChild(t, s, "child-2", "parent-2")

			for i := 0; i < 3; i++ {
				_, err := s.InsertAlert(ctx, alertmodel.Alert{
					ChildID:         "child-1",
					Type:            alertmodel.TypeBehaviorConcern,
					Severity:        alertmodel.SeverityMedium,
					Title:           "Possível isolamento social",
					Content:         "conteúdo",
					OriginalMessage: "estou sozinho",
				})
				if err != nil {
					t.Fatalf("insert alert: %v", err)
				}
			}
			if _, err := s.InsertAlert(ctx, alertmodel.Alert{
				ChildID:         "child-2",
				Type:            alertmodel.TypeBlockedTopic,
				Severity:        alertmodel.SeverityHigh,
				Title:           "Tentativa de conversa sobre tema bloqueado",
				Content:         "conteúdo",
				OriginalMessage: "mensagem",
			}); err != nil {
				t.Fatalf("insert alert: %v", err)
			}

			count, err := s.MarkAllAlertsRead(ctx, "parent-1")
			if err != nil {
				t.Fatalf("mark all read: %v", err)
			}
			if count != 3 {
				t.Fatalf("expected 3 transitions, got %d", count)
			}

			// Repeat is a no-op; the other parent's alert is untouched.
			count, err = s.MarkAllAlertsRead(ctx, "parent-1")
			if err != nil || count != 0 {
				t.Fatalf("expected 0 transitions on repeat, got %d (%v)", count, err)
			}
			unread, _ := s.AlertsByParent(ctx, "parent-2", true, 0)
			if len(unread) != 1 {
				t.Fatalf("parent-2 alert should remain unread, got %d unread", len(unread))
			}
		})
	}
}
