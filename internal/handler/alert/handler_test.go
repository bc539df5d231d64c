package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kidia/backend/internal/config"
	alertmodel "github.com/kidia/backend/internal/model/alert"
	alertservice "github.com/kidia/backend/internal/service/alert"
	chatservice "github.com/kidia/backend/internal/service/chat"
	"github.com/kidia/backend/internal/service/conversation"
	memoryservice "github.com/kidia/backend/internal/service/memory"
	"github.com/kidia/backend/internal/store"
)

func newTestRouter(t *testing.T) (chi.Router, string) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	err := st.UpsertChild(ctx, store.ChildProfile{
		ID: "child-1", ParentID: "parent-1", Name: "Ana",
	})
	if err != nil {
		t.Fatalf("seed child: %v", err)
	}

	alertID, err := st.InsertAlert(ctx, alertmodel.Alert{
		ChildID:         "child-1",
		Type:            alertmodel.TypeSensitiveQuestion,
		Severity:        alertmodel.SeverityMedium,
		Title:           "Pergunta sobre morte",
		Content:         "conteúdo",
		OriginalMessage: "por que as pessoas morrem?",
	})
	if err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	svc := chatservice.NewService(nil,
		conversation.NewService(st),
		memoryservice.NewService(st),
		alertservice.NewService(st),
		config.ChatConfig{MaxMessageLength: 2000, HistoryLimit: 10},
	)

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, alertID
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListRequiresParent(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without parent_id, got %d", rec.Code)
	}
}

func TestListAndMarkRead(t *testing.T) {
	r, alertID := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/?parent_id=parent-1&unread_only=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var listed struct {
		Success bool              `json:"success"`
		Alerts  []alertmodel.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !listed.Success || len(listed.Alerts) != 1 || listed.Alerts[0].ID != alertID {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	// Wrong parent: 200 with success=false, never an error.
	rec = doRequest(t, r, http.MethodPost, "/"+alertID+"/read", `{"parent_id":"parent-2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ownership mismatch, got %d", rec.Code)
	}
	var marked struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &marked); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if marked.Success {
		t.Fatal("ownership mismatch must not mark the alert read")
	}

	rec = doRequest(t, r, http.MethodPost, "/"+alertID+"/read", `{"parent_id":"parent-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &marked); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !marked.Success {
		t.Fatal("owner mark read should succeed")
	}

	rec = doRequest(t, r, http.MethodGet, "/?parent_id=parent-1&unread_only=true", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(listed.Alerts) != 0 {
		t.Fatalf("expected empty unread list after mark read, got %+v", listed.Alerts)
	}
}

func TestMarkAllRead(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/read-all", `{"parent_id":"parent-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || payload.Count != 1 {
		t.Fatalf("expected one transition, got %+v", payload)
	}

	rec = doRequest(t, r, http.MethodPost, "/read-all", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without parent_id, got %d", rec.Code)
	}
}
