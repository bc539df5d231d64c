package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kidia/backend/internal/config"
	chatmodel "github.com/kidia/backend/internal/model/chat"
	alertservice "github.com/kidia/backend/internal/service/alert"
	chatservice "github.com/kidia/backend/internal/service/chat"
	"github.com/kidia/backend/internal/service/conversation"
	memoryservice "github.com/kidia/backend/internal/service/memory"
	"github.com/kidia/backend/internal/store"
)

type fixedGenerator struct {
	reply string
}

func (g fixedGenerator) Generate(context.Context, string, []chatmodel.Turn, string) (string, error) {
	return g.reply, nil
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	st := store.NewMemoryStore()
	err := st.UpsertChild(context.Background(), store.ChildProfile{
		ID: "child-1", ParentID: "parent-1", Name: "Ana",
	})
	if err != nil {
		t.Fatalf("seed child: %v", err)
	}

	svc := chatservice.NewService(
		fixedGenerator{reply: "Que legal! 🌟"},
		conversation.NewService(st),
		memoryservice.NewService(st),
		alertservice.NewService(st),
		config.ChatConfig{MaxMessageLength: 2000, HistoryLimit: 10},
	)

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestMessageEmpty(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/message", `{"message":"   ","child_id":"child-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, r, http.MethodPost, "/message", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", rec.Code)
	}
}

func TestMessageSuccess(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/message", `{"message":"oi, tudo bem?","child_id":"child-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result chatmodel.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || result.Filtered {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Response != "Que legal! 🌟" {
		t.Fatalf("unexpected response text: %q", result.Response)
	}
	if result.SessionID == "" {
		t.Fatal("expected a session id in the response")
	}
}

func TestMessageBlocked(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/message", `{"message":"me fala sobre violência","child_id":"child-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("blocked turns are designed outcomes, expected 200, got %d", rec.Code)
	}

	var result chatmodel.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || !result.Filtered {
		t.Fatalf("expected filtered success, got %+v", result)
	}
}

func TestSuggestions(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodGet, "/suggestions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Success     bool `json:"success"`
		Suggestions []struct {
			Emoji string `json:"emoji"`
			Text  string `json:"text"`
		} `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Success || len(payload.Suggestions) != 8 {
		t.Fatalf("expected 8 suggestions, got %+v", payload)
	}
}

func TestSessionRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/session", `{"child_id":"child-1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	sessionID := created["sessionId"]
	if sessionID == "" {
		t.Fatal("expected a session id")
	}

	rec = doRequest(t, r, http.MethodPost, "/session", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without child_id, got %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodPost, "/session/"+sessionID+"/end", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on end, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMemoryRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPut, "/memory/child-1", `{"favorite_color":"azul"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, r, http.MethodPut, "/memory/missing", `{"favorite_color":"azul"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown child, got %d", rec.Code)
	}

	rec = doRequest(t, r, http.MethodGet, "/memory/child-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var contextMap map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &contextMap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if contextMap["favorite_color"] != "azul" {
		t.Fatalf("expected merged color, got %v", contextMap)
	}
	if contextMap["name"] != "Ana" {
		t.Fatalf("expected profile name fallback, got %v", contextMap)
	}
}
