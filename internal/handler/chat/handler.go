// Package chat exposes the conversation engine over HTTP. The handlers
// are thin glue: authentication, CSRF and rate limiting belong to the
// surrounding layer and the ids in each request are trusted as given.
package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/kidia/backend/internal/model/chat"
	chatservice "github.com/kidia/backend/internal/service/chat"
	"github.com/kidia/backend/internal/service/conversation"
	"github.com/kidia/backend/internal/store"
	"github.com/kidia/backend/pkg/utils"
)

const genericErrorMessage = "Ops! Algo deu errado. Tente novamente! 🔄"

// Handler serves the chat, session and memory routes.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the chat routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/message", h.handleMessage)
	r.Get("/suggestions", h.handleSuggestions)
	r.Post("/session", h.handleCreateSession)
	r.Post("/session/{sessionID}/end", h.handleEndSession)
	r.Get("/memory/{childID}", h.handleGetMemory)
	r.Put("/memory/{childID}", h.handleUpdateMemory)
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message             string           `json:"message"`
		ChildID             string           `json:"child_id"`
		ConversationHistory []chatmodel.Turn `json:"conversation_history"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Por favor, envie uma mensagem",
		})
		return
	}

	if chatservice.Sanitize(payload.Message, 0) == "" {
		utils.RespondJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "A mensagem está vazia",
		})
		return
	}

	result, err := h.chatSvc.GetResponse(r.Context(), payload.Message, payload.ChildID, payload.ConversationHistory)
	if err != nil {
		log.Printf("[chat] message request failed: %v", err)
		utils.RespondJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": genericErrorMessage,
		})
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	utils.RespondJSON(w, status, result)
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	type suggestion struct {
		Emoji string `json:"emoji"`
		Text  string `json:"text"`
	}
	suggestions := []suggestion{
		{Emoji: "🦕", Text: "Por que os dinossauros foram extintos?"},
		{Emoji: "🌙", Text: "Por que a lua muda de forma?"},
		{Emoji: "🌈", Text: "Como o arco-íris se forma?"},
		{Emoji: "🐋", Text: "Qual é o maior animal do mundo?"},
		{Emoji: "⭐", Text: "Por que as estrelas brilham?"},
		{Emoji: "🦋", Text: "Como as lagartas viram borboletas?"},
		{Emoji: "🌋", Text: "O que é um vulcão?"},
		{Emoji: "🐧", Text: "Por que os pinguins não voam?"},
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"suggestions": suggestions,
	})
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ChildID string `json:"child_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ChildID == "" {
		utils.RespondError(w, http.StatusBadRequest, "child_id is required")
		return
	}

	sessionID, err := h.chatSvc.GetOrCreateSession(r.Context(), payload.ChildID)
	if err != nil {
		log.Printf("[chat] create session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, genericErrorMessage)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{"sessionId": sessionID})
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.chatSvc.EndSession(r.Context(), sessionID); err != nil {
		if errors.Is(err, conversation.ErrSessionRequired) {
			utils.RespondError(w, http.StatusBadRequest, "session id is required")
			return
		}
		log.Printf("[chat] end session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, genericErrorMessage)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *Handler) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "childID")

	contextMap, err := h.chatSvc.GetMemoryContext(r.Context(), childID)
	if err != nil {
		log.Printf("[chat] read memory failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, genericErrorMessage)
		return
	}

	utils.RespondJSON(w, http.StatusOK, contextMap)
}

func (h *Handler) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	childID := chi.URLParam(r, "childID")

	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contextMap, err := h.chatSvc.UpdateMemoryContext(r.Context(), childID, updates)
	if err != nil {
		if errors.Is(err, store.ErrChildNotFound) {
			utils.RespondError(w, http.StatusNotFound, "child not found")
			return
		}
		log.Printf("[chat] update memory failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, genericErrorMessage)
		return
	}

	utils.RespondJSON(w, http.StatusOK, contextMap)
}
