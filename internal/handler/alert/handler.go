// Package alert serves the parent-facing alert routes.
package alert

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	alertmodel "github.com/kidia/backend/internal/model/alert"
	chatservice "github.com/kidia/backend/internal/service/chat"
	"github.com/kidia/backend/pkg/utils"
)

// Handler serves alert listing and read-state routes.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the alert handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the alert routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/{alertID}/read", h.handleMarkRead)
	r.Post("/read-all", h.handleMarkAllRead)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	parentID := r.URL.Query().Get("parent_id")
	if parentID == "" {
		utils.RespondError(w, http.StatusBadRequest, "parent_id is required")
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	alerts, err := h.chatSvc.ListAlerts(r.Context(), parentID, unreadOnly, limit)
	if err != nil {
		log.Printf("[alert] list failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	if alerts == nil {
		alerts = []alertmodel.Alert{}
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"alerts":  alerts,
	})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")
	parentID, ok := parentIDFromBody(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "parent_id is required")
		return
	}

	marked, err := h.chatSvc.MarkAlertRead(r.Context(), alertID, parentID)
	if err != nil {
		log.Printf("[alert] mark read failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to mark alert read")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": marked})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	parentID, ok := parentIDFromBody(r)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "parent_id is required")
		return
	}

	count, err := h.chatSvc.MarkAllAlertsRead(r.Context(), parentID)
	if err != nil {
		log.Printf("[alert] mark all read failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to mark alerts read")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func parentIDFromBody(r *http.Request) (string, bool) {
	var payload struct {
		ParentID string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ParentID == "" {
		return "", false
	}
	return payload.ParentID, true
}
