package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	alerthandler "github.com/kidia/backend/internal/handler/alert"
	chathandler "github.com/kidia/backend/internal/handler/chat"
	chatservice "github.com/kidia/backend/internal/service/chat"
	"github.com/kidia/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the conversation engine.
func NewRouter(chatSvc *chatservice.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	chatHandler := chathandler.New(chatSvc)
	alertHandler := alerthandler.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		api.Get("/", handleIndex)
		api.Get("/health", handleHealth)

		api.Route("/chat", chatHandler.RegisterRoutes)
		api.Route("/alerts", alertHandler.RegisterRoutes)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "KidIA Backend",
		"version": "1.0.0",
	})
}

func handleIndex(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":     "Bem-vindo à API do KidIA! 🌟",
		"description": "Chatbot educativo para crianças",
		"endpoints": map[string]string{
			"health": "/api/health",
			"chat":   "/api/chat",
			"alerts": "/api/alerts",
		},
	})
}
