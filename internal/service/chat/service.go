// Package chat orchestrates a single conversation turn: sanitize, safety
// checks on both directions, session and memory upkeep, context assembly
// for the provider, persistence, and parent alerting.
package chat

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/kidia/backend/internal/analysis/facts"
	"github.com/kidia/backend/internal/analysis/safety"
	"github.com/kidia/backend/internal/config"
	alertmodel "github.com/kidia/backend/internal/model/alert"
	chatmodel "github.com/kidia/backend/internal/model/chat"
	alertservice "github.com/kidia/backend/internal/service/alert"
	"github.com/kidia/backend/internal/service/conversation"
	memoryservice "github.com/kidia/backend/internal/service/memory"
)

// systemPrompt drives the assistant's child-friendly persona.
const systemPrompt = `Você é o KidIA, um amiguinho virtual super divertido e inteligente! 🌟

SUA PERSONALIDADE:
- Você é como um amigo mais velho legal que sabe explicar as coisas de um jeito fácil
- Você adora curiosidades, brincadeiras e aprender coisas novas junto com as crianças
- Você usa palavras simples e divertidas
- Você é animado, carinhoso e sempre positivo!

COMO VOCÊ FALA:
- Use frases curtas e fáceis (máximo 2-3 frases por resposta)
- Use emojis para deixar tudo mais legal! 🎨🦄⭐🌈🚀
- Fale como se estivesse conversando com um amiguinho
- Use expressões como "Que legal!", "Uau!", "Sabia que...", "Adivinha só!"
- Faça perguntas para manter a conversa animada

EXEMPLOS DE COMO RESPONDER:
- "Que pergunta incrível! 🌟 Sabia que..."
- "Uau, você é muito curioso! 🦄 Deixa eu te contar..."
- "Boa pergunta, amiguinho! 🚀"

REGRAS DE SEGURANÇA:
- NUNCA fale sobre coisas de adulto, violência ou coisas assustadoras
- Se perguntarem algo estranho, diga: "Hmm, que tal perguntar isso pros seus pais? Eles vão adorar explicar! 💜"
- Sempre incentive a criança a conversar com os pais sobre dúvidas importantes
- Seja sempre gentil e acolhedor

IMPORTANTE: Suas respostas devem ser CURTAS (2-3 frases no máximo) e SUPER FÁCEIS de entender!`

const (
	// outputRedirect replaces a generated reply that failed the blocklist.
	outputRedirect = "Que tal conversarmos sobre outra coisa divertida? O que você gosta de fazer? 🎨"
	// fallbackResponse is the only text shown to the child on unexpected failures.
	fallbackResponse = "Ops! Tive um probleminha. Pode tentar de novo? 🔄"

	blockedAlertTitle   = "Tentativa de conversa sobre tema bloqueado"
	blockedAlertContent = "A mensagem da criança continha um tema bloqueado e foi redirecionada."
	sensitiveContent    = "Detectamos um tema que pode precisar da sua atenção. Veja a mensagem original e a resposta do KidIA."
)

// disallowedChars are stripped from inbound messages before any other
// processing.
var disallowedChars = regexp.MustCompile(`[<>{}\[\]\\]`)

// Generator is the opaque text-generation capability the orchestrator
// consumes. internal/service/ai provides the production implementation.
type Generator interface {
	Generate(ctx context.Context, system string, history []chatmodel.Turn, userMessage string) (string, error)
}

// Service composes the classifier, extractor, session log, memory and
// alerting into the request pipeline exposed to the routing layer.
type Service struct {
	generator Generator
	sessions  *conversation.Service
	memory    *memoryservice.Service
	alerts    *alertservice.Service
	cfg       config.ChatConfig
}

// NewService wires the orchestrator. generator may be nil when the
// provider is not configured; requests then degrade to the friendly
// fallback instead of failing hard.
func NewService(generator Generator, sessions *conversation.Service, memory *memoryservice.Service, alerts *alertservice.Service, cfg config.ChatConfig) *Service {
	return &Service{
		generator: generator,
		sessions:  sessions,
		memory:    memory,
		alerts:    alerts,
		cfg:       cfg,
	}
}

// Sanitize strips disallowed characters and truncates the message to the
// configured maximum length.
func Sanitize(message string, maxLength int) string {
	cleaned := disallowedChars.ReplaceAllString(message, "")
	if runes := []rune(cleaned); maxLength > 0 && len(runes) > maxLength {
		cleaned = string(runes[:maxLength])
	}
	return strings.TrimSpace(cleaned)
}

// GetResponse runs one full conversation turn. childID may be empty for
// anonymous requests, in which case fallbackHistory supplies the context
// and nothing is persisted. When both a child id and a fallback history
// are present, the session-backed history wins.
func (s *Service) GetResponse(ctx context.Context, message, childID string, fallbackHistory []chatmodel.Turn) (chatmodel.Result, error) {
	clean := Sanitize(message, s.cfg.MaxMessageLength)

	if verdict := safety.Classify(clean); verdict.Blocked {
		return s.blockedTurn(ctx, clean, childID, verdict.Reason)
	}

	var (
		sessionID string
		sensitive *safety.Match
	)
	history := fallbackHistory
	if len(history) > s.cfg.HistoryLimit {
		history = history[len(history)-s.cfg.HistoryLimit:]
	}

	if childID != "" {
		session, err := s.sessions.GetOrCreateActiveSession(ctx, childID)
		if err != nil {
			return s.failure(sessionID), fmt.Errorf("get session: %w", err)
		}
		sessionID = session.ID

		sensitive = safety.MatchSensitive(clean)

		if extracted := facts.Extract(clean); len(extracted) > 0 {
			if _, err := s.memory.Merge(ctx, childID, extracted); err != nil {
				return s.failure(sessionID), fmt.Errorf("merge memory: %w", err)
			}
		}

		// Session history is read before the current turn is appended so
		// the assembled context does not repeat the user message.
		history, err = s.sessions.Recent(ctx, sessionID, s.cfg.HistoryLimit)
		if err != nil {
			return s.failure(sessionID), fmt.Errorf("load history: %w", err)
		}

		if err := s.sessions.Append(ctx, sessionID, chatmodel.RoleUser, clean); err != nil {
			return s.failure(sessionID), fmt.Errorf("append user turn: %w", err)
		}
	}

	system := systemPrompt
	if childID != "" {
		contextMap, err := s.memory.Read(ctx, childID)
		if err != nil {
			return s.failure(sessionID), fmt.Errorf("read memory: %w", err)
		}
		system += memoryservice.PromptBlock(contextMap)
	}

	reply, err := s.generate(ctx, system, history, clean)
	if err != nil {
		log.Printf("[chat] generation failed: %v", err)
		return chatmodel.Result{Success: false, Response: fallbackResponse, SessionID: sessionID}, nil
	}

	if verdict := safety.Classify(reply); verdict.Blocked {
		log.Printf("[chat] generated reply blocked, substituting redirect")
		reply = outputRedirect
	}

	if sessionID != "" {
		if err := s.sessions.Append(ctx, sessionID, chatmodel.RoleAssistant, reply); err != nil {
			return s.failure(sessionID), fmt.Errorf("append assistant turn: %w", err)
		}
		if sensitive != nil {
			_, err := s.alerts.Create(ctx, childID, sensitive.Type, sensitive.Severity,
				sensitive.Title, sensitiveContent, clean, reply)
			if err != nil {
				return s.failure(sessionID), fmt.Errorf("create alert: %w", err)
			}
		}
	}

	return chatmodel.Result{Success: true, Response: reply, SessionID: sessionID}, nil
}

// blockedTurn produces the canned redirect without calling the provider.
// With a child context the turn pair is still persisted and a
// blocked_topic alert is filed.
func (s *Service) blockedTurn(ctx context.Context, clean, childID, redirect string) (chatmodel.Result, error) {
	var sessionID string
	if childID != "" {
		session, err := s.sessions.GetOrCreateActiveSession(ctx, childID)
		if err != nil {
			return s.failure(""), fmt.Errorf("get session: %w", err)
		}
		sessionID = session.ID

		if err := s.sessions.Append(ctx, sessionID, chatmodel.RoleUser, clean); err != nil {
			return s.failure(sessionID), fmt.Errorf("append user turn: %w", err)
		}
		if err := s.sessions.Append(ctx, sessionID, chatmodel.RoleAssistant, redirect); err != nil {
			return s.failure(sessionID), fmt.Errorf("append assistant turn: %w", err)
		}

		_, err = s.alerts.Create(ctx, childID, alertmodel.TypeBlockedTopic, alertmodel.SeverityHigh,
			blockedAlertTitle, blockedAlertContent, clean, redirect)
		if err != nil {
			return s.failure(sessionID), fmt.Errorf("create alert: %w", err)
		}
	}

	return chatmodel.Result{Success: true, Response: redirect, Filtered: true, SessionID: sessionID}, nil
}

func (s *Service) generate(ctx context.Context, system string, history []chatmodel.Turn, userMessage string) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("generation provider not configured")
	}
	return s.generator.Generate(ctx, system, history, userMessage)
}

func (s *Service) failure(sessionID string) chatmodel.Result {
	return chatmodel.Result{Success: false, Response: fallbackResponse, SessionID: sessionID}
}

// GetOrCreateSession exposes session creation to the routing layer.
func (s *Service) GetOrCreateSession(ctx context.Context, childID string) (string, error) {
	session, err := s.sessions.GetOrCreateActiveSession(ctx, childID)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

// EndSession exposes session termination to the routing layer.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	return s.sessions.EndSession(ctx, sessionID)
}

// GetMemoryContext returns the child's memory context with profile
// fallbacks applied.
func (s *Service) GetMemoryContext(ctx context.Context, childID string) (map[string]any, error) {
	return s.memory.Read(ctx, childID)
}

// UpdateMemoryContext merges a partial fact map into the child's stored
// context and returns the post-merge state.
func (s *Service) UpdateMemoryContext(ctx context.Context, childID string, updates map[string]any) (map[string]any, error) {
	return s.memory.Merge(ctx, childID, updates)
}

// ListAlerts returns the parent's alerts, optionally unread-only.
func (s *Service) ListAlerts(ctx context.Context, parentID string, unreadOnly bool, limit int) ([]alertmodel.Alert, error) {
	if unreadOnly {
		return s.alerts.ListUnread(ctx, parentID)
	}
	return s.alerts.ListAll(ctx, parentID, limit)
}

// MarkAlertRead marks one owned alert as read.
func (s *Service) MarkAlertRead(ctx context.Context, alertID, parentID string) (bool, error) {
	return s.alerts.MarkRead(ctx, alertID, parentID)
}

// MarkAllAlertsRead marks every owned unread alert as read and returns
// the count.
func (s *Service) MarkAllAlertsRead(ctx context.Context, parentID string) (int, error) {
	return s.alerts.MarkAllRead(ctx, parentID)
}
