// Package memory maintains the durable per-child fact map and renders it
// as the natural-language context block handed to the provider.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kidia/backend/internal/analysis/facts"
	"github.com/kidia/backend/internal/store"
)

// interestsCap bounds the interests list to the most recent entries.
const interestsCap = 10

var ErrChildRequired = errors.New("child id is required")

// Service reads and merges memory contexts through the store.
type Service struct {
	store store.Store
}

// NewService builds a memory service over the given store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Read returns the child's memory context. When the name or age keys are
// absent, the registered profile values fill them in without being
// persisted.
func (s *Service) Read(ctx context.Context, childID string) (map[string]any, error) {
	if childID == "" {
		return nil, ErrChildRequired
	}

	contextMap, err := s.store.MemoryContext(ctx, childID)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.ChildProfile(ctx, childID)
	if errors.Is(err, store.ErrChildNotFound) {
		return contextMap, nil
	}
	if err != nil {
		return nil, err
	}

	if isEmptyValue(contextMap[facts.KeyName]) && profile.Name != "" {
		contextMap[facts.KeyName] = profile.Name
	}
	if isEmptyValue(contextMap[facts.KeyAge]) && profile.Age != nil {
		contextMap[facts.KeyAge] = *profile.Age
	}
	return contextMap, nil
}

// Merge applies extracted facts to the stored context: scalar keys are
// last-write-wins, interests are appended without duplicates and capped
// at the most recent entries. Reapplying identical facts is a no-op.
func (s *Service) Merge(ctx context.Context, childID string, updates map[string]any) (map[string]any, error) {
	if childID == "" {
		return nil, ErrChildRequired
	}

	return s.store.UpdateMemoryContext(ctx, childID, func(current map[string]any) map[string]any {
		for key, value := range updates {
			if key == facts.KeyInterests {
				current[key] = mergeInterests(toStringList(current[key]), value)
				continue
			}
			current[key] = value
		}
		return current
	})
}

func mergeInterests(current []string, value any) []string {
	for _, interest := range toStringList(value) {
		if containsString(current, interest) {
			continue
		}
		current = append(current, interest)
	}
	if len(current) > interestsCap {
		current = current[len(current)-interestsCap:]
	}
	return current
}

func containsString(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

// toStringList accepts the shapes interests arrive in: a single string
// from the extractor, []string from callers, or []any from stored JSON.
func toStringList(value any) []string {
	switch typed := value.(type) {
	case nil:
		return nil
	case string:
		return []string{typed}
	case []string:
		return typed
	case []any:
		list := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				list = append(list, s)
			}
		}
		return list
	default:
		return nil
	}
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}

// PromptBlock renders the context block appended to the system
// instruction. An empty context yields an empty string.
func PromptBlock(contextMap map[string]any) string {
	if len(contextMap) == 0 {
		return ""
	}

	parts := []string{"\n\nINFORMAÇÕES SOBRE ESTA CRIANÇA (use naturalmente na conversa):"}

	if name := stringValue(contextMap[facts.KeyName]); name != "" {
		parts = append(parts, fmt.Sprintf("- Nome da criança: %s", name))
	}
	if age, ok := intValue(contextMap[facts.KeyAge]); ok {
		parts = append(parts, fmt.Sprintf("- Idade: %d anos", age))
	}
	if color := stringValue(contextMap[facts.KeyFavoriteColor]); color != "" {
		parts = append(parts, fmt.Sprintf("- Cor favorita: %s", color))
	}
	if animal := stringValue(contextMap[facts.KeyFavoriteAnimal]); animal != "" {
		parts = append(parts, fmt.Sprintf("- Animal favorito: %s", animal))
	}
	if interests := toStringList(contextMap[facts.KeyInterests]); len(interests) > 0 {
		if len(interests) > 5 {
			interests = interests[:5]
		}
		parts = append(parts, fmt.Sprintf("- Coisas que gosta: %s", strings.Join(interests, ", ")))
	}

	if len(parts) == 1 {
		return ""
	}

	parts = append(parts, "\nUse essas informações para personalizar a conversa e mostrar que você lembra dela!")
	return strings.Join(parts, "\n")
}

func stringValue(value any) string {
	s, _ := value.(string)
	return s
}

func intValue(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case float64:
		// Stored JSON numbers decode as float64.
		return int(typed), true
	default:
		return 0, false
	}
}
