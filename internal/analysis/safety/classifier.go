// Package safety implements the deterministic text moderation rules for
// the children's assistant: a blocklist that stops generation outright
// and an ordered sensitive-pattern table that feeds parent alerting.
package safety

import (
	"regexp"
	"strings"

	"github.com/kidia/backend/internal/model/alert"
)

// RedirectMessage replaces the assistant reply whenever the blocklist
// matches the child's message.
const RedirectMessage = "Hmm, vamos conversar sobre outra coisa? 🌈"

// Verdict is the outcome of the blocklist check. A blocked verdict is a
// designed outcome, never an error.
type Verdict struct {
	Blocked bool
	Reason  string
}

// Match describes the first sensitive rule that applied to a message.
type Match struct {
	Type     alert.Type
	Severity alert.Severity
	Title    string
}

// blockedTopics are matched as case-insensitive substrings against both
// inbound and generated text.
var blockedTopics = []string{
	"violência", "violencia", "matar", "morte", "morrer",
	"drogas", "álcool", "alcool", "cigarro", "bebida",
	"palavrão", "palavrao", "xingamento",
	"sexo", "sexual", "adulto",
	"arma", "tiro", "sangue",
}

type sensitiveRule struct {
	pattern  *regexp.Regexp
	typ      alert.Type
	severity alert.Severity
	title    string
}

// sensitiveRules is evaluated in declaration order; the first match wins.
// Reordering the slice is the only thing needed to change precedence.
var sensitiveRules = []sensitiveRule{
	{
		pattern:  regexp.MustCompile(`(?i)(?:de onde|como)\s+(?:vem|vêm|surgem?)\s+(?:os\s+)?beb[êe]s?`),
		typ:      alert.TypeSensitiveQuestion,
		severity: alert.SeverityMedium,
		title:    "Pergunta sobre origem dos bebês",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:por que|porque)\s+(?:as pessoas|alguém|a gente)\s+morr?e`),
		typ:      alert.TypeSensitiveQuestion,
		severity: alert.SeverityMedium,
		title:    "Pergunta sobre morte",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:meus pais|papai e mamãe|meu pai|minha mãe)\s+(?:vão\s+)?(?:separar|divorciar|brigar)`),
		typ:      alert.TypeSensitiveQuestion,
		severity: alert.SeverityHigh,
		title:    "Preocupação com separação dos pais",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:estou|tô|to)\s+(?:triste|com medo|assustado|preocupado)`),
		typ:      alert.TypeBehaviorConcern,
		severity: alert.SeverityMedium,
		title:    "Criança expressando sentimentos negativos",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:ninguém|nenhum amigo|sozinho|não tenho amigos)`),
		typ:      alert.TypeBehaviorConcern,
		severity: alert.SeverityMedium,
		title:    "Possível isolamento social",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:me batem|me machucam|me xingam|bullying)`),
		typ:      alert.TypeBehaviorConcern,
		severity: alert.SeverityHigh,
		title:    "Possível bullying ou maus tratos",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:quero\s+)?(?:sumir|desaparecer|fugir|ir embora)`),
		typ:      alert.TypeBehaviorConcern,
		severity: alert.SeverityHigh,
		title:    "Criança querendo fugir/desaparecer",
	},
	{
		pattern:  regexp.MustCompile(`(?i)(?:o que é|como funciona)\s+(?:sexo|drogas?|cigarro|bebida alcoólica)`),
		typ:      alert.TypeSensitiveQuestion,
		severity: alert.SeverityMedium,
		title:    "Pergunta sobre temas adultos",
	},
}

// Classify runs the blocklist over the given text. Both the child's
// message and the generated reply must pass through here.
func Classify(text string) Verdict {
	lowered := strings.ToLower(text)
	for _, topic := range blockedTopics {
		if strings.Contains(lowered, topic) {
			return Verdict{Blocked: true, Reason: RedirectMessage}
		}
	}
	return Verdict{}
}

// MatchSensitive returns the first sensitive rule matching the text, or
// nil when none applies. Only inbound text needs this check; it drives
// alerting, not generation blocking.
func MatchSensitive(text string) *Match {
	for _, rule := range sensitiveRules {
		if rule.pattern.MatchString(text) {
			return &Match{Type: rule.typ, Severity: rule.severity, Title: rule.title}
		}
	}
	return nil
}
