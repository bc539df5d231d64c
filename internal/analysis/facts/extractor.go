// Package facts extracts profile facts from free-form child messages
// using an ordered pattern table. Extraction never fails; it simply
// yields fewer facts when nothing matches.
package facts

import (
	"regexp"
	"strconv"
	"strings"
)

// Recognized memory-context keys produced by Extract.
const (
	KeyName           = "name"
	KeyAge            = "age"
	KeyFavoriteColor  = "favorite_color"
	KeyFavoriteAnimal = "favorite_animal"
	KeyInterests      = "interests"
)

type extractionRule struct {
	key      string
	patterns []*regexp.Regexp
}

// extractionRules is tried per key in order; the first pattern with a
// match wins for that key. Keys without a match are absent from the
// result.
var extractionRules = []extractionRule{
	{
		key: KeyName,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:meu nome é|me chamo|pode me chamar de|sou o|sou a)\s+([A-Za-zÀ-ÿ]+)`),
			regexp.MustCompile(`(?i)(?:eu sou|eu me chamo)\s+([A-Za-zÀ-ÿ]+)`),
		},
	},
	{
		key: KeyAge,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:tenho|eu tenho|fiz)\s+(\d+)\s+anos?`),
			regexp.MustCompile(`(?i)(\d+)\s+anos?(?:\s+de idade)?`),
		},
	},
	{
		key: KeyFavoriteColor,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:minha cor favorita é|gosto (?:da cor|de)|adoro a cor)\s+([A-Za-zÀ-ÿ]+)`),
			regexp.MustCompile(`(?i)(?:cor favorita)[:\s]+([A-Za-zÀ-ÿ]+)`),
		},
	},
	{
		key: KeyFavoriteAnimal,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:meu animal favorito é|gosto de|adoro)\s+([A-Za-zÀ-ÿ]+s?)`),
			regexp.MustCompile(`(?i)(?:animal favorito)[:\s]+([A-Za-zÀ-ÿ]+)`),
		},
	},
	{
		key: KeyInterests,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:gosto de|adoro|amo)\s+(.+?)(?:\.|!|\?|$)`),
			regexp.MustCompile(`(?i)(?:meu favorito é|minha favorita é)\s+(.+?)(?:\.|!|\?|$)`),
		},
	},
}

// Extract pulls recognized facts out of a message. The age key requires
// numeric coercion of the captured group; when that fails the key is
// silently dropped.
func Extract(text string) map[string]any {
	lowered := strings.ToLower(text)
	extracted := make(map[string]any)

	for _, rule := range extractionRules {
		for _, pattern := range rule.patterns {
			groups := pattern.FindStringSubmatch(lowered)
			if groups == nil {
				continue
			}
			value := strings.TrimSpace(groups[1])
			if rule.key == KeyAge {
				age, err := strconv.Atoi(value)
				if err != nil {
					continue
				}
				extracted[rule.key] = age
			} else {
				extracted[rule.key] = value
			}
			break
		}
	}

	return extracted
}
