package prompt

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/upb/character-chat/services"
)

// Template placeholders
const (
	PlaceholderCharacterName = "{character_name}"
	PlaceholderQuestion      = "{question}"
	PlaceholderContext       = "{context}"
)

var (
	requiredPlaceholders = []string{PlaceholderCharacterName, PlaceholderQuestion, PlaceholderContext}
	placeholderPattern   = regexp.MustCompile(`\{[^{}]*\}`)
)

// Template is a validated prompt template. It is immutable once loaded.
type Template struct {
	source string
	text   string
}

// LoadTemplate reads and validates the template at path. Any failure is
// reported as PromptTemplateMissing.
func LoadTemplate(path string) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, services.NewTemplateMissing(path, err)
	}
	return ParseTemplate(path, string(raw))
}

// ParseTemplate validates template text. source names the template in errors.
func ParseTemplate(source, text string) (*Template, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.NewTemplateMissing(source, fmt.Errorf("template is empty"))
	}

	// escaped braces are literal text, not placeholders
	unescaped := strings.NewReplacer("{{", "", "}}", "").Replace(text)
	for _, p := range requiredPlaceholders {
		if !strings.Contains(unescaped, p) {
			return nil, services.NewTemplateMissing(source, fmt.Errorf("template has no %s placeholder", p))
		}
	}
	for _, p := range placeholderPattern.FindAllString(unescaped, -1) {
		if !isKnownPlaceholder(p) {
			return nil, services.NewTemplateMissing(source, fmt.Errorf("template has unknown placeholder %s", p))
		}
	}

	return &Template{source: source, text: text}, nil
}

// Source returns where the template was loaded from
func (t *Template) Source() string {
	return t.source
}

// Render substitutes every placeholder in a single pass, so substituted
// values are never themselves expanded.
func (t *Template) Render(characterName, question, context string) string {
	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		PlaceholderCharacterName, characterName,
		PlaceholderQuestion, question,
		PlaceholderContext, context,
	)
	return strings.TrimSpace(r.Replace(t.text))
}

func isKnownPlaceholder(p string) bool {
	for _, known := range requiredPlaceholders {
		if p == known {
			return true
		}
	}
	return false
}
