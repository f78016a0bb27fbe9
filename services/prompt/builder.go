package prompt

import (
	"strings"

	"github.com/upb/character-chat/internal/rag"
)

// Default context labels
const (
	DefaultQuestionLabel = "question:"
	DefaultAnswerLabel   = "answer:"
)

// Options configures the context block labels
type Options struct {
	QuestionLabel string
	AnswerLabel   string
}

// Builder renders prompts from a template and retrieved documents.
// Safe for concurrent use.
type Builder struct {
	template      *Template
	questionLabel string
	answerLabel   string
}

// NewBuilder creates a builder for an already validated template
func NewBuilder(tmpl *Template, opts Options) *Builder {
	if opts.QuestionLabel == "" {
		opts.QuestionLabel = DefaultQuestionLabel
	}
	if opts.AnswerLabel == "" {
		opts.AnswerLabel = DefaultAnswerLabel
	}
	return &Builder{
		template:      tmpl,
		questionLabel: opts.QuestionLabel,
		answerLabel:   opts.AnswerLabel,
	}
}

// Build renders the prompt for question using docs, in order, as context.
// No documents yields an empty context block.
func (b *Builder) Build(question string, docs []rag.ReferenceDocument, characterName string) string {
	return b.template.Render(characterName, question, b.Context(docs))
}

// Context assembles the context block for docs
func (b *Builder) Context(docs []rag.ReferenceDocument) string {
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString("\n")
		sb.WriteString(b.questionLabel)
		sb.WriteString(" ")
		sb.WriteString(flatten(doc.Question))
		sb.WriteString("\n")
		sb.WriteString(b.answerLabel)
		sb.WriteString(" ")
		sb.WriteString(flatten(doc.Text))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// flatten drops embedded line breaks and surrounding whitespace
func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}
