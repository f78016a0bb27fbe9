package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/services"
)

const testTemplate = `
You are {character_name}. Answer as {character_name}.

Context:
{context}

Question: {question}
`

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	tmpl, err := ParseTemplate("test", testTemplate)
	require.NoError(t, err)
	return NewBuilder(tmpl, Options{})
}

func TestBuilder_EmptyContext(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build("Ai là anh hùng dân tộc?", nil, "Trần Hưng Đạo")

	assert.Contains(t, got, "You are Trần Hưng Đạo.")
	assert.Contains(t, got, "Question: Ai là anh hùng dân tộc?")
	assert.NotContains(t, got, "question:")
	assert.Equal(t, "", b.Context(nil))
	assert.Equal(t, strings.TrimSpace(got), got)
}

func TestBuilder_ContextBlocks(t *testing.T) {
	b := newTestBuilder(t)
	docs := []rag.ReferenceDocument{
		{ID: "1", Question: "Ông sinh năm nào?\n", Text: "  Năm 1228.  "},
		{ID: "2", Question: "Trận\nBạch Đằng", Text: "Năm\r\n1288"},
		{ID: "3", Question: "Q3", Text: "A3"},
	}

	got := b.Build("Q", docs, "Trần Hưng Đạo")

	assert.Equal(t, len(docs), strings.Count(got, "question: "))
	assert.Equal(t, len(docs), strings.Count(got, "answer: "))
	assert.Contains(t, got, "question: Ông sinh năm nào?\nanswer: Năm 1228.\n\n")
	assert.Contains(t, got, "question: TrậnBạch Đằng\nanswer: Năm1288\n\n")

	// result order is preserved
	assert.Less(t, strings.Index(got, "Ông sinh"), strings.Index(got, "TrậnBạch"))
	assert.Less(t, strings.Index(got, "TrậnBạch"), strings.Index(got, "Q3"))
}

func TestBuilder_NoPlaceholderRemains(t *testing.T) {
	b := newTestBuilder(t)
	docs := []rag.ReferenceDocument{{ID: "1", Question: "q", Text: "a"}}

	for _, got := range []string{
		b.Build("question", docs, "name"),
		b.Build("question", nil, "name"),
		b.Build("", nil, ""),
	} {
		for _, p := range requiredPlaceholders {
			assert.NotContains(t, got, p)
		}
	}
}

func TestBuilder_ValuesAreNotReexpanded(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build("what is {character_name}?", nil, "Lý Thường Kiệt")

	assert.Contains(t, got, "Question: what is {character_name}?")
}

func TestBuilder_CustomLabels(t *testing.T) {
	tmpl, err := ParseTemplate("test", testTemplate)
	require.NoError(t, err)
	b := NewBuilder(tmpl, Options{QuestionLabel: "câu hỏi:", AnswerLabel: "trả lời:"})

	got := b.Build("Q", []rag.ReferenceDocument{{ID: "1", Question: "q", Text: "a"}}, "X")

	assert.Contains(t, got, "câu hỏi: q\ntrả lời: a\n\n")
}

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"all placeholders", "{character_name} {question} {context}", false},
		{"escaped braces", "{{json}} {character_name} {question} {context}", false},
		{"missing context", "{character_name} {question}", true},
		{"missing question", "{character_name} {context}", true},
		{"escaped placeholder does not count", "{character_name} {question} {{context}}", true},
		{"unknown placeholder", "{character_name} {question} {context} {mood}", true},
		{"empty", "   \n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate("test", tt.text)
			if tt.wantErr {
				assert.True(t, services.IsTemplateError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTemplate_RenderEscapedBraces(t *testing.T) {
	tmpl, err := ParseTemplate("test", `{{"role": "{character_name}"}} {question} {context}`)
	require.NoError(t, err)

	assert.Equal(t, `{"role": "X"} Q`, tmpl.Render("X", "Q", ""))
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte(testTemplate), 0o600))

	tmpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, path, tmpl.Source())
}

func TestLoadTemplate_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.txt")
	_, err := LoadTemplate(path)

	require.Error(t, err)
	assert.True(t, services.IsTemplateError(err))
	assert.Equal(t, path, services.GetErrorDetails(err)["path"])
}

func TestLoadTemplate_Default(t *testing.T) {
	tmpl, err := LoadTemplate(filepath.Join("..", "..", "prompts", "character.txt"))
	require.NoError(t, err)

	got := NewBuilder(tmpl, Options{}).Build("Ai là anh hùng dân tộc?", nil, "Trần Hưng Đạo")
	assert.Contains(t, got, "Trần Hưng Đạo")
	assert.Contains(t, got, "Ai là anh hùng dân tộc?")
}
