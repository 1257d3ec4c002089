package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/profai/internal/llm"
	"github.com/pavelanni/profai/internal/model"
)

func makeHistory(n int) []Turn {
	h := make([]Turn, n)
	for i := range h {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		h[i] = Turn{Role: role, Content: fmt.Sprintf("msg-%d", i)}
	}
	return h
}

func TestDirective(t *testing.T) {
	tests := []struct {
		style string
		want  string
	}{
		{"paciente", "paciente e detalhado"},
		{"direto", "direto e objetivo"},
		{"poético", "poética"},
		{"motivacional", "encorajador"},
		{"sarcástico", "paciente e detalhado"},
		{"", "paciente e detalhado"},
	}

	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			assert.Contains(t, Directive(tt.style), tt.want)
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	tests := []struct {
		name     string
		rt       model.RequestType
		contains []string
	}{
		{"help", model.RequestHelp, []string{`"type" da resposta deve ser exatamente "help"`, `"xp": 10`, `"coins": 2`, "sem entregar a resposta final"}},
		{"hint", model.RequestHint, []string{`exatamente "hint"`, `"xp": 5`, `"coins": 1`, "UMA dica"}},
		{"answer", model.RequestAnswer, []string{`exatamente "answer"`, `"xp": 2`, `"coins": 1`, `"final_answer"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := SystemPrompt("Matemática", "direto", tt.rt)
			require.NoError(t, err)
			assert.Contains(t, prompt, "especializado em Matemática")
			assert.Contains(t, prompt, Directive("direto"))
			for _, c := range tt.contains {
				assert.Contains(t, prompt, c)
			}
			for _, field := range []string{"intro", "steps", "explanation", "examples", "follow_up_questions"} {
				assert.Contains(t, prompt, `"`+field+`"`)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	msgs, err := Build(Input{
		Message:     "Como resolvo 2x + 3 = 7?",
		RequestType: model.RequestHelp,
		Subject:     "Matemática",
		Style:       "desconhecido",
		History:     makeHistory(4),
		MaxHistory:  DefaultMaxHistory,
	})
	require.NoError(t, err)
	require.Len(t, msgs, 6)

	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, Directive(string(StylePatient)))
	for i, m := range msgs {
		if i > 0 {
			assert.NotEqual(t, llm.RoleSystem, m.Role, "only the first turn is a system turn")
		}
	}
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "msg-0", msgs[1].Content)

	last := msgs[len(msgs)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Equal(t, "Como resolvo 2x + 3 = 7?", last.Content)
}

func TestBuildTruncatesHistory(t *testing.T) {
	tests := []struct {
		name       string
		history    int
		maxHistory int
		wantFirst  string
		wantKept   int
	}{
		{"under bound", 3, 10, "msg-0", 3},
		{"default bound", 25, -1, "msg-15", 10},
		{"explicit bound", 45, 30, "msg-15", 30},
		{"zero keeps none", 5, 0, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := Build(Input{
				Message:     "pergunta",
				RequestType: model.RequestHint,
				Subject:     "História",
				History:     makeHistory(tt.history),
				MaxHistory:  tt.maxHistory,
			})
			require.NoError(t, err)
			require.Len(t, msgs, tt.wantKept+2)
			if tt.wantKept > 0 {
				assert.Equal(t, tt.wantFirst, msgs[1].Content)
				assert.Equal(t, fmt.Sprintf("msg-%d", tt.history-1), msgs[len(msgs)-2].Content)
			}
		})
	}
}

func TestBuildClipsLongMessage(t *testing.T) {
	msgs, err := Build(Input{
		Message:     strings.Repeat("á", maxMessageRunes+50),
		RequestType: model.RequestAnswer,
		Subject:     "Português",
	})
	require.NoError(t, err)
	assert.Equal(t, maxMessageRunes, len([]rune(msgs[len(msgs)-1].Content)))
}
