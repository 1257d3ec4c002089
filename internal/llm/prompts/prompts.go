package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/profai/internal/llm"
	"github.com/pavelanni/profai/internal/model"
	"github.com/pavelanni/profai/internal/reward"
)

// DefaultMaxHistory is the number of history turns kept when the caller
// does not configure one.
const DefaultMaxHistory = 10

const maxMessageRunes = 10000

//go:embed templates/*.tmpl
var templateFS embed.FS

// Style is a teaching style preference.
type Style string

const (
	StylePatient    Style = "paciente"
	StyleDirect     Style = "direto"
	StylePoetic     Style = "poético"
	StyleMotivating Style = "motivacional"
)

var styleDirectives = map[Style]string{
	StylePatient:    "Seja muito paciente e detalhado. Explique passo a passo com calma.",
	StyleDirect:     "Seja direto e objetivo nas explicações, sem rodeios.",
	StylePoetic:     "Use uma linguagem mais poética e criativa nas explicações.",
	StyleMotivating: "Seja encorajador e motivacional em suas respostas.",
}

// Styles lists the supported teaching styles in display order.
var Styles = []Style{StylePatient, StyleDirect, StylePoetic, StyleMotivating}

// Directive returns the instruction for a style. Unknown styles get the patient one.
func Directive(style string) string {
	if d, ok := styleDirectives[Style(style)]; ok {
		return d
	}
	return styleDirectives[StylePatient]
}

// IsValidStyle checks if a style name is known.
func IsValidStyle(s string) bool {
	_, ok := styleDirectives[Style(s)]
	return ok
}

var (
	loadOnce   sync.Once
	loadErr    error
	systemTmpl *template.Template
)

func load() error {
	loadOnce.Do(func() {
		systemTmpl, loadErr = template.ParseFS(templateFS, "templates/system.tmpl")
		if loadErr != nil {
			loadErr = fmt.Errorf("parse system prompt template: %w", loadErr)
		}
	})
	return loadErr
}

// Turn is a prior message of the conversation.
type Turn struct {
	Role    model.Role
	Content string
}

// Input holds everything needed to build the prompt for one chat turn.
type Input struct {
	Message     string
	RequestType model.RequestType
	Subject     string
	Style       string
	History     []Turn // chronological
	MaxHistory  int    // negative means DefaultMaxHistory
}

type systemData struct {
	Subject     string
	Style       string
	RequestType model.RequestType
	XP, Coins   int

	HelpXP, HelpCoins     int
	HintXP, HintCoins     int
	AnswerXP, AnswerCoins int
}

// SystemPrompt renders the system instruction for a subject, style and request type.
func SystemPrompt(subject, style string, rt model.RequestType) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	amount := reward.For(rt)
	help, hint, answer := reward.For(model.RequestHelp), reward.For(model.RequestHint), reward.For(model.RequestAnswer)
	data := systemData{
		Subject:     subject,
		Style:       Directive(style),
		RequestType: rt,
		XP:          amount.XP,
		Coins:       amount.Coins,
		HelpXP:      help.XP,
		HelpCoins:   help.Coins,
		HintXP:      hint.XP,
		HintCoins:   hint.Coins,
		AnswerXP:    answer.XP,
		AnswerCoins: answer.Coins,
	}
	var buf bytes.Buffer
	if err := systemTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}

// Build assembles the chat turns sent upstream: one system turn, the most
// recent history turns in order, then the new user message.
func Build(in Input) ([]llm.Message, error) {
	system, err := SystemPrompt(in.Subject, in.Style, in.RequestType)
	if err != nil {
		return nil, err
	}

	history := Recent(in.History, in.MaxHistory)

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == model.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: clip(in.Message)})
	return msgs, nil
}

// Recent returns the last limit turns of history, keeping their order.
func Recent(history []Turn, limit int) []Turn {
	if limit < 0 {
		limit = DefaultMaxHistory
	}
	if len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

func clip(s string) string {
	if utf8.RuneCountInString(s) > maxMessageRunes {
		runes := []rune(s)
		return string(runes[:maxMessageRunes])
	}
	return s
}
