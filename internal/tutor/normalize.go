package tutor

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pavelanni/profai/internal/model"
	"github.com/pavelanni/profai/internal/reward"
)

const replySchemaURL = "schema://reply.json"

// replySchema lists the keys a reply must carry. Values are not typed here;
// Reply.UnmarshalJSON coerces them.
var replySchema = map[string]any{
	"type": "object",
	"required": []any{
		"type", "intro", "steps", "explanation",
		"examples", "follow_up_questions", "xp", "coins",
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func replyValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(replySchemaURL, replySchema); err != nil {
			compileErr = fmt.Errorf("add reply schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(replySchemaURL)
	})
	return compiled, compileErr
}

// Source tells which pass produced a normalized reply.
type Source string

const (
	SourceStrict   Source = "strict"
	SourceFragment Source = "fragment"
	SourceFallback Source = "fallback"
)

// FallbackCopy is the fixed text used when the model output cannot be parsed.
type FallbackCopy struct {
	Intro     string
	Steps     []string
	Examples  []string
	FollowUps []string
}

// DefaultFallbackCopy is the Portuguese copy served to students.
var DefaultFallbackCopy = FallbackCopy{
	Intro:     "Vou te ajudar com essa questão!",
	Steps:     []string{"Analisando sua pergunta", "Preparando explicação"},
	Examples:  []string{"Consulte materiais complementares"},
	FollowUps: []string{"Ficou alguma dúvida?"},
}

// Normalizer turns raw model output into a structured reply.
type Normalizer struct {
	copy FallbackCopy
}

// NewNormalizer creates a Normalizer using the given fallback copy.
func NewNormalizer(fc FallbackCopy) *Normalizer {
	return &Normalizer{copy: fc}
}

// Normalize parses raw as a reply. A well-formed object is returned as given,
// even when its type differs from rt. Otherwise the first embedded object is
// tried, and when that fails too a fallback reply is built around raw.
func (n *Normalizer) Normalize(raw string, rt model.RequestType) (model.Reply, Source) {
	text := strings.TrimSpace(raw)

	if reply, err := parseReply([]byte(text)); err == nil {
		return reply, SourceStrict
	}

	for _, frag := range fragments(text) {
		if frag == text {
			continue
		}
		if reply, err := parseReply([]byte(frag)); err == nil {
			return reply, SourceFragment
		}
	}

	return n.fallback(raw, rt), SourceFallback
}

func (n *Normalizer) fallback(raw string, rt model.RequestType) model.Reply {
	amount := reward.For(rt)
	reply := model.Reply{
		Type:              rt,
		Intro:             n.copy.Intro,
		Steps:             append([]string(nil), n.copy.Steps...),
		Explanation:       raw,
		Examples:          append([]string(nil), n.copy.Examples...),
		FollowUpQuestions: append([]string(nil), n.copy.FollowUps...),
		XP:                model.PointsOf(amount.XP),
		Coins:             model.PointsOf(amount.Coins),
	}
	if rt == model.RequestAnswer {
		reply.FinalAnswer = raw
	}
	return reply
}

// parseReply decodes data as a single JSON object and checks it against the reply schema.
func parseReply(data []byte) (model.Reply, error) {
	var reply model.Reply

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return reply, fmt.Errorf("invalid JSON: %w", err)
	}
	validator, err := replyValidator()
	if err != nil {
		return reply, err
	}
	if err := validator.Validate(doc); err != nil {
		return reply, fmt.Errorf("reply schema: %w", err)
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return reply, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}

// fragments returns candidate objects embedded in text: the first complete
// JSON value starting at the first brace, then the span from the first
// opening brace to the last closing one.
func fragments(text string) []string {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil
	}

	var out []string
	var obj json.RawMessage
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&obj); err == nil {
		out = append(out, string(obj))
	}
	if end := strings.LastIndex(text, "}"); end > start {
		span := text[start : end+1]
		if len(out) == 0 || out[0] != span {
			out = append(out, span)
		}
	}
	return out
}
