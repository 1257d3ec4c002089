package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Reply is the structured payload the model returns for a chat turn.
type Reply struct {
	Type              RequestType `json:"type"`
	Intro             string      `json:"intro"`
	Steps             []string    `json:"steps"`
	Explanation       string      `json:"explanation"`
	FinalAnswer       string      `json:"final_answer,omitempty"`
	Examples          []string    `json:"examples"`
	FollowUpQuestions []string    `json:"follow_up_questions"`
	XP                Points      `json:"xp"`
	Coins             Points      `json:"coins"`
}

// UnmarshalJSON implements json.Unmarshaler. Values of the wrong shape are
// coerced rather than rejected: a scalar in a list field becomes a one-item
// list and a non-string in a text field becomes its JSON text.
func (r *Reply) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type              json.RawMessage `json:"type"`
		Intro             json.RawMessage `json:"intro"`
		Steps             json.RawMessage `json:"steps"`
		Explanation       json.RawMessage `json:"explanation"`
		FinalAnswer       json.RawMessage `json:"final_answer"`
		Examples          json.RawMessage `json:"examples"`
		FollowUpQuestions json.RawMessage `json:"follow_up_questions"`
		XP                Points          `json:"xp"`
		Coins             Points          `json:"coins"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Reply{
		Type:              RequestType(textOf(raw.Type)),
		Intro:             textOf(raw.Intro),
		Steps:             listOf(raw.Steps),
		Explanation:       textOf(raw.Explanation),
		FinalAnswer:       textOf(raw.FinalAnswer),
		Examples:          listOf(raw.Examples),
		FollowUpQuestions: listOf(raw.FollowUpQuestions),
		XP:                raw.XP,
		Coins:             raw.Coins,
	}
	return nil
}

func decodeValue(data json.RawMessage) (any, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func textOf(data json.RawMessage) string {
	v, ok := decodeValue(data)
	if !ok {
		return ""
	}
	return valueText(v)
}

func listOf(data json.RawMessage) []string {
	v, ok := decodeValue(data)
	if !ok {
		return nil
	}
	items, isList := v.([]any)
	if !isList {
		if s, isString := v.(string); isString && s == "" {
			return []string{}
		}
		return []string{valueText(v)}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, valueText(item))
	}
	return out
}

func valueText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if item != nil {
				parts = append(parts, valueText(item))
			}
		}
		return strings.Join(parts, "\n")
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Points keeps a reward amount exactly as the model reported it.
// The raw JSON value survives a round trip; Int coerces it for bookkeeping.
type Points json.RawMessage

// PointsOf returns the JSON encoding of n.
func PointsOf(n int) Points {
	return Points(strconv.Itoa(n))
}

// MarshalJSON implements json.Marshaler.
func (p Points) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Points) UnmarshalJSON(data []byte) error {
	*p = append((*p)[:0], bytes.TrimSpace(data)...)
	return nil
}

// Int coerces the value to an integer. Numbers are truncated, numeric
// strings are parsed, anything else (including a missing value) is zero.
func (p Points) Int() int {
	if len(p) == 0 {
		return 0
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		return numberToInt(n.String())
	case string:
		return numberToInt(strings.TrimSpace(n))
	default:
		return 0
	}
}

func numberToInt(s string) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}
