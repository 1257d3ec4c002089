package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		xp, level, next int
	}{
		{0, 1, 100},
		{99, 1, 100},
		{100, 2, 200},
		{250, 3, 300},
		{-50, 1, 100},
	}
	for _, tt := range tests {
		level := LevelFor(tt.xp)
		assert.Equal(t, tt.level, level, "xp=%d", tt.xp)
		assert.Equal(t, tt.next, NextLevelXP(level), "xp=%d", tt.xp)
	}
}

func TestPointsInt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"integer", `10`, 10},
		{"float truncates", `7.9`, 7},
		{"negative", `-3`, -3},
		{"numeric string", `"12"`, 12},
		{"padded string", `" 4 "`, 4},
		{"word", `"dez"`, 0},
		{"null", `null`, 0},
		{"bool", `true`, 0},
		{"object", `{"v":1}`, 0},
		{"huge", `1e300`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Reply
			require.NoError(t, json.Unmarshal([]byte(`{"xp":`+tt.raw+`}`), &r))
			assert.Equal(t, tt.want, r.XP.Int())
		})
	}

	var missing Points
	assert.Equal(t, 0, missing.Int())
}

func TestPointsKeepRawValue(t *testing.T) {
	in := `{"type":"help","intro":"","steps":[],"explanation":"","examples":[],"follow_up_questions":[],"xp":"10 pontos","coins":2.5}`
	var r Reply
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, 2, r.Coins.Int())
	assert.Equal(t, 0, r.XP.Int())
}

func TestUserJSONHidesPassword(t *testing.T) {
	data, err := json.Marshal(User{Username: "ana", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hash")
}

func TestReplyUnmarshalCoercesShape(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		intro  string
		steps  []string
		answer string
	}{
		{"well formed", `{"intro":"Oi","steps":["a","b"],"final_answer":"42"}`, "Oi", []string{"a", "b"}, "42"},
		{"lone string step", `{"intro":"Oi","steps":"a"}`, "Oi", []string{"a"}, ""},
		{"numeric intro", `{"intro":7,"steps":[]}`, "7", []string{}, ""},
		{"numeric answer", `{"intro":"","steps":[1,null,true],"final_answer":12.5}`, "", []string{"1", "true"}, "12.5"},
		{"list intro", `{"intro":["Oi","tudo bem"],"steps":null}`, "Oi\ntudo bem", nil, ""},
		{"object step", `{"intro":null,"steps":{"n":1}}`, "", []string{`{"n":1}`}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Reply
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			assert.Equal(t, tt.intro, r.Intro)
			assert.Equal(t, tt.steps, r.Steps)
			assert.Equal(t, tt.answer, r.FinalAnswer)
		})
	}
}
