// Package reward holds the experience and coin amounts granted per chat turn.
package reward

import "github.com/pavelanni/profai/internal/model"

// Amount is the reward granted for one assistant reply.
type Amount struct {
	XP    int
	Coins int
}

var table = map[model.RequestType]Amount{
	model.RequestHelp:   {XP: 10, Coins: 2},
	model.RequestHint:   {XP: 5, Coins: 1},
	model.RequestAnswer: {XP: 2, Coins: 1},
}

// Default applies to request types missing from the table.
var Default = Amount{XP: 2, Coins: 1}

// For returns the reward for the given request type.
func For(t model.RequestType) Amount {
	if a, ok := table[t]; ok {
		return a
	}
	return Default
}
