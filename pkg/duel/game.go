package duel

import "math/rand"

// Choice is one hand in rock paper scissors.
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
)

// Choices lists the hands in button order.
var Choices = []Choice{Rock, Paper, Scissors}

var beats = map[Choice]Choice{
	Rock:     Scissors,
	Scissors: Paper,
	Paper:    Rock,
}

// Valid reports whether c is one of the three hands.
func (c Choice) Valid() bool {
	_, ok := beats[c]
	return ok
}

// Beats reports whether c wins against other.
func (c Choice) Beats(other Choice) bool {
	return beats[c] == other
}

// Outcome is the result of a round from the invoker's side.
type Outcome int

const (
	Draw Outcome = iota
	Win
	Loss
)

// Play decides a round between the invoker's hand and the bot's hand.
func Play(player, bot Choice) Outcome {
	switch {
	case player == bot:
		return Draw
	case player.Beats(bot):
		return Win
	default:
		return Loss
	}
}

// RandomChoice picks a hand uniformly at random.
func RandomChoice() Choice {
	return Choices[rand.Intn(len(Choices))]
}
