// internal/game/engine.go
//
// Core game engine for a single guess-the-number session.
// Responsibilities:
//   - Create new games with a target drawn from a RandomSource.
//   - Parse raw input lines into guesses.
//   - Apply guesses: echo, hint at the threshold, loss past the ceiling,
//     otherwise a three-way comparison against the target.
//   - Track state transitions: awaiting_input → won/lost.
//
// Notes:
//   - Attempts count only non-winning, successfully parsed guesses.
//   - The ceiling check runs before the comparison and uses ">", so a game
//     with ten misses still compares an eleventh guess.

package game

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Game holds the state of a single session.
// The target is fixed at construction and never changes.
type Game struct {
	ID        string
	StartedAt time.Time

	rules    Rules
	target   int
	attempts int
	state    State
}

// New constructs a game with DefaultRules and a target drawn from src.
func New(src RandomSource) *Game {
	return NewWithRules(src, DefaultRules())
}

// NewWithRules constructs a game with explicit rules.
func NewWithRules(src RandomSource, rules Rules) *Game {
	return &Game{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		rules:     rules,
		target:    src.NextInRange(rules.Min, rules.Max),
		state:     StateAwaitingInput,
	}
}

func (g *Game) Target() int    { return g.target }
func (g *Game) Attempts() int  { return g.attempts }
func (g *Game) State() State   { return g.state }
func (g *Game) Rules() Rules   { return g.rules }
func (g *Game) Finished() bool { return g.state.Terminal() }

// ParseGuess trims line and parses it as an unsigned integer. One leading
// '+' is accepted. Any failure wraps ErrInvalidInput.
func ParseGuess(line string) (uint32, error) {
	s := strings.TrimSpace(line)
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}
	return uint32(n), nil
}

// ApplyGuess evaluates one parsed guess and mutates the game state.
//
// Order of evaluation per guess:
//  1. Hint: if attempts == HintThreshold, the target is revealed.
//  2. Ceiling: if attempts > LossCeiling, the game is lost and the guess is
//     not compared.
//  3. Compare: less/greater bump attempts, equal wins.
func (g *Game) ApplyGuess(guess uint32) (Outcome, error) {
	if g.Finished() {
		return Outcome{}, ErrGameFinished
	}
	out := Outcome{Guess: guess}

	if g.attempts == g.rules.HintThreshold {
		out.Hint = true
		out.Target = g.target
	}

	if g.attempts > g.rules.LossCeiling {
		g.state = StateLost
		return g.finish(out), nil
	}

	g.state = StateComparing
	switch cmp.Compare(int64(guess), int64(g.target)) {
	case -1:
		out.Feedback = FeedbackTooSmall
		g.attempts++
		g.state = StateAwaitingInput
	case 1:
		out.Feedback = FeedbackTooBig
		g.attempts++
		g.state = StateAwaitingInput
	default:
		out.Feedback = FeedbackCorrect
		g.state = StateWon
	}
	return g.finish(out), nil
}

// finish stamps the post-guess state onto out.
func (g *Game) finish(out Outcome) Outcome {
	out.State = g.state
	out.Attempts = g.attempts
	return out
}
