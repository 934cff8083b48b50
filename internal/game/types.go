// internal/game/types.go
//
// Core type definitions for the guessing game engine.
// Defines:
//   - State: where a game is in its lifecycle.
//   - Feedback: three-way result of comparing a guess to the target.
//   - Rules: range, hint threshold and loss ceiling.
//   - Outcome: everything a front end needs to report one applied guess.

package game

import "errors"

// State is a game's position in the guess loop.
//
// Transitions:
//   - AwaitingInput → Comparing on every applied guess.
//   - Comparing → AwaitingInput on a miss, → Won on a match.
//   - AwaitingInput → Lost once the loss ceiling is exceeded.
//
// Hinting is not a state of its own: it is reported on the Outcome of the
// guess evaluated while attempts equal the hint threshold.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateComparing     State = "comparing"
	StateWon           State = "won"
	StateLost          State = "lost"
)

// Terminal reports whether no further guesses are accepted.
func (s State) Terminal() bool { return s == StateWon || s == StateLost }

// Feedback is the result of comparing one guess to the target.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackTooSmall Feedback = "too_small"
	FeedbackTooBig   Feedback = "too_big"
	FeedbackCorrect  Feedback = "correct"
)

var (
	// ErrInvalidInput is returned by ParseGuess for lines that are not a
	// non-negative integer. It is recoverable: callers re-prompt.
	ErrInvalidInput = errors.New("invalid input")
	// ErrGameFinished is returned when a guess is applied after Won or Lost.
	ErrGameFinished = errors.New("game finished")
)

// Rules fixes the numeric parameters of a game.
type Rules struct {
	Min           int // Lowest possible target (inclusive).
	Max           int // Highest possible target (inclusive).
	HintThreshold int // Attempt count at which the target is revealed.
	LossCeiling   int // Attempt count beyond which the game is lost.
}

// DefaultRules returns the classic 1..100 game with a hint after five misses
// and a loss after more than ten.
func DefaultRules() Rules {
	return Rules{Min: 1, Max: 100, HintThreshold: 5, LossCeiling: 10}
}

// Outcome describes the effect of one applied guess.
type Outcome struct {
	Guess    uint32   // The parsed guess, echoed back to the player.
	Hint     bool     // True if the target was revealed on this guess.
	Target   int      // Set only when Hint is true.
	Feedback Feedback // FeedbackNone when the guess ended the game as a loss.
	State    State    // State after the guess.
	Attempts int      // Attempt count after the guess.
}
