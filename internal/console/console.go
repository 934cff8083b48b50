// internal/console/console.go
//
// Interactive terminal front end for a single game.
// Reads one line per prompt, applies it to the engine, and prints the
// outcome until the game is won or lost.
//
// Failure handling:
//   - Unparsable lines print a message and re-prompt; attempts are unchanged.
//   - Input closing before a line is read ends the game with ErrInputClosed.

package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guess/apps/go-server/internal/game"
)

// ErrInputClosed is returned when input ends or fails before the game does.
var ErrInputClosed = errors.New("input closed")

// Player-facing messages.
const (
	msgBanner  = "Guess the number!"
	msgPrompt  = "Please input your number!"
	msgInvalid = "Please type a number!"
	msgEcho    = "You guessed: %d"
	msgHint    = "The secret number is: %d"
	msgSmall   = "Too small!"
	msgBig     = "Too big!"
	msgWin     = "You win!"
	msgLose    = "You lose!"
)

// Play runs g to completion against in/out and returns the terminal state.
// ctx is checked between prompts; a blocked read is not interrupted.
func Play(ctx context.Context, g *game.Game, in io.Reader, out io.Writer) (game.State, error) {
	r := bufio.NewReader(in)
	fmt.Fprintln(out, msgBanner)
	log.Debug().Str("gameId", g.ID).Msg("game started")

	for !g.Finished() {
		if err := ctx.Err(); err != nil {
			return g.State(), err
		}
		fmt.Fprintln(out, msgPrompt)

		line, err := readLine(r)
		if err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Int("attempts", g.Attempts()).Msg("read guess")
			return g.State(), err
		}

		guess, err := game.ParseGuess(line)
		if err != nil {
			log.Debug().Err(err).Msg("rejected input")
			fmt.Fprintln(out, msgInvalid)
			continue
		}

		res, err := g.ApplyGuess(guess)
		if err != nil {
			return g.State(), err
		}
		report(out, res)
	}

	log.Debug().Str("gameId", g.ID).Str("state", string(g.State())).Int("attempts", g.Attempts()).Msg("game over")
	return g.State(), nil
}

// readLine returns the next line, including a final line without a newline.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err == nil {
		return line, nil
	}
	if errors.Is(err, io.EOF) && line != "" {
		return line, nil
	}
	if errors.Is(err, io.EOF) {
		return "", ErrInputClosed
	}
	return "", fmt.Errorf("%w: %v", ErrInputClosed, err)
}

// report prints the lines for one applied guess.
func report(out io.Writer, res game.Outcome) {
	fmt.Fprintf(out, msgEcho+"\n", res.Guess)
	if res.Hint {
		fmt.Fprintf(out, msgHint+"\n", res.Target)
	}
	if res.State == game.StateLost {
		fmt.Fprintln(out, msgLose)
		return
	}
	switch res.Feedback {
	case game.FeedbackTooSmall:
		fmt.Fprintln(out, msgSmall)
	case game.FeedbackTooBig:
		fmt.Fprintln(out, msgBig)
	case game.FeedbackCorrect:
		fmt.Fprintln(out, msgWin)
	}
}
