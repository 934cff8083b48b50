// main.go
//
// Entry point.
//   - `go-server` / `go-server play`: interactive guess-the-number on stdin/stdout.
//   - `go-server serve`: HTTP game server backed by SQLite.
//
// Logs go to stderr so they never interleave with the game's stdout.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/robalobadob/guess/apps/go-server/assets"
	"github.com/robalobadob/guess/apps/go-server/internal/config"
	"github.com/robalobadob/guess/apps/go-server/internal/console"
	"github.com/robalobadob/guess/apps/go-server/internal/database"
	"github.com/robalobadob/guess/apps/go-server/internal/game"
	"github.com/robalobadob/guess/apps/go-server/internal/httpserver"
	"github.com/robalobadob/guess/apps/go-server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg.LogLevel)

	mode := "play"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	switch mode {
	case "play":
		os.Exit(play())
	case "serve":
		serve(cfg)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [play|serve]\n", os.Args[0])
		os.Exit(2)
	}
}

// setupLogging installs a human-readable writer on terminals, JSON otherwise.
func setupLogging(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// play runs one interactive game and returns the process exit code.
func play() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g := game.New(game.CryptoSource{})
	st, err := console.Play(ctx, g, os.Stdin, os.Stdout)
	switch {
	case errors.Is(err, console.ErrInputClosed):
		log.Error().Err(err).Int("attempts", g.Attempts()).Msg("game aborted")
		return 1
	case err != nil:
		log.Error().Err(err).Msg("game failed")
		return 1
	}
	log.Info().Str("state", string(st)).Int("attempts", g.Attempts()).Msg("game finished")
	return 0
}

func serve(cfg config.Config) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	srv := httpserver.New(cfg, store.NewMemoryStore(), db)
	log.Info().Str("port", cfg.Port).Msg("starting go-server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
