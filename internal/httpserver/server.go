// internal/httpserver/server.go
//
// HTTP server wiring for the guess-the-number backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): POST /game/new, POST /game/guess.
//   - Daily Challenge endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine (auth.go).
//   - Database persistence for game history and user stats.
//
// Notes:
//   - Games live in the session store; the DB only keeps a history row
//     (owner, status, attempts), never the target.
//   - Guests are tracked with an anonymous cookie and their history is
//     claimed on signup/login.

package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guess/apps/go-server/internal/config"
	"github.com/robalobadob/guess/apps/go-server/internal/game"
	"github.com/robalobadob/guess/apps/go-server/internal/store"
)

// Server bundles router, game session store, DB handle and config.
type Server struct {
	r     *chi.Mux
	store store.Store
	db    *sql.DB
	cfg   config.Config
	now   func() time.Time

	play sync.Mutex // serializes ApplyGuess; game.Game is not goroutine-safe
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB) *Server {
	s := &Server{r: chi.NewRouter(), store: st, db: db, cfg: cfg, now: time.Now}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)                   // zerolog access log
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"guess-go","endpoints":["/health","POST /game/new","POST /game/guess","/daily/*","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game endpoints — OPTIONAL AUTH (guests can play)
	s.r.With(s.withOptionalAuth()).Post("/game/new", s.handleNewGame)
	s.r.With(s.withOptionalAuth()).Post("/game/guess", s.handleGuess)

	// Daily Challenge — OPTIONAL AUTH
	s.mountDaily(s.r.With(s.withOptionalAuth()))

	// Auth + profile/stats
	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.cfg.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one debug line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("reqId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// writeError sends {"error": code} with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// ------------------------------ GAME ---------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Target *int `json:"target"` // fixed target, ignored in production
}
type newGameRes struct {
	GameID string `json:"gameId"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
}

// handleNewGame creates a new game in the session store and a DB history
// row owned by either the user or the anonymous cookie. A requested target
// is only honored outside production, so players cannot pick their own.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	var src game.RandomSource = game.CryptoSource{}
	if req.Target != nil && !s.cfg.Production() {
		src = game.FixedSource(*req.Target)
	}
	g := game.New(src)
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	now := g.StartedAt.Format(time.RFC3339)
	if me := userFrom(r); me != nil {
		if _, err := s.db.ExecContext(r.Context(),
			`INSERT INTO games (id, user_id, started_at, status, attempts) VALUES (?,?,?,?,0)`,
			g.ID, me.ID, now, string(g.State())); err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("insert user game row")
		}
	} else {
		anon := s.ensureAnonID(w, r)
		if _, err := s.db.ExecContext(r.Context(),
			`INSERT INTO games (id, anonymous_id, started_at, status, attempts) VALUES (?,?,?,?,0)`,
			g.ID, anon, now, string(g.State())); err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("insert anon game row")
		}
	}

	rules := g.Rules()
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: g.ID, Min: rules.Min, Max: rules.Max})
}

// guessReq/Res payloads for POST /game/guess and POST /daily/guess.
type guessReq struct {
	GameID string `json:"gameId"`
	Guess  string `json:"guess"`
}
type guessRes struct {
	Guess    uint32        `json:"guess"`
	Feedback game.Feedback `json:"feedback,omitempty"`
	Hint     *int          `json:"hint,omitempty"`
	State    game.State    `json:"state"`
	Attempts int           `json:"attempts"`
}

func toGuessRes(out game.Outcome) guessRes {
	res := guessRes{Guess: out.Guess, Feedback: out.Feedback, State: out.State, Attempts: out.Attempts}
	if out.Hint {
		t := out.Target
		res.Hint = &t
	}
	return res
}

// applyGuess parses raw and applies it to g, writing the error response
// itself when it fails.
func (s *Server) applyGuess(w http.ResponseWriter, g *game.Game, raw string) (game.Outcome, bool) {
	n, err := game.ParseGuess(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input")
		return game.Outcome{}, false
	}
	s.play.Lock()
	out, err := g.ApplyGuess(n)
	s.play.Unlock()
	if errors.Is(err, game.ErrGameFinished) {
		writeError(w, http.StatusConflict, "game_finished")
		return game.Outcome{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "apply_failed")
		return game.Outcome{}, false
	}
	return out, true
}

// handleGuess applies a guess to a stored game, persists progress,
// and (if finished) updates user stats.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	g, err := s.store.Get(r.Context(), req.GameID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	out, ok := s.applyGuess(w, g, req.Guess)
	if !ok {
		return
	}
	if err := s.store.Save(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	if err := s.recordProgress(r, w, g, out); err != nil {
		log.Warn().Err(err).Str("gameId", g.ID).Msg("record progress")
	}
	_ = json.NewEncoder(w).Encode(toGuessRes(out))
}

// recordProgress updates the history row and, on a finished game, the
// owner's stats. Failures are logged, not surfaced.
func (s *Server) recordProgress(r *http.Request, w http.ResponseWriter, g *game.Game, out game.Outcome) error {
	me := userFrom(r)
	ownerClause := `anonymous_id=?`
	var ownerArg any
	if me != nil {
		ownerClause = `user_id=?`
		ownerArg = me.ID
	} else {
		ownerArg = s.ensureAnonID(w, r)
	}

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE games SET attempts=?, status=? WHERE id=? AND `+ownerClause,
		out.Attempts, string(out.State), g.ID, ownerArg); err != nil {
		return err
	}
	if out.State.Terminal() {
		if _, err := tx.Exec(`UPDATE games SET finished_at=? WHERE id=? AND `+ownerClause,
			s.now().UTC().Format(time.RFC3339), g.ID, ownerArg); err != nil {
			return err
		}
		if me != nil {
			if err := bumpStats(tx, me.ID, out.State == game.StateWon); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
