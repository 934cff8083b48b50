// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start a daily game (creates or reuses session)
//   - POST /daily/guess       → submit a guess for today's daily game
//   - GET  /daily/leaderboard → winners for today (or ?date=YYYY-MM-DD)
//
// Everyone gets the same target on a given UTC date (daily.Source).
// Each player can finish once per day: sessions are held in memory during
// play, and the result (won or lost) is persisted when the game ends.
// A session keeps the date it was started on, so a game begun before UTC
// midnight can still be finished (and is recorded) under that date.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guess/apps/go-server/internal/daily"
	"github.com/robalobadob/guess/apps/go-server/internal/game"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	sessions map[string]*dailySession // keyed by game ID
	mu       sync.Mutex               // guards sessions
}

// dailySession holds the in-memory state of an in-progress daily game.
type dailySession struct {
	Game   *game.Game
	UserID string
	Date   string
	Start  time.Time
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		sessions: make(map[string]*dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/guess", dd.handleGuess)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// userID returns the authenticated user ID, or the anonymous cookie ID.
func (d *dailyServer) userID(w http.ResponseWriter, r *http.Request) string {
	if me := userFrom(r); me != nil {
		return me.ID
	}
	return d.srv.ensureAnonID(w, r)
}

// newRes is returned by /daily/new.
type newRes struct {
	GameID string `json:"gameId"`
	Date   string `json:"date"`
	Played bool   `json:"played"`
}

// handleNew creates or reuses today's session.
//   - Already finished today (DB row) → Played=true, no game.
//   - Otherwise create or reuse an in-memory session.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	uid := d.userID(w, r)
	now := d.srv.now().UTC()
	date := daily.DateKey(now)

	played, err := d.store.AlreadyPlayed(r.Context(), uid, date)
	if err != nil {
		log.Error().Err(err).Msg("daily already played")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if played {
		_ = json.NewEncoder(w).Encode(newRes{Date: date, Played: true})
		return
	}

	d.mu.Lock()
	var sess *dailySession
	for id, ds := range d.sessions {
		switch {
		case ds.Date < date:
			delete(d.sessions, id)
		case ds.UserID == uid && ds.Date == date:
			sess = ds
		}
	}
	if sess == nil {
		sess = &dailySession{
			Game:   game.New(daily.Source{Salt: d.srv.cfg.DailySalt, Date: now}),
			UserID: uid,
			Date:   date,
			Start:  now,
		}
		d.sessions[sess.Game.ID] = sess
	}
	d.mu.Unlock()

	_ = json.NewEncoder(w).Encode(newRes{GameID: sess.Game.ID, Date: date})
}

// dailyGuessRes adds the date to the regular guess response.
type dailyGuessRes struct {
	guessRes
	Date string `json:"date"`
}

// handleGuess applies a guess to the caller's session and persists the
// result under the session's date once the game is won or lost.
func (d *dailyServer) handleGuess(w http.ResponseWriter, r *http.Request) {
	uid := d.userID(w, r)

	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	d.mu.Lock()
	sess, ok := d.sessions[req.GameID]
	d.mu.Unlock()
	if !ok || sess.UserID != uid {
		writeError(w, http.StatusConflict, "no_session")
		return
	}

	out, ok := d.srv.applyGuess(w, sess.Game, req.Guess)
	if !ok {
		return
	}

	if out.State.Terminal() {
		res := daily.Result{
			UserID:    uid,
			Date:      sess.Date,
			Target:    sess.Game.Target(),
			Status:    string(out.State),
			Attempts:  out.Attempts,
			ElapsedMs: int(d.srv.now().Sub(sess.Start).Milliseconds()),
		}
		if err := d.store.InsertResult(r.Context(), res); err != nil {
			log.Warn().Err(err).Str("user", uid).Msg("insert daily result")
		}
		d.mu.Lock()
		delete(d.sessions, sess.Game.ID)
		d.mu.Unlock()
	}
	_ = json.NewEncoder(w).Encode(dailyGuessRes{guessRes: toGuessRes(out), Date: sess.Date})
}

// lbRes is returned by /daily/leaderboard.
type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

// handleLeaderboard returns the leaderboard for the given date (default today).
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(d.srv.now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "bad_date")
		return
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_ = json.NewEncoder(w).Encode(lbRes{Date: date, Top: rows})
}
