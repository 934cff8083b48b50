package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/guess/apps/go-server/assets"
	"github.com/robalobadob/guess/apps/go-server/internal/config"
	"github.com/robalobadob/guess/apps/go-server/internal/daily"
	"github.com/robalobadob/guess/apps/go-server/internal/database"
	"github.com/robalobadob/guess/apps/go-server/internal/game"
	"github.com/robalobadob/guess/apps/go-server/internal/store"
)

var testNow = time.Now().UTC()

func testConfig() config.Config {
	return config.Config{
		Port:           "0",
		ClientOrigin:   "http://localhost:5173",
		Environment:    "test",
		JWTSecret:      "test_secret",
		JWTExpiresDays: 1,
		CookieName:     "guess_token",
		DailySalt:      "test_salt",
	}
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T) (*Server, *client) {
	t.Helper()
	return newTestServerWith(t, testConfig(), func() time.Time { return testNow })
}

func newTestServerWith(t *testing.T, cfg config.Config, now func() time.Time) (*Server, *client) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := New(cfg, store.NewMemoryStore(), db)
	s.now = now
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, newClient(t, ts.URL)
}

func newClient(t *testing.T, base string) *client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{t: t, base: base, http: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes the JSON response into out (if non-nil).
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) newGame(target int) string {
	c.t.Helper()
	var res newGameRes
	if code := c.do(http.MethodPost, "/game/new", map[string]int{"target": target}, &res); code != http.StatusOK {
		c.t.Fatalf("new game: status %d", code)
	}
	if res.GameID == "" || res.Min != 1 || res.Max != 100 {
		c.t.Fatalf("new game: %+v", res)
	}
	return res.GameID
}

func (c *client) guess(id, raw string) (guessRes, int) {
	c.t.Helper()
	var res guessRes
	code := c.do(http.MethodPost, "/game/guess", guessReq{GameID: id, Guess: raw}, &res)
	return res, code
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t)
	var body map[string]bool
	if code := c.do(http.MethodGet, "/health", nil, &body); code != http.StatusOK || !body["ok"] {
		t.Fatalf("health: %d %v", code, body)
	}
}

func TestGameScenarioOverHTTP(t *testing.T) {
	_, c := newTestServer(t)
	id := c.newGame(42)

	steps := []struct {
		guess    string
		feedback game.Feedback
		state    game.State
		attempts int
	}{
		{"50", game.FeedbackTooBig, game.StateAwaitingInput, 1},
		{"30", game.FeedbackTooSmall, game.StateAwaitingInput, 2},
		{" 42 ", game.FeedbackCorrect, game.StateWon, 2},
	}
	for _, st := range steps {
		res, code := c.guess(id, st.guess)
		if code != http.StatusOK {
			t.Fatalf("guess %q: status %d", st.guess, code)
		}
		if res.Feedback != st.feedback || res.State != st.state || res.Attempts != st.attempts {
			t.Fatalf("guess %q: got %+v", st.guess, res)
		}
	}

	if _, code := c.guess(id, "42"); code != http.StatusConflict {
		t.Fatalf("guess after win: status %d, want 409", code)
	}
}

func TestInvalidGuessDoesNotCount(t *testing.T) {
	_, c := newTestServer(t)
	id := c.newGame(10)

	for _, raw := range []string{"ten", "", "-5", "1.5"} {
		if _, code := c.guess(id, raw); code != http.StatusBadRequest {
			t.Fatalf("guess %q: status %d, want 400", raw, code)
		}
	}
	res, code := c.guess(id, "3")
	if code != http.StatusOK || res.Attempts != 1 {
		t.Fatalf("first valid guess: %d %+v, want attempts 1", code, res)
	}
}

func TestHintAndLossOverHTTP(t *testing.T) {
	_, c := newTestServer(t)
	id := c.newGame(7)

	for i := 1; i <= 11; i++ {
		res, code := c.guess(id, "99")
		if code != http.StatusOK {
			t.Fatalf("guess %d: status %d", i, code)
		}
		if (res.Hint != nil) != (i == 6) {
			t.Fatalf("guess %d: hint = %v", i, res.Hint)
		}
		if i == 6 && *res.Hint != 7 {
			t.Fatalf("hint = %d, want 7", *res.Hint)
		}
		if res.State != game.StateAwaitingInput {
			t.Fatalf("guess %d: state %q", i, res.State)
		}
	}
	res, _ := c.guess(id, "7")
	if res.State != game.StateLost || res.Feedback != game.FeedbackNone || res.Attempts != 11 {
		t.Fatalf("12th guess: %+v, want loss", res)
	}
}

func TestUnknownGame(t *testing.T) {
	_, c := newTestServer(t)
	if _, code := c.guess("missing", "5"); code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", code)
	}
}

func TestAuthFlowAndStats(t *testing.T) {
	_, c := newTestServer(t)

	// Guest game before signup is claimed afterwards.
	guestGame := c.newGame(5)
	if res, _ := c.guess(guestGame, "5"); res.State != game.StateWon {
		t.Fatalf("guest game: %+v", res)
	}

	creds := credentials{Username: "player_one", Password: "hunter22!"}
	if code := c.do(http.MethodPost, "/auth/signup", creds, nil); code != http.StatusOK {
		t.Fatalf("signup: status %d", code)
	}
	if code := c.do(http.MethodPost, "/auth/signup", creds, nil); code != http.StatusConflict {
		t.Fatalf("duplicate signup: status %d, want 409", code)
	}

	var me authUser
	if code := c.do(http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK || me.Username != "player_one" {
		t.Fatalf("me: %d %+v", code, me)
	}

	// Signed-in loss, then win.
	lost := c.newGame(50)
	for i := 0; i < 12; i++ {
		c.guess(lost, "1")
	}
	won := c.newGame(60)
	c.guess(won, "60")

	var stats map[string]any
	if code := c.do(http.MethodGet, "/stats/me", nil, &stats); code != http.StatusOK {
		t.Fatalf("stats: status %d", code)
	}
	if stats["gamesPlayed"].(float64) != 2 || stats["wins"].(float64) != 1 || stats["streak"].(float64) != 1 {
		t.Fatalf("stats = %v", stats)
	}

	var games []gameRow
	if code := c.do(http.MethodGet, "/games/mine", nil, &games); code != http.StatusOK {
		t.Fatalf("games: status %d", code)
	}
	if len(games) != 3 {
		t.Fatalf("games = %+v, want 3 (one claimed)", games)
	}
	byID := map[string]gameRow{}
	for _, g := range games {
		byID[g.ID] = g
	}
	if g := byID[lost]; g.Status != "lost" || g.Attempts != 11 || g.FinishedAt == "" {
		t.Fatalf("lost game row = %+v", g)
	}
	if g := byID[guestGame]; g.Status != "won" {
		t.Fatalf("claimed guest row = %+v", g)
	}

	if code := c.do(http.MethodPost, "/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatalf("logout: status %d", code)
	}
	if code := c.do(http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d, want 401", code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, c := newTestServer(t)
	if code := c.do(http.MethodPost, "/auth/signup", credentials{Username: "alice", Password: "correct-horse"}, nil); code != http.StatusOK {
		t.Fatalf("signup: status %d", code)
	}

	other := newClient(t, c.base)
	if code := other.do(http.MethodPost, "/auth/login", credentials{Username: "alice", Password: "wrong-horse"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", code)
	}
	if code := other.do(http.MethodPost, "/auth/login", credentials{Username: " ALICE ", Password: "correct-horse"}, nil); code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}
}

func TestSignupValidation(t *testing.T) {
	_, c := newTestServer(t)
	bad := []credentials{
		{Username: "ab", Password: "longenough"},
		{Username: "bad name", Password: "longenough"},
		{Username: "gooduser", Password: "short"},
	}
	for _, cr := range bad {
		if code := c.do(http.MethodPost, "/auth/signup", cr, nil); code != http.StatusBadRequest {
			t.Fatalf("signup %+v: status %d, want 400", cr, code)
		}
	}
}

func TestRequireAuthRejectsGarbageToken(t *testing.T) {
	_, c := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, c.base+"/stats/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}

func TestDailyChallenge(t *testing.T) {
	s, c := newTestServer(t)
	target := daily.Source{Salt: s.cfg.DailySalt, Date: testNow}.NextInRange(1, 100)

	var start newRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &start); code != http.StatusOK || start.GameID == "" {
		t.Fatalf("daily new: %d %+v", code, start)
	}
	if start.Date != daily.DateKey(testNow) || start.Played {
		t.Fatalf("daily new: %+v", start)
	}

	var again newRes
	c.do(http.MethodPost, "/daily/new", nil, &again)
	if again.GameID != start.GameID {
		t.Fatalf("session not reused: %s vs %s", again.GameID, start.GameID)
	}

	wrong := "1"
	if target == 1 {
		wrong = "2"
	}
	var res dailyGuessRes
	if code := c.do(http.MethodPost, "/daily/guess", guessReq{GameID: start.GameID, Guess: wrong}, &res); code != http.StatusOK {
		t.Fatalf("daily guess: status %d", code)
	}
	if res.State != game.StateAwaitingInput || res.Attempts != 1 {
		t.Fatalf("daily miss: %+v", res)
	}
	c.do(http.MethodPost, "/daily/guess", guessReq{GameID: start.GameID, Guess: strconv.Itoa(target)}, &res)
	if res.State != game.StateWon {
		t.Fatalf("daily win: %+v", res)
	}

	var after newRes
	c.do(http.MethodPost, "/daily/new", nil, &after)
	if !after.Played || after.GameID != "" {
		t.Fatalf("replay allowed: %+v", after)
	}

	var lb lbRes
	if code := c.do(http.MethodGet, "/daily/leaderboard", nil, &lb); code != http.StatusOK {
		t.Fatalf("leaderboard: status %d", code)
	}
	if lb.Date != daily.DateKey(testNow) || len(lb.Top) != 1 || lb.Top[0].Attempts != 1 {
		t.Fatalf("leaderboard = %+v", lb)
	}
	if code := c.do(http.MethodGet, "/daily/leaderboard?date=yesterday", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad date: status %d, want 400", code)
	}
}

func TestDailyGuessWithoutSession(t *testing.T) {
	_, c := newTestServer(t)
	if code := c.do(http.MethodPost, "/daily/guess", guessReq{GameID: "x", Guess: "5"}, nil); code != http.StatusConflict {
		t.Fatalf("status %d, want 409", code)
	}
}

// testClock is a settable clock shared between the test and the handlers.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func TestDailyGameSurvivesMidnight(t *testing.T) {
	// Next UTC midnight, so cookies and tokens stay valid for the real jar.
	midnight := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	before := midnight.Add(-10 * time.Second)
	after := midnight.Add(10 * time.Second)

	clock := &testClock{t: before}
	s, c := newTestServerWith(t, testConfig(), clock.Now)
	target := daily.Source{Salt: s.cfg.DailySalt, Date: before}.NextInRange(1, 100)

	var start newRes
	if code := c.do(http.MethodPost, "/daily/new", nil, &start); code != http.StatusOK || start.GameID == "" {
		t.Fatalf("daily new: %d %+v", code, start)
	}

	clock.Set(after)
	var res dailyGuessRes
	code := c.do(http.MethodPost, "/daily/guess", guessReq{GameID: start.GameID, Guess: strconv.Itoa(target)}, &res)
	if code != http.StatusOK {
		t.Fatalf("guess after midnight: status %d, want 200", code)
	}
	if res.State != game.StateWon || res.Date != daily.DateKey(before) {
		t.Fatalf("guess after midnight: %+v", res)
	}

	var lb lbRes
	c.do(http.MethodGet, "/daily/leaderboard?date="+daily.DateKey(before), nil, &lb)
	if len(lb.Top) != 1 {
		t.Fatalf("leaderboard for %s = %+v, want one winner", daily.DateKey(before), lb)
	}

	// The new day starts a fresh game.
	var next newRes
	c.do(http.MethodPost, "/daily/new", nil, &next)
	if next.Played || next.GameID == "" || next.GameID == start.GameID || next.Date != daily.DateKey(after) {
		t.Fatalf("daily new after midnight: %+v", next)
	}
}

func TestDailyNewDropsStaleSessions(t *testing.T) {
	midnight := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	clock := &testClock{t: midnight.Add(-time.Minute)}
	_, c := newTestServerWith(t, testConfig(), clock.Now)

	var stale newRes
	c.do(http.MethodPost, "/daily/new", nil, &stale)

	clock.Set(midnight.Add(time.Minute))
	c.do(http.MethodPost, "/daily/new", nil, nil)

	code := c.do(http.MethodPost, "/daily/guess", guessReq{GameID: stale.GameID, Guess: "50"}, nil)
	if code != http.StatusConflict {
		t.Fatalf("stale session guess: status %d, want 409", code)
	}
}

func TestDailyGuessRejectsOtherPlayersSession(t *testing.T) {
	_, c := newTestServer(t)
	var start newRes
	c.do(http.MethodPost, "/daily/new", nil, &start)

	other := newClient(t, c.base)
	if code := other.do(http.MethodPost, "/daily/guess", guessReq{GameID: start.GameID, Guess: "50"}, nil); code != http.StatusConflict {
		t.Fatalf("foreign session guess: status %d, want 409", code)
	}
}

func TestProductionIgnoresRequestedTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	s, c := newTestServerWith(t, cfg, func() time.Time { return testNow })

	fixed := 0
	for i := 0; i < 20; i++ {
		var res newGameRes
		if code := c.do(http.MethodPost, "/game/new", map[string]int{"target": 42}, &res); code != http.StatusOK {
			t.Fatalf("new game: status %d", code)
		}
		g, err := s.store.Get(context.Background(), res.GameID)
		if err != nil {
			t.Fatalf("get %s: %v", res.GameID, err)
		}
		if g.Target() == 42 {
			fixed++
		}
	}
	if fixed == 20 {
		t.Fatal("requested target honored in production")
	}
}
