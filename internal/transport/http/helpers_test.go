package http

import (
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/netchat-server/internal/auth"
	"github.com/vovakirdan/netchat-server/internal/config"
	"github.com/vovakirdan/netchat-server/internal/core"
	"github.com/vovakirdan/netchat-server/internal/store"
	"github.com/vovakirdan/netchat-server/internal/store/sqlite"
)

var deliveryTime = time.Date(2026, time.October, 18, 8, 5, 0, 0, time.UTC)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	auth  *auth.Service
	net   *store.Net
	alice *store.User
	bob   *store.User
	now   *atomic.Pointer[time.Time]
}

// setNow moves the presenter clock used for date_sent.
func (e *testEnv) setNow(at time.Time) {
	e.now.Store(&at)
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	net, err := st.CreateNet(ctx, "general", nil)
	if err != nil {
		t.Fatalf("create net: %v", err)
	}

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.ErrorFrames = true
	if mutate != nil {
		mutate(&cfg)
	}

	now := &atomic.Pointer[time.Time]{}
	start := deliveryTime
	now.Store(&start)

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, bcrypt.MinCost)
	hub := core.NewHub(&logger)
	deps := Deps{
		Hub: hub,
		Dispatcher: core.NewDispatcher(st, hub, core.DispatcherConfig{
			StoreTimeout: time.Second,
			VerifyUserID: cfg.VerifyUserID,
		}, &logger),
		Presenter: core.NewPresenter(st, core.PresenterConfig{
			StoreTimeout:  time.Second,
			DefaultAvatar: cfg.DefaultAvatar,
			Location:      time.UTC,
			Clock:         func() time.Time { return *now.Load() },
		}),
		Store: st,
		Auth:  authService,
	}

	server := NewServer(deps, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:    ts,
		hub:   hub,
		store: st,
		auth:  authService,
		net:   net,
		alice: alice,
		bob:   bob,
		now:   now,
	}
}

func (e *testEnv) room() string {
	return strconv.FormatInt(e.net.ID, 10)
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws/nets/" + e.room()
	if query != "" {
		u += "?" + query
	}
	return u
}

// dial connects to the test net and waits until the hub has registered the
// connection, so later broadcasts reach it.
func (e *testEnv) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()

	before := e.hub.Members(e.room())
	conn, _, err := websocket.Dial(ctx, e.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	waitForMembers(t, e.hub, e.room(), before+1)
	return conn
}

func waitForMembers(t *testing.T, hub *core.Hub, room string, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Members(room) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d members in %s, got %d", want, room, hub.Members(room))
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, frame any) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame[T any](t *testing.T, ctx context.Context, conn *websocket.Conn) T {
	t.Helper()

	var frame T
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}
