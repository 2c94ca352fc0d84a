package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/netchat-server/internal/config"
	"github.com/vovakirdan/netchat-server/internal/core"
	"github.com/vovakirdan/netchat-server/internal/proto"
	"github.com/vovakirdan/netchat-server/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestChatMessageReachesEveryMember(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx, "")
	connB := env.dial(t, ctx, "")

	send(t, ctx, connA, map[string]any{
		"user_id": env.alice.ID,
		"net_id":  env.net.ID,
		"message": "hi<div></div>see golang.org",
	})

	for name, conn := range map[string]*websocket.Conn{"sender": connA, "peer": connB} {
		frame := readFrame[proto.ChatFrame](t, ctx, conn)
		if frame.Message != `hi<br>see <a href="http://golang.org">golang.org</a>` {
			t.Fatalf("%s: unexpected message %q", name, frame.Message)
		}
		if frame.Username != "alice" || frame.UserImage != "/media/default.jpg" {
			t.Fatalf("%s: unexpected identity %+v", name, frame)
		}
		if frame.DateSent != "October 18, 2026, 8:05 a.m." {
			t.Fatalf("%s: unexpected date_sent %q", name, frame.DateSent)
		}
		if frame.MessageID <= 0 {
			t.Fatalf("%s: expected persisted message id, got %d", name, frame.MessageID)
		}

		stored, err := env.store.GetMessage(ctx, frame.MessageID)
		if err != nil {
			t.Fatalf("%s: get stored message: %v", name, err)
		}
		if stored.Content != "hi\nsee golang.org" {
			t.Fatalf("%s: unexpected stored content %q", name, stored.Content)
		}
	}
}

func TestSignalsAndImages(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx, "")
	connB := env.dial(t, ctx, "")

	err := env.store.UpdateProfile(ctx, store.Profile{
		UserID:          env.bob.ID,
		ImageURL:        "/media/bob.png",
		TypingIndicator: true,
		OnlineIndicator: true,
	})
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}

	send(t, ctx, connB, map[string]any{"command": "typing", "user_id": env.bob.ID})
	typing := readFrame[proto.TypingFrame](t, ctx, connA)
	if typing.Typing != "True" || typing.UserID != env.bob.ID {
		t.Fatalf("unexpected typing frame: %+v", typing)
	}

	send(t, ctx, connB, map[string]any{"command": "delete", "message_id": "42"})
	del := readFrame[proto.DeleteFrame](t, ctx, connA)
	if del.Delete != "True" || del.MessageID != 42 {
		t.Fatalf("unexpected delete frame: %+v", del)
	}

	send(t, ctx, connB, map[string]any{
		"command":    "image",
		"user_id":    env.bob.ID,
		"message":    "look<br>here",
		"image_url":  "/media/uploads/cat.png",
		"date_sent":  "yesterday",
		"message_id": 7,
	})
	image := readFrame[proto.ImageFrame](t, ctx, connA)
	if image.Message != "look<br>here" || image.ImageURL != "/media/uploads/cat.png" || image.MessageID != 7 {
		t.Fatalf("unexpected image frame: %+v", image)
	}
	if image.DateSent != "yesterday" || image.Username != "bob" || image.UserImage != "/media/bob.png" {
		t.Fatalf("unexpected image enrichment: %+v", image)
	}
}

func TestMalformedFrameKeepsSessionOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "")

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write raw frame: %v", err)
	}
	errFrame := readFrame[proto.ErrorFrame](t, ctx, conn)
	if errFrame.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request for invalid JSON, got %+v", errFrame)
	}

	send(t, ctx, conn, map[string]any{"command": "typing"})
	errFrame = readFrame[proto.ErrorFrame](t, ctx, conn)
	if errFrame.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request for missing user_id, got %+v", errFrame)
	}

	send(t, ctx, conn, map[string]any{"user_id": 999, "net_id": env.net.ID, "message": "ghost"})
	errFrame = readFrame[proto.ErrorFrame](t, ctx, conn)
	if errFrame.Error.Code != core.ErrCodeAuthorNotFound {
		t.Fatalf("expected author_not_found, got %+v", errFrame)
	}

	send(t, ctx, conn, map[string]any{"command": "typing", "user_id": env.alice.ID})
	typing := readFrame[proto.TypingFrame](t, ctx, conn)
	if typing.UserID != env.alice.ID {
		t.Fatalf("session should still deliver after errors, got %+v", typing)
	}
}

func TestClosedConnectionLeavesRoom(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dial(t, ctx, "")
	connB := env.dial(t, ctx, "")

	if err := connB.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close B: %v", err)
	}
	waitForMembers(t, env.hub, env.room(), 1)

	send(t, ctx, connA, map[string]any{"command": "typing", "user_id": env.alice.ID})
	if frame := readFrame[proto.TypingFrame](t, ctx, connA); frame.UserID != env.alice.ID {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	if err := connA.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close A: %v", err)
	}
	waitForMembers(t, env.hub, env.room(), 0)
	if env.hub.Rooms() != 0 {
		t.Fatalf("expected empty room to be dropped, got %d rooms", env.hub.Rooms())
	}
}

func TestRateLimitedFrames(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimitPerMinute = 1
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "")
	chat := map[string]any{"user_id": env.alice.ID, "net_id": env.net.ID, "message": "hello"}

	send(t, ctx, conn, chat)
	readFrame[proto.ChatFrame](t, ctx, conn)

	send(t, ctx, conn, chat)
	errFrame := readFrame[proto.ErrorFrame](t, ctx, conn)
	if errFrame.Error.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", errFrame)
	}

	// Signals are not messages and pass the spent limiter.
	send(t, ctx, conn, map[string]any{"command": "typing", "user_id": env.alice.ID})
	if frame := readFrame[proto.TypingFrame](t, ctx, conn); frame.UserID != env.alice.ID {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestTypingBurstDoesNotStarveChat(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.ErrorFrames = false
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "")

	limit := config.Default().RateLimitPerMinute
	for i := 0; i < limit; i++ {
		send(t, ctx, conn, map[string]any{"command": "typing", "user_id": env.alice.ID})
		readFrame[proto.TypingFrame](t, ctx, conn)
	}

	send(t, ctx, conn, map[string]any{"user_id": env.alice.ID, "net_id": env.net.ID, "message": "still here"})
	frame := readFrame[map[string]json.RawMessage](t, ctx, conn)
	if _, ok := frame["username"]; !ok {
		t.Fatalf("expected chat frame after %d typing frames, got %v", limit, frame)
	}
	var message string
	if err := json.Unmarshal(frame["message"], &message); err != nil || message != "still here" {
		t.Fatalf("unexpected chat message %s (%v)", frame["message"], err)
	}
}

func TestUpgradeJoinsRoom(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, env.wsURL(""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	waitForMembers(t, env.hub, env.room(), 1)
	if got := env.hub.Members(env.room()); got != 1 {
		t.Fatalf("expected 1 member after upgrade, got %d", got)
	}
}

func TestChatDateSentUsesDeliveryClock(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, "")
	env.setNow(time.Date(2026, time.October, 18, 13, 5, 0, 0, time.UTC))

	send(t, ctx, conn, map[string]any{"user_id": env.alice.ID, "net_id": env.net.ID, "message": "lunch?"})
	frame := readFrame[proto.ChatFrame](t, ctx, conn)
	if frame.DateSent != "October 18, 2026, 13:05 p.m." {
		t.Fatalf("unexpected date_sent %q", frame.DateSent)
	}
}

func TestTypingHiddenWhenProfileDisablesIt(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session, err := env.auth.Register(ctx, "carol", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	carol := session.User.ID
	err = env.store.UpdateProfile(ctx, store.Profile{UserID: carol, TypingIndicator: false, OnlineIndicator: true})
	if err != nil {
		t.Fatalf("disable typing indicator: %v", err)
	}

	watcher := env.dial(t, ctx, "")
	conn := env.dial(t, ctx, "token="+session.Token)

	send(t, ctx, conn, map[string]any{"command": "typing", "user_id": carol})
	send(t, ctx, conn, map[string]any{"user_id": carol, "net_id": env.net.ID, "message": "quiet"})

	frame := readFrame[map[string]json.RawMessage](t, ctx, watcher)
	if _, ok := frame["typing"]; ok {
		t.Fatalf("typing should be hidden for carol, got %v", frame)
	}
	if _, ok := frame["username"]; !ok {
		t.Fatalf("expected carol's chat frame, got %v", frame)
	}
}

func TestWebSocketRequiresValidToken(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RequireWSToken = true
		cfg.VerifyUserID = true
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, env.wsURL(""), nil)
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", resp)
	}

	_, resp, err = websocket.Dial(ctx, env.wsURL("token=garbage"), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %v (%v)", resp, err)
	}

	session, err := env.auth.Register(ctx, "carol", "password123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token := session.Token
	claims, err := env.auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	conn := env.dial(t, ctx, "token="+token)

	send(t, ctx, conn, map[string]any{"command": "typing", "user_id": env.bob.ID})
	errFrame := readFrame[proto.ErrorFrame](t, ctx, conn)
	if errFrame.Error.Code != core.ErrCodeForbidden {
		t.Fatalf("expected forbidden for foreign user_id, got %+v", errFrame)
	}

	send(t, ctx, conn, map[string]any{"command": "typing", "user_id": claims.UserID})
	if frame := readFrame[proto.TypingFrame](t, ctx, conn); frame.UserID != claims.UserID {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestBlankNetIDRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/ws/nets/%20")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank net id, got %d", resp.StatusCode)
	}
}
