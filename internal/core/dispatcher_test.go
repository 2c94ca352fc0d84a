package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/netchat-server/internal/store"
)

func newTestDispatcher(t *testing.T, st *fakeStore, cfg DispatcherConfig) (*Dispatcher, *Hub) {
	t.Helper()
	hub := NewHub(nil)
	return NewDispatcher(st, hub, cfg, nil), hub
}

func TestDispatchChatPersistsThenBroadcastsToRoom(t *testing.T) {
	st := newFakeStore()
	d, hub := newTestDispatcher(t, st, DispatcherConfig{})

	alice := NewClient("a", "5", 0, 0)
	bob := NewClient("b", "5", 0, 0)
	hub.Join(alice)
	hub.Join(bob)

	err := d.Dispatch(context.Background(), alice, Command{
		Kind:   CommandChat,
		UserID: 1,
		NetID:  5,
		Text:   "hi<div></div>see golang.org",
	})
	if err != nil {
		t.Fatalf("dispatch chat: %v", err)
	}

	if len(st.appends) != 1 {
		t.Fatalf("expected 1 append, got %d", len(st.appends))
	}
	call := st.appends[0]
	if call.netID != 5 || call.authorID != 1 || call.content != "hi\nsee golang.org" {
		t.Fatalf("unexpected append call: %+v", call)
	}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventChatMessage)
		if ev.MessageID != 1 || ev.UserID != 1 || ev.Room != "5" {
			t.Fatalf("unexpected chat event: %+v", ev)
		}
		want := `hi<br>see <a href="http://golang.org">golang.org</a>`
		if ev.Message != want {
			t.Fatalf("expected message %q, got %q", want, ev.Message)
		}
	}
}

func TestDispatchTypingAndDeleteNeverTouchStore(t *testing.T) {
	st := newFakeStore()
	d, hub := newTestDispatcher(t, st, DispatcherConfig{})

	alice := NewClient("a", "general", 0, 0)
	hub.Join(alice)
	ctx := context.Background()

	if err := d.Dispatch(ctx, alice, Command{Kind: CommandTyping, UserID: 1}); err != nil {
		t.Fatalf("dispatch typing: %v", err)
	}
	if err := d.Dispatch(ctx, alice, Command{Kind: CommandDelete, MessageID: 42}); err != nil {
		t.Fatalf("dispatch delete: %v", err)
	}

	if ev := mustEvent(t, alice.Events, EventTyping); ev.UserID != 1 {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	if ev := mustEvent(t, alice.Events, EventDelete); ev.MessageID != 42 {
		t.Fatalf("unexpected delete event: %+v", ev)
	}

	if appends, lookups := st.calls(); appends != 0 || lookups != 0 {
		t.Fatalf("expected no store calls, got %d appends and %d lookups", appends, lookups)
	}
}

func TestDispatchTypingRespectsSenderPreference(t *testing.T) {
	st := newFakeStore()
	d, hub := newTestDispatcher(t, st, DispatcherConfig{})

	quiet := NewClient("q", "general", 1, 0)
	quiet.SuppressTyping = true
	peer := NewClient("p", "general", 0, 0)
	hub.Join(quiet)
	hub.Join(peer)
	ctx := context.Background()

	if err := d.Dispatch(ctx, quiet, Command{Kind: CommandTyping, UserID: 1}); err != nil {
		t.Fatalf("dispatch typing: %v", err)
	}
	mustNoEvent(t, peer.Events, 50*time.Millisecond)

	if err := d.Dispatch(ctx, quiet, Command{Kind: CommandDelete, MessageID: 3}); err != nil {
		t.Fatalf("dispatch delete: %v", err)
	}
	if ev := mustEvent(t, peer.Events, EventDelete); ev.MessageID != 3 {
		t.Fatalf("unexpected delete event: %+v", ev)
	}
}

func TestCommandKindIsMessage(t *testing.T) {
	for kind, want := range map[CommandKind]bool{
		CommandChat:   true,
		CommandImage:  true,
		CommandTyping: false,
		CommandDelete: false,
	} {
		if got := kind.IsMessage(); got != want {
			t.Fatalf("%s: IsMessage() = %v, want %v", kind, got, want)
		}
	}
}

func TestDispatchImageNormalizesCaptionWithoutPersisting(t *testing.T) {
	st := newFakeStore()
	d, hub := newTestDispatcher(t, st, DispatcherConfig{})

	alice := NewClient("a", "general", 0, 0)
	hub.Join(alice)

	err := d.Dispatch(context.Background(), alice, Command{
		Kind:      CommandImage,
		UserID:    2,
		MessageID: 9,
		Text:      "look<br>here & there",
		ImageURL:  "/media/cat.png",
		DateSent:  "October 1, 2026, 9:00 a.m.",
	})
	if err != nil {
		t.Fatalf("dispatch image: %v", err)
	}

	ev := mustEvent(t, alice.Events, EventImageMessage)
	if ev.Message != "look<br>here &amp; there" {
		t.Fatalf("unexpected caption: %q", ev.Message)
	}
	if ev.ImageURL != "/media/cat.png" || ev.DateSent != "October 1, 2026, 9:00 a.m." || ev.MessageID != 9 || ev.UserID != 2 {
		t.Fatalf("unexpected image event: %+v", ev)
	}
	if appends, _ := st.calls(); appends != 0 {
		t.Fatalf("expected no appends for image, got %d", appends)
	}
}

func TestDispatchChatStoreFailureSkipsBroadcast(t *testing.T) {
	st := newFakeStore()
	st.appendErr = store.ErrNetNotFound
	d, hub := newTestDispatcher(t, st, DispatcherConfig{})

	alice := NewClient("a", "general", 0, 0)
	hub.Join(alice)

	err := d.Dispatch(context.Background(), alice, Command{Kind: CommandChat, UserID: 1, NetID: 404, Text: "hi"})
	if !errors.Is(err, store.ErrNetNotFound) {
		t.Fatalf("expected ErrNetNotFound, got %v", err)
	}
	if code := ErrorCode(err); code != ErrCodeRoomNotFound {
		t.Fatalf("expected code %s, got %s", ErrCodeRoomNotFound, code)
	}
	mustNoEvent(t, alice.Events, 50*time.Millisecond)
}

func TestDispatchChatTimesOut(t *testing.T) {
	st := newFakeStore()
	st.block = make(chan struct{})
	defer close(st.block)

	d, hub := newTestDispatcher(t, st, DispatcherConfig{StoreTimeout: 20 * time.Millisecond})
	alice := NewClient("a", "general", 0, 0)
	hub.Join(alice)

	err := d.Dispatch(context.Background(), alice, Command{Kind: CommandChat, UserID: 1, NetID: 1, Text: "hi"})
	if !errors.Is(err, ErrStoreTimeout) {
		t.Fatalf("expected ErrStoreTimeout, got %v", err)
	}
	mustNoEvent(t, alice.Events, 50*time.Millisecond)
}

func TestDispatchVerifiesUserID(t *testing.T) {
	st := newFakeStore()
	d, hub := newTestDispatcher(t, st, DispatcherConfig{VerifyUserID: true})

	alice := NewClient("a", "general", 1, 0)
	hub.Join(alice)
	ctx := context.Background()

	err := d.Dispatch(ctx, alice, Command{Kind: CommandTyping, UserID: 2})
	if !errors.Is(err, ErrUserMismatch) {
		t.Fatalf("expected ErrUserMismatch, got %v", err)
	}
	mustNoEvent(t, alice.Events, 50*time.Millisecond)

	if err := d.Dispatch(ctx, alice, Command{Kind: CommandTyping, UserID: 1}); err != nil {
		t.Fatalf("dispatch own typing: %v", err)
	}
	mustEvent(t, alice.Events, EventTyping)

	anonymous := NewClient("x", "general", 0, 0)
	if err := d.Dispatch(ctx, anonymous, Command{Kind: CommandTyping, UserID: 2}); err != nil {
		t.Fatalf("anonymous connections are not verified: %v", err)
	}
}

type failingRouter struct{}

func (failingRouter) Broadcast(context.Context, string, *Event) error {
	return errors.New("publish failed")
}

func TestDispatchChatKeepsMessageWhenBroadcastFails(t *testing.T) {
	st := newFakeStore()
	d := NewDispatcher(st, failingRouter{}, DispatcherConfig{}, nil)

	err := d.Dispatch(context.Background(), NewClient("a", "general", 0, 0), Command{Kind: CommandChat, UserID: 1, NetID: 1, Text: "hi"})
	if err == nil {
		t.Fatalf("expected broadcast error")
	}
	if appends, _ := st.calls(); appends != 1 {
		t.Fatalf("expected the message to stay persisted, got %d appends", appends)
	}
}
