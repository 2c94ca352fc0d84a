package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/netchat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(wait):
	}
}

type appendCall struct {
	netID    int64
	authorID int64
	content  string
}

// fakeStore records store calls and serves canned identities.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	appends    []appendCall
	lookups    int
	identities map[int64]store.Identity
	appendErr  error
	block      chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities: map[int64]store.Identity{
			1: {Username: "alice", ImageURL: "/media/alice.png"},
			2: {Username: "bob"},
		},
	}
}

func (f *fakeStore) AppendMessage(ctx context.Context, netID, authorID int64, content string, _ time.Time) (int64, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.appends = append(f.appends, appendCall{netID: netID, authorID: authorID, content: content})
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeStore) ResolveIdentity(_ context.Context, userID int64) (store.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lookups++
	identity, ok := f.identities[userID]
	if !ok {
		return store.Identity{}, store.ErrUserNotFound
	}
	return identity, nil
}

func (f *fakeStore) calls() (appends, lookups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends), f.lookups
}
