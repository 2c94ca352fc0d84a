package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/netchat-server/internal/store"
)

// DefaultStoreTimeout bounds a single store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// MessageStore persists chat messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, netID, authorID int64, content string, sentAt time.Time) (int64, error)
}

// IdentityStore resolves the display identity of message authors.
type IdentityStore interface {
	ResolveIdentity(ctx context.Context, userID int64) (store.Identity, error)
}

// withStoreTimeout runs fn under a deadline and reports an exceeded deadline as ErrStoreTimeout.
func withStoreTimeout(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || (callCtx.Err() != nil && ctx.Err() == nil) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
