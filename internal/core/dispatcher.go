package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DispatcherConfig tunes command handling.
type DispatcherConfig struct {
	// StoreTimeout bounds each persistence call.
	StoreTimeout time.Duration
	// VerifyUserID rejects frames whose user_id differs from the connection's
	// authenticated user. Anonymous connections are never checked.
	VerifyUserID bool
	// Clock stamps persisted messages. Defaults to time.Now.
	Clock func() time.Time
}

// Dispatcher turns client commands into side effects and room broadcasts.
type Dispatcher struct {
	messages MessageStore
	router   Router
	cfg      DispatcherConfig
	log      *zerolog.Logger
}

// NewDispatcher wires a dispatcher to its store and router.
func NewDispatcher(messages MessageStore, router Router, cfg DispatcherConfig, logger *zerolog.Logger) *Dispatcher {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		messages: messages,
		router:   router,
		cfg:      cfg,
		log:      logger,
	}
}

// Dispatch executes cmd on behalf of client. Errors concern this command only;
// nothing is broadcast when an error is returned before routing.
func (d *Dispatcher) Dispatch(ctx context.Context, client *Client, cmd Command) error {
	if err := d.checkIdentity(client, cmd); err != nil {
		return err
	}

	switch cmd.Kind {
	case CommandDelete:
		return d.route(ctx, client.Room, &Event{
			Kind:      EventDelete,
			Room:      client.Room,
			MessageID: cmd.MessageID,
		})
	case CommandTyping:
		if client.SuppressTyping {
			return nil
		}
		return d.route(ctx, client.Room, &Event{
			Kind:   EventTyping,
			Room:   client.Room,
			UserID: cmd.UserID,
		})
	case CommandImage:
		_, display := NormalizeMessage(cmd.Text)
		return d.route(ctx, client.Room, &Event{
			Kind:      EventImageMessage,
			Room:      client.Room,
			UserID:    cmd.UserID,
			MessageID: cmd.MessageID,
			Message:   display,
			ImageURL:  cmd.ImageURL,
			DateSent:  cmd.DateSent,
		})
	case CommandChat:
		return d.sendChat(ctx, client, cmd)
	default:
		return Malformed(cmd.Kind.String(), "command", "is not supported")
	}
}

func (d *Dispatcher) checkIdentity(client *Client, cmd Command) error {
	if !d.cfg.VerifyUserID || client.UserID == 0 || cmd.Kind == CommandDelete {
		return nil
	}
	if cmd.UserID != client.UserID {
		return fmt.Errorf("%w: frame user %d, connection user %d", ErrUserMismatch, cmd.UserID, client.UserID)
	}
	return nil
}

func (d *Dispatcher) sendChat(ctx context.Context, client *Client, cmd Command) error {
	stored, display := NormalizeMessage(cmd.Text)

	var id int64
	err := withStoreTimeout(ctx, d.cfg.StoreTimeout, "append message", func(ctx context.Context) error {
		var err error
		id, err = d.messages.AppendMessage(ctx, cmd.NetID, cmd.UserID, stored, d.cfg.Clock())
		return err
	})
	if err != nil {
		return err
	}

	d.log.Debug().Str("net_id", client.Room).Int64("message_id", id).Int64("user_id", cmd.UserID).Msg("message stored")

	return d.route(ctx, client.Room, &Event{
		Kind:      EventChatMessage,
		Room:      client.Room,
		UserID:    cmd.UserID,
		MessageID: id,
		Message:   display,
	})
}

func (d *Dispatcher) route(ctx context.Context, room string, event *Event) error {
	if err := d.router.Broadcast(ctx, room, event); err != nil {
		return fmt.Errorf("broadcast %s: %w", event.Kind, err)
	}
	return nil
}
