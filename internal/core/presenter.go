package core

import (
	"context"
	"fmt"
	"time"
)

// PresenterConfig tunes delivery-time enrichment.
type PresenterConfig struct {
	StoreTimeout time.Duration
	// DefaultAvatar replaces an empty avatar URL.
	DefaultAvatar string
	// Location is the zone chat timestamps are rendered in. Defaults to time.Local.
	Location *time.Location
	// Clock supplies the delivery time. Defaults to time.Now.
	Clock func() time.Time
}

// Delivery is an event as seen by one recipient.
type Delivery struct {
	Event     *Event
	Username  string
	UserImage string
	DateSent  string
}

// Presenter resolves author identity and delivery timestamps for each recipient.
// Identity is looked up on every delivery so profile changes show up immediately.
type Presenter struct {
	identities IdentityStore
	cfg        PresenterConfig
}

// NewPresenter builds a presenter backed by identities.
func NewPresenter(identities IdentityStore, cfg PresenterConfig) *Presenter {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Presenter{identities: identities, cfg: cfg}
}

// Present builds the per-recipient view of event.
func (p *Presenter) Present(ctx context.Context, event *Event) (*Delivery, error) {
	switch event.Kind {
	case EventTyping, EventDelete:
		return &Delivery{Event: event}, nil
	case EventChatMessage:
		delivery, err := p.withIdentity(ctx, event)
		if err != nil {
			return nil, err
		}
		delivery.DateSent = FormatDeliveryTime(p.cfg.Clock().In(p.cfg.Location))
		return delivery, nil
	case EventImageMessage:
		delivery, err := p.withIdentity(ctx, event)
		if err != nil {
			return nil, err
		}
		delivery.DateSent = event.DateSent
		return delivery, nil
	default:
		return nil, fmt.Errorf("present event: unknown kind %d", event.Kind)
	}
}

func (p *Presenter) withIdentity(ctx context.Context, event *Event) (*Delivery, error) {
	delivery := &Delivery{Event: event}
	err := withStoreTimeout(ctx, p.cfg.StoreTimeout, "resolve identity", func(ctx context.Context) error {
		identity, err := p.identities.ResolveIdentity(ctx, event.UserID)
		if err != nil {
			return err
		}
		delivery.Username = identity.Username
		delivery.UserImage = identity.ImageURL
		return nil
	})
	if err != nil {
		return nil, err
	}
	if delivery.UserImage == "" {
		delivery.UserImage = p.cfg.DefaultAvatar
	}
	return delivery, nil
}
