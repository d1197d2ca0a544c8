package service

import (
	"context"

	"terminal/internal/domain/entity"
)

// Subscription is a scoped handler registration returned by
// RealtimeChannel.On. The owner must Close it before its own lifetime ends;
// events arriving after Close are dropped silently, never delivered to a
// torn-down consumer. Close is idempotent.
type Subscription interface {
	Close()
}

// RealtimeChannel is a long-lived bidirectional connection to the push
// notification service.
//
// Connection lifecycle is independent of token refresh: the channel may be
// connected while a refresh is in flight. Events are delivered to handlers
// in the order received from the transport; no reordering or coalescing
// happens here.
type RealtimeChannel interface {
	// Connect dials the push service, authorizing with the access token.
	// Calling Connect while already connected is a no-op.
	Connect(ctx context.Context, accessToken string) error

	// Disconnect closes the transport and stops delivery. Handler
	// registrations are owned by their subscribers and survive a disconnect.
	Disconnect()

	// Subscribe sends the subscribe control message for the given channels.
	Subscribe(channels ...string) error

	// On registers a handler for a named event and returns its subscription.
	On(event string, handler func(entity.NotificationEvent)) Subscription

	// OnReconnect registers a handler for connection-recovery outcomes after
	// an unexpected transport loss. The handler receives nil once the channel
	// is redialed and resubscribed, or the final error when recovery gives up.
	// Deliberate disconnects never trigger it.
	OnReconnect(handler func(err error)) Subscription
}
