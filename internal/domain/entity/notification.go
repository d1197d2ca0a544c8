package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification categories pushed by the platform.
const (
	NotificationTransaction = "transaction"
	NotificationOrderUpdate = "order_update"
	NotificationMarginCall  = "margin_call"
	NotificationStopOut     = "stop_out"
)

// NotificationRecord is a single entry in the client-side notification feed.
type NotificationRecord struct {
	ID        string    `json:"id"`         // Unique identifier, stable across backfill and push delivery.
	Title     string    `json:"title"`      // Display title, defaulted from the category when absent.
	Message   string    `json:"message"`    // Body text.
	Category  string    `json:"category"`   // Platform event category (transaction, order_update, ...).
	CreatedAt time.Time `json:"created_at"` // Server-side creation time.
	Read      bool      `json:"read"`       // Whether the user has seen this entry.
}

// NotificationEvent is the wire shape shared by the push channel and the
// REST backfill endpoint.
type NotificationEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
	Timestamp int64          `json:"timestamp,omitempty"` // Unix milliseconds, used when createdAt is absent.
	Read      bool           `json:"read,omitempty"`
}

// RecordFromEvent maps a wire event into a feed record, filling in the
// pieces the platform is allowed to omit: a missing id gets a generated one,
// a missing title is defaulted from the event type, and the creation time
// falls back from createdAt to timestamp to the local clock.
func RecordFromEvent(event NotificationEvent) NotificationRecord {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() && event.Timestamp > 0 {
		createdAt = time.UnixMilli(event.Timestamp)
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return NotificationRecord{
		ID:        id,
		Title:     titleFor(event),
		Message:   event.Message,
		Category:  event.Type,
		CreatedAt: createdAt,
		Read:      event.Read,
	}
}

func titleFor(event NotificationEvent) string {
	if event.Title != "" {
		return event.Title
	}

	switch event.Type {
	case NotificationTransaction:
		return "Transaction Update"
	case NotificationOrderUpdate:
		return "Order Update"
	case NotificationMarginCall:
		return "Margin Call"
	case NotificationStopOut:
		return "Stop Out"
	default:
		return "Notification"
	}
}
