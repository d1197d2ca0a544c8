package usecase

import (
	"terminal/internal/domain/entity"
)

// NotificationUsecase is the client-side notification feed: ordered
// newest-first, bounded, de-duplicated by id, fed by channel push and the
// one-time REST backfill.
type NotificationUsecase interface {
	// Add prepends a record, dropping duplicates by id and evicting the
	// oldest entries beyond the feed cap.
	Add(record entity.NotificationRecord)

	// MarkAllRead flags every record as read, preserving order.
	MarkAllRead()

	// Clear empties the feed.
	Clear()

	// List returns a snapshot of the feed, newest first.
	List() []entity.NotificationRecord

	// UnreadCount returns the number of unread records.
	UnreadCount() int
}
