// Package impl contains the application-specific business rules implementations.
package impl

import (
	"log/slog"
	"sync"

	"terminal/config"
	"terminal/internal/domain/entity"
	"terminal/internal/usecase"
)

// notificationStore implements the NotificationUsecase interface: an ordered,
// bounded, append-from-the-front feed. Push delivery and the REST backfill can
// overlap on reconnect, so insertion de-duplicates by id; records are never
// individually deleted, only evicted from the tail or cleared in bulk.
type notificationStore struct {
	mu      sync.Mutex
	cap     int
	records []entity.NotificationRecord
	present map[string]struct{} // ids currently in the feed
	logger  *slog.Logger
}

// NewNotificationStore is the constructor for the notification feed.
func NewNotificationStore(cfg *config.Config, logger *slog.Logger) usecase.NotificationUsecase {
	return &notificationStore{
		cap:     cfg.Notifications.Cap,
		present: make(map[string]struct{}),
		logger:  logger,
	}
}

// Add prepends a record and truncates the feed to its cap.
func (s *notificationStore) Add(record entity.NotificationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.present[record.ID]; dup {
		s.logger.Debug("Dropping duplicate notification", slog.String("id", record.ID))

		return
	}

	s.records = append([]entity.NotificationRecord{record}, s.records...)
	s.present[record.ID] = struct{}{}

	if len(s.records) > s.cap {
		for _, evicted := range s.records[s.cap:] {
			delete(s.present, evicted.ID)
		}
		s.records = s.records[:s.cap]
	}
}

// MarkAllRead flags every record as read, preserving order.
func (s *notificationStore) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		s.records[i].Read = true
	}
}

// Clear empties the feed.
func (s *notificationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.present = make(map[string]struct{})
}

// List returns a snapshot of the feed, newest first.
func (s *notificationStore) List() []entity.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]entity.NotificationRecord, len(s.records))
	copy(snapshot, s.records)

	return snapshot
}

// UnreadCount returns the number of unread records.
func (s *notificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if !record.Read {
			count++
		}
	}

	return count
}
