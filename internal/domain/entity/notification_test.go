package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordFromEvent_DefaultsTitleByType(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{eventType: NotificationTransaction, want: "Transaction Update"},
		{eventType: NotificationOrderUpdate, want: "Order Update"},
		{eventType: NotificationMarginCall, want: "Margin Call"},
		{eventType: NotificationStopOut, want: "Stop Out"},
		{eventType: "something_else", want: "Notification"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			record := RecordFromEvent(NotificationEvent{ID: "n1", Type: tt.eventType})

			assert.Equal(t, tt.want, record.Title)
			assert.Equal(t, tt.eventType, record.Category)
		})
	}
}

func TestRecordFromEvent_ExplicitTitleWins(t *testing.T) {
	record := RecordFromEvent(NotificationEvent{ID: "n1", Type: NotificationMarginCall, Title: "Margin call on BTC-USDT"})

	assert.Equal(t, "Margin call on BTC-USDT", record.Title)
}

func TestRecordFromEvent_GeneratesIDWhenAbsent(t *testing.T) {
	first := RecordFromEvent(NotificationEvent{Type: NotificationTransaction})
	second := RecordFromEvent(NotificationEvent{Type: NotificationTransaction})

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRecordFromEvent_TimestampFallback(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	withCreatedAt := RecordFromEvent(NotificationEvent{ID: "a", CreatedAt: at})
	assert.True(t, withCreatedAt.CreatedAt.Equal(at))

	withTimestamp := RecordFromEvent(NotificationEvent{ID: "b", Timestamp: at.UnixMilli()})
	assert.True(t, withTimestamp.CreatedAt.Equal(at))

	withNeither := RecordFromEvent(NotificationEvent{ID: "c"})
	assert.WithinDuration(t, time.Now(), withNeither.CreatedAt, time.Minute)
}

func TestAllowedScreen(t *testing.T) {
	assert.True(t, AllowedScreen(ScreenDashboard))
	assert.True(t, AllowedScreen(ScreenTrading))
	assert.False(t, AllowedScreen("admin"))
	assert.False(t, AllowedScreen(""))
}
