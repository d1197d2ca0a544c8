package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"terminal/config"
	"terminal/internal/domain/entity"
	domainerrors "terminal/internal/domain/errors"
	"terminal/internal/domain/service"

	"github.com/pkg/errors"
)

// notificationFeed implements the one-time REST backfill source.
type notificationFeed struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotificationFeed is the constructor for the REST notification feed.
func NewNotificationFeed(cfg *config.Config, logger *slog.Logger) service.NotificationFeed {
	return &notificationFeed{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.API.Timeout},
		logger:     logger,
	}
}

// Recent fetches up to limit notifications, newest first, mapped through the
// same event-to-record rules as push delivery.
func (f *notificationFeed) Recent(ctx context.Context, accessToken string, limit int) ([]entity.NotificationRecord, error) {
	url := f.baseURL + "/notifications?unreadOnly=false&limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build backfill request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domainerrors.ErrTransient.WrapMessage(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domainerrors.ErrUnauthorized.WrapMessage("notification backfill")
	case resp.StatusCode >= 400:
		return nil, domainerrors.ErrTransient.WrapMessage("notification backfill: " + resp.Status)
	}

	var events []entity.NotificationEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, domainerrors.ErrTransient.WrapMessage("decode backfill: " + err.Error())
	}

	records := make([]entity.NotificationRecord, 0, len(events))
	for _, event := range events {
		records = append(records, entity.RecordFromEvent(event))
	}

	f.logger.Debug("Backfill fetched", slog.Int("count", len(records)))

	return records, nil
}
