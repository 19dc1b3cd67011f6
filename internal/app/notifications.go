package app

import (
	"context"
	"errors"
	"time"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/store"
	"github.com/angelurano/tr3s/internal/util"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationPage struct {
	Items []NotificationView `json:"items"`
	// NextCursor is the createdAt of the last item when more may follow.
	NextCursor *time.Time `json:"nextCursor,omitempty"`
}

// ListNotifications pages the caller's notifications newest first. A zero
// before starts at the newest; limit is clamped to 1..100 with 20 as default.
func (s *Service) ListNotifications(ctx context.Context, callerID string, before time.Time, limit int) (NotificationPage, error) {
	if err := requireCaller(callerID); err != nil {
		return NotificationPage{}, err
	}
	switch {
	case limit <= 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	rows, err := s.store.ListNotifications(ctx, callerID, before, limit)
	if err != nil {
		return NotificationPage{}, err
	}
	page := NotificationPage{Items: make([]NotificationView, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, notificationView(row))
	}
	if len(rows) == limit {
		cursor := rows[len(rows)-1].CreatedAt
		page.NextCursor = &cursor
	}
	return page, nil
}

func (s *Service) ownNotification(ctx context.Context, callerID, notificationID string) (store.Notification, error) {
	if err := requireCaller(callerID); err != nil {
		return store.Notification{}, err
	}
	id, ok := util.NormalizeID(notificationID)
	if !ok {
		return store.Notification{}, apperr.NotFound("Notification not found")
	}
	notification, err := s.store.GetNotification(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Notification{}, apperr.NotFound("Notification not found")
	}
	if err != nil {
		return store.Notification{}, err
	}
	if notification.UserID != callerID {
		return store.Notification{}, apperr.NotFound("Notification not found")
	}
	return notification, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, callerID, notificationID string) (NotificationView, error) {
	notification, err := s.ownNotification(ctx, callerID, notificationID)
	if err != nil {
		return NotificationView{}, err
	}
	saved, err := s.store.MarkNotificationRead(ctx, notification.ID)
	if err != nil {
		return NotificationView{}, err
	}
	return notificationView(saved), nil
}

func (s *Service) DeleteNotification(ctx context.Context, callerID, notificationID string) error {
	notification, err := s.ownNotification(ctx, callerID, notificationID)
	if err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, notification.ID)
}
