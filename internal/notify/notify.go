// Package notify builds user notifications and delivers them.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/angelurano/tr3s/internal/feed"
	"github.com/angelurano/tr3s/internal/store"
)

type Event struct {
	UserID  string
	Content string
	Payload store.NotificationPayload
}

func SpaceAccessGranted(userID, spaceID string) Event {
	return Event{
		UserID:  userID,
		Content: "You have been granted access to a space",
		Payload: store.NotificationPayload{Type: store.PayloadSpaceAccess, Data: store.NotificationPayData{SpaceID: spaceID}},
	}
}

func SpaceAccessDenied(userID, spaceID string) Event {
	return Event{
		UserID:  userID,
		Content: "Your request to join a space was denied",
		Payload: store.NotificationPayload{Type: store.PayloadSpaceAccess, Data: store.NotificationPayData{SpaceID: spaceID}},
	}
}

// SpaceRequest tells the owner that requesterID asked to join spaceID.
func SpaceRequest(ownerID, spaceID, requesterID string) Event {
	return Event{
		UserID:  ownerID,
		Content: "Someone requested to join your space",
		Payload: store.NotificationPayload{Type: store.PayloadSpaceRequest, Data: store.NotificationPayData{SpaceID: spaceID, UserID: requesterID}},
	}
}

func FriendRequest(toID, friendshipID, fromID string) Event {
	return Event{
		UserID:  toID,
		Content: "You have a new friend request",
		Payload: store.NotificationPayload{Type: store.PayloadFriendRequest, Data: store.NotificationPayData{FriendshipID: friendshipID, FromID: fromID}},
	}
}

func FriendAccepted(fromID, friendshipID, toID string) Event {
	return Event{
		UserID:  fromID,
		Content: "Your friend request was accepted",
		Payload: store.NotificationPayload{Type: store.PayloadFriendAccepted, Data: store.NotificationPayData{FriendshipID: friendshipID, ToID: toID}},
	}
}

type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type notificationStore interface {
	InsertNotification(ctx context.Context, notification store.Notification) (store.Notification, error)
}

// StoreSink persists each event as a notification row and announces it on the feed.
type StoreSink struct {
	store notificationStore
	bus   feed.Bus
	now   func() time.Time
}

func NewStoreSink(s notificationStore, bus feed.Bus, now func() time.Time) *StoreSink {
	if now == nil {
		now = time.Now
	}
	return &StoreSink{store: s, bus: bus, now: now}
}

func (s *StoreSink) Emit(ctx context.Context, event Event) error {
	if event.UserID == "" {
		return fmt.Errorf("emit notification: missing recipient")
	}
	payload := event.Payload
	saved, err := s.store.InsertNotification(ctx, store.Notification{
		UserID:    event.UserID,
		Content:   event.Content,
		Payload:   &payload,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("emit notification: %w", err)
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, feed.Event{Kind: feed.KindNotificationCreated, UserID: saved.UserID, At: saved.CreatedAt}); err != nil {
			return fmt.Errorf("publish notification: %w", err)
		}
	}
	return nil
}
