package app

import (
	"context"
	"testing"
	"time"

	"github.com/angelurano/tr3s/internal/apperr"
	"github.com/angelurano/tr3s/internal/notify"
)

func TestNotificationPaging(t *testing.T) {
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	alice := seedUser(t, mem, "alice")
	bob := seedUser(t, mem, "bob")

	for i := 0; i < 5; i++ {
		if err := svc.sink.Emit(ctx, notify.SpaceAccessGranted(alice.ID, "space-"+string(rune('a'+i)))); err != nil {
			t.Fatalf("emit: %v", err)
		}
		clock.Advance(time.Second)
	}

	first, err := svc.ListNotifications(ctx, alice.ID, time.Time{}, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 2 || first.NextCursor == nil {
		t.Fatalf("expected two items and a cursor, got %+v", first)
	}
	if first.Items[0].Payload.Data.SpaceID != "space-e" {
		t.Fatalf("expected newest first, got %s", first.Items[0].Payload.Data.SpaceID)
	}

	second, err := svc.ListNotifications(ctx, alice.ID, *first.NextCursor, 10)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Items) != 3 || second.NextCursor != nil {
		t.Fatalf("expected the remaining three without cursor, got %d cursor=%v", len(second.Items), second.NextCursor)
	}

	target := second.Items[0].ID
	_, err = svc.MarkNotificationRead(ctx, bob.ID, target)
	expectKind(t, err, apperr.KindNotFound)
	read, err := svc.MarkNotificationRead(ctx, alice.ID, target)
	if err != nil || !read.Read {
		t.Fatalf("expected read notification, got %+v err=%v", read, err)
	}

	expectKind(t, svc.DeleteNotification(ctx, bob.ID, target), apperr.KindNotFound)
	if err := svc.DeleteNotification(ctx, alice.ID, target); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ := svc.ListNotifications(ctx, alice.ID, time.Time{}, 500)
	if len(all.Items) != 4 {
		t.Fatalf("expected four notifications left, got %d", len(all.Items))
	}
}
