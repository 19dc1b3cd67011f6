package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedMemorySpace(t *testing.T, s *MemoryStore) (User, Space) {
	t.Helper()
	ctx := context.Background()
	owner, err := s.UpsertUser(ctx, User{ExternalID: "ext-owner", Name: "Owner"})
	if err != nil {
		t.Fatalf("upsert owner: %v", err)
	}
	space, err := s.CreateSpace(ctx,
		Space{Title: "Studio", OwnerID: owner.ID, CreatedAt: t0},
		Membership{UserID: owner.ID, Status: MembershipOwner, LastUpdated: t0},
	)
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	return owner, space
}

func TestMemoryUpsertUserKeepsIDForSameExternalID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.UpsertUser(ctx, User{ExternalID: "ext-1", Name: "Ana"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := s.UpsertUser(ctx, User{ExternalID: "ext-1", Name: "Ana Maria"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID || second.Name != "Ana Maria" {
		t.Fatalf("expected same id with updated name, got %+v then %+v", first, second)
	}
	if _, err := s.GetUserByExternalID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCreateSpaceInsertsOwnerMembership(t *testing.T) {
	s := NewMemoryStore()
	owner, space := seedMemorySpace(t, s)

	membership, err := s.GetMembership(context.Background(), owner.ID, space.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if membership.Status != MembershipOwner {
		t.Fatalf("expected owner status, got %q", membership.Status)
	}
	count, _ := s.CountSpacesByOwner(context.Background(), owner.ID)
	if count != 1 {
		t.Fatalf("expected one owned space, got %d", count)
	}
}

func TestMemoryConcurrentInsertMembershipCollapses(t *testing.T) {
	s := NewMemoryStore()
	_, space := seedMemorySpace(t, s)

	var (
		wg        sync.WaitGroup
		conflicts atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertMembership(context.Background(), Membership{UserID: "guest", SpaceID: space.ID, Status: MembershipPending, LastUpdated: t0})
			if errors.Is(err, ErrConflict) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := conflicts.Load(); got != 15 {
		t.Fatalf("expected 15 conflicts, got %d", got)
	}
	pending, _ := s.ListMemberships(context.Background(), space.ID, MembershipPending)
	if len(pending) != 1 {
		t.Fatalf("expected one pending row, got %d", len(pending))
	}
	if pending[0].User != nil {
		t.Fatal("expected nil profile for unknown user")
	}
}

func TestMemoryUpsertPresenceLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	owner, space := seedMemorySpace(t, s)
	ctx := context.Background()

	first, _ := s.UpsertPresence(ctx, Presence{UserID: owner.ID, SpaceID: space.ID, Present: true, LastUpdated: t0.Add(2 * time.Second)})
	stale, _ := s.UpsertPresence(ctx, Presence{UserID: owner.ID, SpaceID: space.ID, Present: false, LastUpdated: t0})
	if !stale.Present || stale.ID != first.ID {
		t.Fatalf("expected newer stored row to win, got %+v", stale)
	}

	newer, _ := s.UpsertPresence(ctx, Presence{UserID: owner.ID, SpaceID: space.ID, Typing: true, LastUpdated: t0.Add(3 * time.Second)})
	if newer.ID != first.ID || !newer.Typing {
		t.Fatalf("expected in-place update, got %+v", newer)
	}

	rows, _ := s.ListPresence(ctx, space.ID, t0)
	if len(rows) != 1 {
		t.Fatalf("expected one row per (user, space), got %d", len(rows))
	}
	if rows[0].User == nil || rows[0].User.ID != owner.ID {
		t.Fatalf("expected joined profile, got %+v", rows[0].User)
	}
}

func TestMemoryListPresenceFiltersBySince(t *testing.T) {
	s := NewMemoryStore()
	owner, space := seedMemorySpace(t, s)
	ctx := context.Background()

	_, _ = s.UpsertPresence(ctx, Presence{UserID: owner.ID, SpaceID: space.ID, Present: true, LastUpdated: t0})
	_, _ = s.UpsertPresence(ctx, Presence{UserID: "other", SpaceID: space.ID, Present: true, LastUpdated: t0.Add(20 * time.Second)})

	rows, _ := s.ListPresence(ctx, space.ID, t0.Add(10*time.Second))
	if len(rows) != 1 || rows[0].UserID != "other" {
		t.Fatalf("expected only the recent row, got %+v", rows)
	}

	n, _ := s.MarkSpacePresenceAbsent(ctx, space.ID)
	if n != 2 {
		t.Fatalf("expected 2 rows marked absent, got %d", n)
	}
	n, _ = s.DeleteSpacePresence(ctx, space.ID)
	if n != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", n)
	}
}

func TestMemoryDeleteSpaceCascades(t *testing.T) {
	s := NewMemoryStore()
	owner, space := seedMemorySpace(t, s)
	ctx := context.Background()

	_, _ = s.UpsertPresence(ctx, Presence{UserID: owner.ID, SpaceID: space.ID, LastUpdated: t0})
	_, _ = s.InsertMessage(ctx, Message{AuthorID: owner.ID, SpaceID: space.ID, Body: "hey", CreatedAt: t0})

	if err := s.DeleteSpace(ctx, space.ID); err != nil {
		t.Fatalf("delete space: %v", err)
	}
	if _, err := s.GetMembership(ctx, owner.ID, space.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected membership removed, got %v", err)
	}
	rows, _ := s.ListPresence(ctx, space.ID, time.Time{})
	msgs, _ := s.ListMessages(ctx, space.ID, time.Time{}, 0)
	if len(rows) != 0 || len(msgs) != 0 {
		t.Fatalf("expected cascade, got %d presence rows and %d messages", len(rows), len(msgs))
	}
}

func TestMemoryListMessagesNewestFirstWithLimit(t *testing.T) {
	s := NewMemoryStore()
	owner, space := seedMemorySpace(t, s)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = s.InsertMessage(ctx, Message{AuthorID: owner.ID, SpaceID: space.ID, Body: "m", CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	msgs, _ := s.ListMessages(ctx, space.ID, t0.Add(time.Minute), 3)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if !msgs[0].CreatedAt.Equal(t0.Add(4 * time.Minute)) {
		t.Fatalf("expected newest first, got %s", msgs[0].CreatedAt)
	}
}

func TestMemoryFindFriendshipEitherDirection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	saved, _ := s.InsertFriendship(ctx, Friendship{FromID: "a", ToID: "b", Status: FriendshipPending, LastUpdated: t0})
	found, err := s.FindFriendship(ctx, "b", "a")
	if err != nil || found.ID != saved.ID {
		t.Fatalf("FindFriendship(b, a) = (%+v, %v)", found, err)
	}
	incoming, _ := s.ListIncomingFriendships(ctx, "b")
	if len(incoming) != 1 {
		t.Fatalf("expected one incoming request, got %d", len(incoming))
	}
	accepted, _ := s.ListFriendships(ctx, "a", FriendshipAccepted)
	if len(accepted) != 0 {
		t.Fatalf("expected no accepted friendships, got %d", len(accepted))
	}
}

func TestMemoryListNotificationsPagesByCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = s.InsertNotification(ctx, Notification{UserID: "u", Content: "n", CreatedAt: t0.Add(time.Duration(i) * time.Second)})
	}
	first, _ := s.ListNotifications(ctx, "u", time.Time{}, 2)
	if len(first) != 2 || !first[0].CreatedAt.Equal(t0.Add(3*time.Second)) {
		t.Fatalf("unexpected first page %+v", first)
	}
	second, _ := s.ListNotifications(ctx, "u", first[1].CreatedAt, 2)
	if len(second) != 2 || !second[0].CreatedAt.Equal(t0.Add(time.Second)) {
		t.Fatalf("unexpected second page %+v", second)
	}
}
