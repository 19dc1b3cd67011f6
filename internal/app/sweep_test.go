package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelurano/tr3s/internal/store"
)

// sweepStore overrides single store calls on top of a MemoryStore.
type sweepStore struct {
	*store.MemoryStore
	listActiveSpacesFn func(context.Context) ([]store.Space, error)
	setSpaceActiveFn   func(context.Context, string, bool, *time.Time) (store.Space, error)
}

func (f *sweepStore) ListActiveSpaces(ctx context.Context) ([]store.Space, error) {
	if f.listActiveSpacesFn != nil {
		return f.listActiveSpacesFn(ctx)
	}
	return f.MemoryStore.ListActiveSpaces(ctx)
}

func (f *sweepStore) SetSpaceActive(ctx context.Context, spaceID string, active bool, lastActive *time.Time) (store.Space, error) {
	if f.setSpaceActiveFn != nil {
		return f.setSpaceActiveFn(ctx, spaceID, active, lastActive)
	}
	return f.MemoryStore.SetSpaceActive(ctx, spaceID, active, lastActive)
}

func seedActiveSpace(t *testing.T, mem *store.MemoryStore, ownerID, title string, lastActive *time.Time) store.Space {
	t.Helper()
	space, err := mem.CreateSpace(context.Background(),
		store.Space{Title: title, OwnerID: ownerID, IsActive: true, LastActive: lastActive, CreatedAt: time.Now().UTC()},
		store.Membership{UserID: ownerID, Status: store.MembershipOwner, LastUpdated: time.Now().UTC()},
	)
	if err != nil {
		t.Fatalf("seed space: %v", err)
	}
	return space
}

func TestSweepDeactivatesOnlyIdleSpaces(t *testing.T) {
	mem := store.NewMemoryStore()
	svc, clock := newServiceOn(mem)
	ctx := context.Background()
	owner := seedUser(t, mem, "owner")

	idleAt := clock.Now().Add(-6 * time.Minute)
	edgeAt := clock.Now().Add(-5 * time.Minute)
	freshAt := clock.Now().Add(-time.Minute)
	idle := seedActiveSpace(t, mem, owner.ID, "Idle", &idleAt)
	edge := seedActiveSpace(t, mem, owner.ID, "Edge", &edgeAt)
	fresh := seedActiveSpace(t, mem, owner.ID, "Fresh", &freshAt)
	unstamped := seedActiveSpace(t, mem, owner.ID, "Unstamped", nil)

	if _, err := mem.UpsertPresence(ctx, store.Presence{UserID: owner.ID, SpaceID: idle.ID, Present: true, LastUpdated: idleAt}); err != nil {
		t.Fatalf("seed presence: %v", err)
	}

	result, err := svc.DeactivateInactiveSpaces(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Scanned != 4 || result.Deactivated != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	for _, tc := range []struct {
		space  store.Space
		active bool
	}{
		{idle, false},
		{edge, true},
		{fresh, true},
		{unstamped, true},
	} {
		stored, err := mem.GetSpace(ctx, tc.space.ID)
		if err != nil {
			t.Fatalf("get %s: %v", tc.space.Title, err)
		}
		if stored.IsActive != tc.active {
			t.Fatalf("%s: expected active=%v", tc.space.Title, tc.active)
		}
	}

	stored, _ := mem.GetSpace(ctx, idle.ID)
	if stored.LastActive == nil || !stored.LastActive.Equal(idleAt) {
		t.Fatalf("expected lastActive untouched, got %v", stored.LastActive)
	}
	rows, _ := mem.ListPresence(ctx, idle.ID, time.Time{})
	if len(rows) != 1 || rows[0].Present {
		t.Fatalf("expected presence kept but marked absent, got %+v", rows)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	mem := store.NewMemoryStore()
	fs := &sweepStore{MemoryStore: mem}
	svc, clock := newServiceOn(fs)
	owner := seedUser(t, mem, "owner")

	idleAt := clock.Now().Add(-time.Hour)
	broken := seedActiveSpace(t, mem, owner.ID, "Broken", &idleAt)
	healthy := seedActiveSpace(t, mem, owner.ID, "Healthy", &idleAt)

	fs.setSpaceActiveFn = func(ctx context.Context, spaceID string, active bool, lastActive *time.Time) (store.Space, error) {
		if spaceID == broken.ID {
			return store.Space{}, errors.New("connection reset")
		}
		return mem.SetSpaceActive(ctx, spaceID, active, lastActive)
	}

	result, err := svc.DeactivateInactiveSpaces(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Deactivated != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := mem.GetSpace(context.Background(), healthy.ID)
	if stored.IsActive {
		t.Fatal("expected healthy space to be deactivated despite the other failure")
	}
}

func TestSweepReportsListFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	fs := &sweepStore{
		MemoryStore: mem,
		listActiveSpacesFn: func(context.Context) ([]store.Space, error) {
			return nil, errors.New("database unavailable")
		},
	}
	svc, _ := newServiceOn(fs)
	if err := svc.Sweep(context.Background()); err == nil {
		t.Fatal("expected list failure to surface")
	}
}
