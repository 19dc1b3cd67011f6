package access

import (
	"testing"
	"time"

	"github.com/angelurano/tr3s/internal/store"
)

func TestResolve(t *testing.T) {
	active := &store.Space{ID: "s1", OwnerID: "owner", IsActive: true}
	inactive := &store.Space{ID: "s1", OwnerID: "owner", IsActive: false}
	row := func(status store.MembershipStatus) *store.Membership {
		return &store.Membership{UserID: "guest", SpaceID: "s1", Status: status}
	}

	cases := []struct {
		name       string
		caller     string
		space      *store.Space
		membership *store.Membership
		want       Status
	}{
		{name: "unauthenticated", caller: "", space: active, want: StatusUnauthenticated},
		{name: "missing space", caller: "guest", space: nil, want: StatusSpaceNotFound},
		{name: "owner active", caller: "owner", space: active, membership: &store.Membership{Status: store.MembershipOwner}, want: StatusOwner},
		{name: "owner inactive", caller: "owner", space: inactive, membership: &store.Membership{Status: store.MembershipOwner}, want: StatusOwner},
		{name: "owner without row", caller: "owner", space: inactive, want: StatusOwner},
		{name: "stranger active", caller: "guest", space: active, want: StatusNotRelated},
		{name: "stranger inactive", caller: "guest", space: inactive, want: StatusSpaceNotFound},
		{name: "pending active", caller: "guest", space: active, membership: row(store.MembershipPending), want: StatusPending},
		{name: "pending inactive", caller: "guest", space: inactive, membership: row(store.MembershipPending), want: StatusSpaceNotFound},
		{name: "accepted active", caller: "guest", space: active, membership: row(store.MembershipAccepted), want: StatusAccepted},
		{name: "accepted inactive", caller: "guest", space: inactive, membership: row(store.MembershipAccepted), want: StatusSpaceNotFound},
		{name: "rejected active", caller: "guest", space: active, membership: row(store.MembershipRejected), want: StatusRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.caller, tc.space, tc.membership); got != tc.want {
				t.Fatalf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveNeverLeaksInactiveSpaces(t *testing.T) {
	space := &store.Space{ID: "s1", OwnerID: "owner", IsActive: false, LastActive: ptr(time.Now())}
	for _, status := range []store.MembershipStatus{"", store.MembershipPending, store.MembershipAccepted, store.MembershipRejected} {
		var membership *store.Membership
		if status != "" {
			membership = &store.Membership{UserID: "guest", Status: status}
		}
		if got := Resolve("guest", space, membership); got != StatusSpaceNotFound {
			t.Fatalf("membership %q: Resolve() = %q, want %q", status, got, StatusSpaceNotFound)
		}
	}
}

func TestResolveAlwaysReturnsClosedSet(t *testing.T) {
	closed := map[Status]bool{
		StatusUnauthenticated: true, StatusSpaceNotFound: true, StatusNotRelated: true, StatusPending: true,
		StatusRejected: true, StatusOwner: true, StatusAccepted: true,
	}
	spaces := []*store.Space{nil, {OwnerID: "owner", IsActive: true}, {OwnerID: "owner"}}
	callers := []string{"", "owner", "guest"}
	statuses := []store.MembershipStatus{store.MembershipOwner, store.MembershipPending, store.MembershipAccepted, store.MembershipRejected, "bogus"}

	for _, space := range spaces {
		for _, caller := range callers {
			if got := Resolve(caller, space, nil); !closed[got] {
				t.Fatalf("Resolve(%q, %+v, nil) = %q, outside closed set", caller, space, got)
			}
			for _, status := range statuses {
				got := Resolve(caller, space, &store.Membership{Status: status})
				if !closed[got] {
					t.Fatalf("Resolve(%q, %+v, %q) = %q, outside closed set", caller, space, status, got)
				}
			}
		}
	}
}

func TestCan(t *testing.T) {
	cases := []struct {
		status Status
		action Action
		allow  bool
	}{
		{StatusOwner, ActionParticipate, true},
		{StatusOwner, ActionManage, true},
		{StatusAccepted, ActionParticipate, true},
		{StatusAccepted, ActionManage, false},
		{StatusPending, ActionParticipate, false},
		{StatusRejected, ActionParticipate, false},
		{StatusNotRelated, ActionParticipate, false},
		{StatusSpaceNotFound, ActionManage, false},
		{StatusUnauthenticated, ActionParticipate, false},
	}
	for _, tc := range cases {
		if got := Can(tc.status, tc.action); got != tc.allow {
			t.Fatalf("Can(%q, %q) = %v, want %v", tc.status, tc.action, got, tc.allow)
		}
	}
}

func ptr[T any](v T) *T { return &v }
