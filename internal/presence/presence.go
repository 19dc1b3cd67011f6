// Package presence decides which presence rows count as online.
package presence

import (
	"time"

	"github.com/angelurano/tr3s/internal/store"
)

const DefaultStaleness = 10 * time.Second

// Offscreen is the cursor a client reports when the pointer left the canvas.
var Offscreen = store.CursorPosition{X: -1, Y: -1}

// IsOnline reports whether the row was refreshed within the window and is marked present.
func IsOnline(row store.Presence, now time.Time, window time.Duration) bool {
	return row.Present && now.Sub(row.LastUpdated) <= window
}

// Filter keeps the rows other viewers should see: online, not the viewer's
// own, and with a resolvable user.
func Filter(rows []store.PresenceWithUser, viewerID string, now time.Time, window time.Duration) []store.PresenceWithUser {
	out := make([]store.PresenceWithUser, 0, len(rows))
	for _, row := range rows {
		if row.UserID == viewerID || row.User == nil {
			continue
		}
		if !IsOnline(row.Presence, now, window) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func IsOffscreen(cursor store.CursorPosition) bool {
	return cursor == Offscreen
}
