// Package presence tracks last-known user status in the authoritative store,
// accelerates bulk reads through an optional cache, and derives effective
// status from a staleness check against the last-seen timestamp.
package presence

import "time"

// Recognized status values.
const (
	StatusOnline  = "online"
	StatusIdle    = "idle"
	StatusDND     = "dnd"
	StatusFocus   = "focus"
	StatusOffline = "offline"
)

// ValidStatus reports whether s is one of the recognized status values.
func ValidStatus(s string) bool {
	switch s {
	case StatusOnline, StatusIdle, StatusDND, StatusFocus, StatusOffline:
		return true
	}
	return false
}

// Record is the stored presence row for one user. Effective status is
// computed from it, never stored.
type Record struct {
	UserID   string
	Status   string
	LastSeen time.Time
}
