// Package ephemeral holds the short-lived signal tables: typing indicators
// and voice sessions. Rows are keyed by (topic, user) with a start/refresh
// timestamp and expire by window rather than by timer: every operation
// begins with a best-effort purge of rows older than the window, so expired
// rows are never returned even when not yet physically deleted.
package ephemeral

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

const (
	// TypingWindow is how long a typing indicator stays live without a
	// refresh.
	TypingWindow = 10 * time.Second
	// VoiceWindow is how long a voice session survives without a heartbeat.
	VoiceWindow = 30 * time.Second
)

func cutoffNow(window time.Duration) time.Time {
	return time.Now().UTC().Add(-window)
}

// purge deletes rows older than cutoff. Errors are ignored beyond a debug
// log: stale-row accumulation self-heals on the next successful purge.
func purge(ctx context.Context, db *sql.DB, query string, cutoff time.Time) {
	if _, err := db.ExecContext(ctx, query, cutoff); err != nil {
		slog.Debug("ephemeral purge failed", "query", query, "error", err)
	}
}
