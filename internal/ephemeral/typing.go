package ephemeral

import (
	"context"
	"database/sql"
	"fmt"
)

// Typist is one user currently typing in a topic.
type Typist struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TypingTable manages one typing-indicator table. Channel typing and DM
// typing share the pattern and differ only in table and key column.
type TypingTable struct {
	db *sql.DB

	purgeSQL string
	startSQL string
	stopSQL  string
	listSQL  string
}

func newTypingTable(db *sql.DB, table, keyCol string) *TypingTable {
	return &TypingTable{
		db:       db,
		purgeSQL: fmt.Sprintf(`DELETE FROM %s WHERE started_at < $1`, table),
		startSQL: fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s, user_id, username)
			VALUES ($1, $2, $3)
			ON CONFLICT (%[2]s, user_id)
			DO UPDATE SET started_at = NOW()`, table, keyCol),
		stopSQL: fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND user_id = $2`, table, keyCol),
		listSQL: fmt.Sprintf(`SELECT user_id, username FROM %s WHERE %s = $1`, table, keyCol),
	}
}

// NewChannelTyping manages typing indicators for guild channels.
func NewChannelTyping(db *sql.DB) *TypingTable {
	return newTypingTable(db, "typing_indicators", "channel_id")
}

// NewDMTyping manages typing indicators for direct-message conversations.
func NewDMTyping(db *sql.DB) *TypingTable {
	return newTypingTable(db, "dm_typing_indicators", "dm_id")
}

// Start upserts a fresh indicator for (topic, user); re-typing refreshes the
// timestamp. The username is denormalized into the row so readers need no
// join.
func (t *TypingTable) Start(ctx context.Context, topicID, userID string) error {
	var username string
	err := t.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = $1`, userID).Scan(&username)
	if err != nil {
		return fmt.Errorf("typing: user lookup: %w", err)
	}

	purge(ctx, t.db, t.purgeSQL, cutoffNow(TypingWindow))

	if _, err := t.db.ExecContext(ctx, t.startSQL, topicID, userID, username); err != nil {
		return fmt.Errorf("typing: start: %w", err)
	}
	return nil
}

// Stop removes the indicator unconditionally. Stopping when not typing is a
// no-op.
func (t *TypingTable) Stop(ctx context.Context, topicID, userID string) error {
	if _, err := t.db.ExecContext(ctx, t.stopSQL, topicID, userID); err != nil {
		return fmt.Errorf("typing: stop: %w", err)
	}
	return nil
}

// List returns who is typing in the topic right now.
func (t *TypingTable) List(ctx context.Context, topicID string) ([]Typist, error) {
	purge(ctx, t.db, t.purgeSQL, cutoffNow(TypingWindow))

	rows, err := t.db.QueryContext(ctx, t.listSQL, topicID)
	if err != nil {
		return nil, fmt.Errorf("typing: list: %w", err)
	}
	defer rows.Close()

	var out []Typist
	for rows.Next() {
		var typist Typist
		if err := rows.Scan(&typist.UserID, &typist.Username); err != nil {
			return nil, fmt.Errorf("typing: scan: %w", err)
		}
		out = append(out, typist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("typing: rows: %w", err)
	}
	return out, nil
}
