package presence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store is the authoritative presence store. One row per user, last write
// wins.
type Store interface {
	Upsert(ctx context.Context, userID, status string, now time.Time) error
	Touch(ctx context.Context, userID string, now time.Time) error
	Get(ctx context.Context, userID string) (Record, bool, error)
	GetMany(ctx context.Context, userIDs []string) ([]Record, error)
	GuildPresence(ctx context.Context, guildID string) ([]Record, error)
}

// SQLStore implements Store on the relational database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Upsert(ctx context.Context, userID, status string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, status, last_seen, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET status = $2, last_seen = $3, updated_at = $3`,
		userID, status, now)
	if err != nil {
		return fmt.Errorf("presence: upsert: %w", err)
	}
	return nil
}

func (s *SQLStore) Touch(ctx context.Context, userID string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_presence (user_id, status, last_seen, updated_at)
		VALUES ($1, 'online', $2, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET status = 'online', last_seen = $2, updated_at = $2`,
		userID, now)
	if err != nil {
		return fmt.Errorf("presence: touch: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, userID string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, status, last_seen FROM user_presence WHERE user_id = $1`, userID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("presence: get: %w", err)
	}
	return rec, true, nil
}

// GetMany resolves presence rows for the given ids in one query. Ids that
// are not valid UUIDs are skipped, matching how unknown users are handled:
// absence from the result set.
func (s *SQLStore) GetMany(ctx context.Context, userIDs []string) ([]Record, error) {
	valid := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, status, last_seen
		FROM user_presence
		WHERE user_id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("presence: bulk get: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLStore) GuildPresence(ctx context.Context, guildID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT up.user_id, up.status, up.last_seen
		FROM user_presence up
		JOIN guild_members gm ON up.user_id = gm.user_id
		WHERE gm.guild_id = $1`, guildID)
	if err != nil {
		return nil, fmt.Errorf("presence: guild presence: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord tolerates legacy rows with NULL status or last_seen, defaulting
// them to offline and the current time.
func scanRecord(row rowScanner) (Record, error) {
	var (
		rec      Record
		status   sql.NullString
		lastSeen sql.NullTime
	)
	if err := row.Scan(&rec.UserID, &status, &lastSeen); err != nil {
		return Record{}, err
	}
	rec.Status = StatusOffline
	if status.Valid {
		rec.Status = status.String
	}
	rec.LastSeen = time.Now().UTC()
	if lastSeen.Valid {
		rec.LastSeen = lastSeen.Time
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("presence: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("presence: rows: %w", err)
	}
	return out, nil
}
