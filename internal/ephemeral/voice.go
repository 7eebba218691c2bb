package ephemeral

import (
	"context"
	"database/sql"
	"fmt"
)

// VoiceUser is one participant in a voice channel.
type VoiceUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ChannelUsers groups the participants of one voice channel.
type ChannelUsers struct {
	ChannelID string      `json:"channel_id"`
	Users     []VoiceUser `json:"users"`
}

// VoiceSessions manages the voice_sessions table. A session is unique per
// (channel, user) and carries the WebRTC peer id; heartbeats refresh
// joined_at without touching the peer id.
type VoiceSessions struct {
	db *sql.DB
}

func NewVoiceSessions(db *sql.DB) *VoiceSessions {
	return &VoiceSessions{db: db}
}

const voicePurgeSQL = `DELETE FROM voice_sessions WHERE joined_at < $1`

// Join upserts the session for (channel, user), taking the new peer id.
func (v *VoiceSessions) Join(ctx context.Context, channelID, userID, peerID string) error {
	purge(ctx, v.db, voicePurgeSQL, cutoffNow(VoiceWindow))

	_, err := v.db.ExecContext(ctx, `
		INSERT INTO voice_sessions (channel_id, user_id, peer_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, user_id)
		DO UPDATE SET peer_id = $3, joined_at = NOW()`,
		channelID, userID, peerID)
	if err != nil {
		return fmt.Errorf("voice: join: %w", err)
	}
	return nil
}

// Leave removes the session unconditionally.
func (v *VoiceSessions) Leave(ctx context.Context, channelID, userID string) error {
	_, err := v.db.ExecContext(ctx,
		`DELETE FROM voice_sessions WHERE channel_id = $1 AND user_id = $2`,
		channelID, userID)
	if err != nil {
		return fmt.Errorf("voice: leave: %w", err)
	}
	return nil
}

// Refresh keeps the session alive without recreating it, so a heartbeat can
// never reset the peer id.
func (v *VoiceSessions) Refresh(ctx context.Context, channelID, userID string) error {
	_, err := v.db.ExecContext(ctx,
		`UPDATE voice_sessions SET joined_at = NOW() WHERE channel_id = $1 AND user_id = $2`,
		channelID, userID)
	if err != nil {
		return fmt.Errorf("voice: refresh: %w", err)
	}
	return nil
}

// GuildVoice lists live participants for every voice channel of a guild.
func (v *VoiceSessions) GuildVoice(ctx context.Context, guildID string) ([]ChannelUsers, error) {
	purge(ctx, v.db, voicePurgeSQL, cutoffNow(VoiceWindow))

	rows, err := v.db.QueryContext(ctx, `
		SELECT vs.channel_id, vs.user_id, u.username
		FROM voice_sessions vs
		JOIN channels c ON vs.channel_id = c.id
		JOIN users u ON vs.user_id = u.id
		WHERE c.guild_id = $1
		ORDER BY vs.joined_at`, guildID)
	if err != nil {
		return nil, fmt.Errorf("voice: guild sessions: %w", err)
	}
	defer rows.Close()

	byChannel := make(map[string][]VoiceUser)
	var order []string
	for rows.Next() {
		var channelID string
		var user VoiceUser
		if err := rows.Scan(&channelID, &user.ID, &user.Username); err != nil {
			return nil, fmt.Errorf("voice: scan: %w", err)
		}
		if _, ok := byChannel[channelID]; !ok {
			order = append(order, channelID)
		}
		byChannel[channelID] = append(byChannel[channelID], user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voice: rows: %w", err)
	}

	out := make([]ChannelUsers, 0, len(order))
	for _, channelID := range order {
		out = append(out, ChannelUsers{ChannelID: channelID, Users: byChannel[channelID]})
	}
	return out, nil
}
