package ephemeral

// These tests exercise the real SQL against a scratch database. They skip
// unless WRYFT_TEST_DATABASE_URL points at a Postgres instance the suite may
// freely create tables in, e.g.
//
//	WRYFT_TEST_DATABASE_URL=postgres://localhost/wryft_test?sslmode=disable go test ./internal/ephemeral/

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

const (
	testAlice = "11111111-1111-1111-1111-111111111111"
	testBob   = "22222222-2222-2222-2222-222222222222"
)

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		username text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS typing_indicators (
		channel_id text NOT NULL,
		user_id uuid NOT NULL,
		username text NOT NULL,
		started_at timestamptz NOT NULL DEFAULT NOW(),
		PRIMARY KEY (channel_id, user_id))`,
	`CREATE TABLE IF NOT EXISTS dm_typing_indicators (
		dm_id text NOT NULL,
		user_id uuid NOT NULL,
		username text NOT NULL,
		started_at timestamptz NOT NULL DEFAULT NOW(),
		PRIMARY KEY (dm_id, user_id))`,
	`CREATE TABLE IF NOT EXISTS channels (
		id text PRIMARY KEY,
		guild_id text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS voice_sessions (
		channel_id text NOT NULL,
		user_id uuid NOT NULL,
		peer_id text NOT NULL,
		joined_at timestamptz NOT NULL DEFAULT NOW(),
		PRIMARY KEY (channel_id, user_id))`,
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("WRYFT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WRYFT_TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	for _, stmt := range testSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema setup failed: %v", err)
		}
	}
	for _, table := range []string{"voice_sessions", "typing_indicators", "dm_typing_indicators", "channels", "users"} {
		if _, err := db.Exec(`TRUNCATE TABLE ` + table); err != nil {
			t.Fatalf("truncate %s failed: %v", table, err)
		}
	}

	if _, err := db.Exec(`INSERT INTO users (id, username) VALUES ($1, 'alice'), ($2, 'bob')`,
		testAlice, testBob); err != nil {
		t.Fatalf("seed users failed: %v", err)
	}
	return db
}

func typistIDs(typists []Typist) []string {
	out := make([]string, len(typists))
	for i, typist := range typists {
		out[i] = typist.UserID
	}
	return out
}

func TestTypingStartStopList(t *testing.T) {
	db := testDB(t)
	typing := NewChannelTyping(db)
	ctx := context.Background()

	if err := typing.Start(ctx, "c1", testAlice); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}

	typists, err := typing.List(ctx, "c1")
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	if len(typists) != 1 || typists[0].UserID != testAlice || typists[0].Username != "alice" {
		t.Fatalf("List() = %v; want alice", typists)
	}

	if got, err := typing.List(ctx, "c2"); err != nil || len(got) != 0 {
		t.Fatalf("List(other channel) = %v, %v; want empty", got, err)
	}

	if err := typing.Stop(ctx, "c1", testAlice); err != nil {
		t.Fatalf("Stop() = %v; want nil", err)
	}
	if got, _ := typing.List(ctx, "c1"); len(got) != 0 {
		t.Fatalf("List() after Stop() = %v; want empty", got)
	}

	// Stop is idempotent.
	if err := typing.Stop(ctx, "c1", testAlice); err != nil {
		t.Fatalf("second Stop() = %v; want nil", err)
	}
}

func TestTypingExpiresAfterWindow(t *testing.T) {
	db := testDB(t)
	typing := NewChannelTyping(db)
	ctx := context.Background()

	if err := typing.Start(ctx, "c1", testAlice); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	if err := typing.Start(ctx, "c1", testBob); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}

	// Backdate alice just inside the window and bob just outside it.
	backdate := func(userID string, age time.Duration) {
		if _, err := db.Exec(
			`UPDATE typing_indicators SET started_at = NOW() - make_interval(secs => $1) WHERE user_id = $2`,
			age.Seconds(), userID); err != nil {
			t.Fatalf("backdate failed: %v", err)
		}
	}
	backdate(testAlice, 9*time.Second)
	backdate(testBob, 11*time.Second)

	typists, err := typing.List(ctx, "c1")
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	ids := typistIDs(typists)
	if len(ids) != 1 || ids[0] != testAlice {
		t.Fatalf("List() = %v; want only alice", ids)
	}
}

func TestTypingRestartRefreshesWindow(t *testing.T) {
	db := testDB(t)
	typing := NewChannelTyping(db)
	ctx := context.Background()

	if err := typing.Start(ctx, "c1", testAlice); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	if _, err := db.Exec(
		`UPDATE typing_indicators SET started_at = NOW() - interval '9 seconds' WHERE user_id = $1`,
		testAlice); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	// Re-typing upserts a fresh timestamp on the same row.
	if err := typing.Start(ctx, "c1", testAlice); err != nil {
		t.Fatalf("restart = %v; want nil", err)
	}

	var age float64
	if err := db.QueryRow(
		`SELECT EXTRACT(EPOCH FROM NOW() - started_at) FROM typing_indicators WHERE user_id = $1`,
		testAlice).Scan(&age); err != nil {
		t.Fatalf("age query failed: %v", err)
	}
	if age > 5 {
		t.Fatalf("row age after restart = %.1fs; want fresh", age)
	}
}

func TestTypingStartUnknownUserFails(t *testing.T) {
	db := testDB(t)
	typing := NewChannelTyping(db)

	err := typing.Start(context.Background(), "c1", "33333333-3333-3333-3333-333333333333")
	if err == nil {
		t.Fatal("Start() for unknown user = nil; want error")
	}
}

func TestDMTypingUsesItsOwnTable(t *testing.T) {
	db := testDB(t)
	channelTyping := NewChannelTyping(db)
	dmTyping := NewDMTyping(db)
	ctx := context.Background()

	if err := dmTyping.Start(ctx, "dm1", testAlice); err != nil {
		t.Fatalf("Start() = %v; want nil", err)
	}
	if got, _ := channelTyping.List(ctx, "dm1"); len(got) != 0 {
		t.Fatalf("channel List() sees DM rows: %v", got)
	}
	typists, err := dmTyping.List(ctx, "dm1")
	if err != nil || len(typists) != 1 {
		t.Fatalf("dm List() = %v, %v; want alice", typists, err)
	}
}

func TestVoiceJoinRefreshLeave(t *testing.T) {
	db := testDB(t)
	voice := NewVoiceSessions(db)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO channels (id, guild_id) VALUES ('vc1', 'g1')`); err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}

	if err := voice.Join(ctx, "vc1", testAlice, "peer-a"); err != nil {
		t.Fatalf("Join() = %v; want nil", err)
	}

	channels, err := voice.GuildVoice(ctx, "g1")
	if err != nil {
		t.Fatalf("GuildVoice() = %v; want nil", err)
	}
	if len(channels) != 1 || channels[0].ChannelID != "vc1" || len(channels[0].Users) != 1 {
		t.Fatalf("GuildVoice() = %v; want alice in vc1", channels)
	}
	if channels[0].Users[0].Username != "alice" {
		t.Fatalf("participant = %+v; want alice", channels[0].Users[0])
	}

	// Refresh keeps the session alive without touching the peer id.
	if _, err := db.Exec(
		`UPDATE voice_sessions SET joined_at = NOW() - interval '29 seconds' WHERE user_id = $1`,
		testAlice); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}
	if err := voice.Refresh(ctx, "vc1", testAlice); err != nil {
		t.Fatalf("Refresh() = %v; want nil", err)
	}
	var peerID string
	var age float64
	if err := db.QueryRow(
		`SELECT peer_id, EXTRACT(EPOCH FROM NOW() - joined_at) FROM voice_sessions WHERE user_id = $1`,
		testAlice).Scan(&peerID, &age); err != nil {
		t.Fatalf("session query failed: %v", err)
	}
	if peerID != "peer-a" {
		t.Fatalf("peer_id after Refresh() = %q; want peer-a", peerID)
	}
	if age > 5 {
		t.Fatalf("session age after Refresh() = %.1fs; want fresh", age)
	}

	if err := voice.Leave(ctx, "vc1", testAlice); err != nil {
		t.Fatalf("Leave() = %v; want nil", err)
	}
	if channels, _ := voice.GuildVoice(ctx, "g1"); len(channels) != 0 {
		t.Fatalf("GuildVoice() after Leave() = %v; want empty", channels)
	}
}

func TestVoiceSessionExpiresAfterWindow(t *testing.T) {
	db := testDB(t)
	voice := NewVoiceSessions(db)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO channels (id, guild_id) VALUES ('vc1', 'g1')`); err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}
	if err := voice.Join(ctx, "vc1", testAlice, "peer-a"); err != nil {
		t.Fatalf("Join() = %v; want nil", err)
	}
	if _, err := db.Exec(
		`UPDATE voice_sessions SET joined_at = NOW() - interval '31 seconds' WHERE user_id = $1`,
		testAlice); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	channels, err := voice.GuildVoice(ctx, "g1")
	if err != nil {
		t.Fatalf("GuildVoice() = %v; want nil", err)
	}
	if len(channels) != 0 {
		t.Fatalf("GuildVoice() = %v; want stale session swept", channels)
	}
}
