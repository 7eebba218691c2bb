package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Warehouser-dev/wryft-chat/internal/ws"
)

const (
	// StalenessWindow forces effective status to offline when last_seen is
	// older than this. Deliberately shorter than CacheTTL so a cached
	// "online" entry expires close to when the staleness rule would judge
	// it offline anyway, and longer than the expected client heartbeat
	// interval so a single missed heartbeat does not flip a user offline.
	StalenessWindow = 60 * time.Second
	// CacheTTL is attached to every cache write.
	CacheTTL = 90 * time.Second
	// BulkLimit caps ids per bulk request.
	BulkLimit = 100
)

var (
	ErrInvalidStatus = errors.New("presence: invalid status")
	ErrTooManyIDs    = fmt.Errorf("presence: bulk request exceeds %d ids", BulkLimit)
)

// Broadcaster publishes a payload to every live topic.
type Broadcaster interface {
	BroadcastAll(payload string)
}

// Engine derives effective presence and orchestrates store, cache and
// broadcast. The cache may be nil; cache failures are logged and swallowed,
// store failures are returned to the caller.
type Engine struct {
	store Store
	cache Cache
	bus   Broadcaster

	now func() time.Time
}

func NewEngine(store Store, cache Cache, bus Broadcaster) *Engine {
	return &Engine{store: store, cache: cache, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// SetPresence persists a status change, mirrors it to the cache and
// broadcasts a presence_update to all topics.
func (e *Engine) SetPresence(ctx context.Context, userID, status string) (Record, error) {
	if !ValidStatus(status) {
		return Record{}, ErrInvalidStatus
	}
	now := e.now()
	if err := e.store.Upsert(ctx, userID, status, now); err != nil {
		return Record{}, err
	}
	e.cacheSet(ctx, userID, status)
	e.bus.BroadcastAll(ws.PresenceUpdateEvent(userID, status))
	return Record{UserID: userID, Status: status, LastSeen: now}, nil
}

// Heartbeat marks the user online cheaply: no broadcast, same cache
// semantics as SetPresence.
func (e *Engine) Heartbeat(ctx context.Context, userID string) error {
	if err := e.store.Touch(ctx, userID, e.now()); err != nil {
		return err
	}
	e.cacheSet(ctx, userID, StatusOnline)
	return nil
}

// GetPresence reads the stored record and applies the staleness rule. The
// single-user path goes straight to the store; only the bulk path consults
// the cache. A user with no record is offline as of now.
func (e *Engine) GetPresence(ctx context.Context, userID string) (Record, error) {
	rec, found, err := e.store.Get(ctx, userID)
	now := e.now()
	if err != nil {
		return Record{}, err
	}
	if !found {
		return Record{UserID: userID, Status: StatusOffline, LastSeen: now}, nil
	}
	rec.Status = e.effective(rec, now)
	return rec, nil
}

// BulkPresence resolves up to BulkLimit users: one cache lookup, one store
// query for the misses, write-back of the results. The output contains
// exactly one entry per requested id; ids with no record map to offline and
// are cached as offline to spare repeated store round-trips.
func (e *Engine) BulkPresence(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) > BulkLimit {
		return nil, ErrTooManyIDs
	}
	result := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	misses := userIDs
	if e.cache != nil {
		cached, err := e.cache.GetMany(ctx, userIDs)
		if err != nil {
			// A failing cache call is every key missing.
			slog.Warn("presence cache bulk lookup failed", "ids", len(userIDs), "error", err)
		} else {
			misses = make([]string, 0, len(userIDs))
			for _, id := range userIDs {
				if status, ok := cached[id]; ok {
					result[id] = status
				} else {
					misses = append(misses, id)
				}
			}
		}
	}

	if len(misses) > 0 {
		recs, err := e.store.GetMany(ctx, misses)
		if err != nil {
			return nil, err
		}
		now := e.now()
		for _, rec := range recs {
			status := e.effective(rec, now)
			result[rec.UserID] = status
			e.cacheSet(ctx, rec.UserID, status)
		}
		for _, id := range misses {
			if _, ok := result[id]; !ok {
				result[id] = StatusOffline
				e.cacheSet(ctx, id, StatusOffline)
			}
		}
	}

	return result, nil
}

// GuildPresence returns staleness-checked records for every member of a
// guild with a presence row.
func (e *Engine) GuildPresence(ctx context.Context, guildID string) ([]Record, error) {
	recs, err := e.store.GuildPresence(ctx, guildID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for i := range recs {
		recs[i].Status = e.effective(recs[i], now)
	}
	return recs, nil
}

// effective is the pure staleness rule: stored status, unless last_seen is
// outside the window.
func (e *Engine) effective(rec Record, now time.Time) string {
	if now.Sub(rec.LastSeen) > StalenessWindow {
		return StatusOffline
	}
	return rec.Status
}

func (e *Engine) cacheSet(ctx context.Context, userID, status string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, userID, status, CacheTTL); err != nil {
		slog.Warn("presence cache write failed", "user", userID, "error", err)
	}
}
