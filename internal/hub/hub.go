package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// DefaultTopicBuffer is the per-subscriber buffered message capacity.
	DefaultTopicBuffer = 100
	// DefaultMaxPerUser caps concurrent connections per identity.
	DefaultMaxPerUser = 5
	// DefaultReapInterval is how often idle topics are swept.
	DefaultReapInterval = 5 * time.Minute
)

var (
	publishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wryft_hub_messages_published_total",
		Help: "Messages published to topics.",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wryft_hub_messages_dropped_total",
		Help: "Messages dropped because a subscriber buffer was full.",
	})
	openConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wryft_hub_subscribers",
		Help: "Currently registered subscribers.",
	})
	liveTopics = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wryft_hub_topics",
		Help: "Currently registered topics.",
	})
)

// Options configures a Hub. Zero values fall back to the defaults above.
type Options struct {
	TopicBuffer  int
	MaxPerUser   int
	ReapInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.TopicBuffer <= 0 {
		o.TopicBuffer = DefaultTopicBuffer
	}
	if o.MaxPerUser <= 0 {
		o.MaxPerUser = DefaultMaxPerUser
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = DefaultReapInterval
	}
	return o
}

type topic struct {
	subscribers map[int64]chan string
}

// Hub fans out messages to topic subscribers and enforces per-identity
// connection budgets. It is an explicitly-constructed service object; tests
// instantiate isolated hubs.
type Hub struct {
	opts Options

	mu      sync.RWMutex
	topics  map[string]*topic
	budgets map[string]int

	nextID atomic.Int64
}

// Subscription is one client's attachment to a topic. Receive on C; slow
// consumers have their oldest buffered messages dropped.
type Subscription struct {
	ID    int64
	Topic string
	C     <-chan string

	ch chan string
}

// New creates a hub.
func New(opts Options) *Hub {
	return &Hub{
		opts:    opts.withDefaults(),
		topics:  make(map[string]*topic),
		budgets: make(map[string]int),
	}
}

// Subscribe attaches a new subscriber to the named topic, creating the topic
// if it does not exist. Concurrent callers for the same name observe a single
// topic.
func (h *Hub) Subscribe(name string) *Subscription {
	id := h.nextID.Add(1)
	ch := make(chan string, h.opts.TopicBuffer)

	h.mu.Lock()
	t, ok := h.topics[name]
	if !ok {
		t = &topic{subscribers: make(map[int64]chan string)}
		h.topics[name] = t
		liveTopics.Inc()
	}
	t.subscribers[id] = ch
	h.mu.Unlock()

	openConnections.Inc()
	return &Subscription{ID: id, Topic: name, C: ch, ch: ch}
}

// Unsubscribe detaches a subscriber and closes its channel. The topic itself
// is left registered; idle topics are removed by the periodic reap so that a
// quick reconnect finds the topic still in place.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if t, ok := h.topics[sub.Topic]; ok {
		if ch, ok := t.subscribers[sub.ID]; ok {
			delete(t.subscribers, sub.ID)
			close(ch)
			openConnections.Dec()
		}
	}
	h.mu.Unlock()
}

// Publish delivers payload to every current subscriber of the named topic.
// Delivery is at-most-once: when a subscriber's buffer is full, its oldest
// buffered message is dropped to make room. Unknown topics are a no-op.
func (h *Hub) Publish(name, payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.topics[name]
	if !ok {
		return
	}
	publishedTotal.Inc()
	for _, ch := range t.subscribers {
		send(ch, payload)
	}
}

// BroadcastAll publishes payload to every registered topic.
func (h *Hub) BroadcastAll(payload string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.topics) == 0 {
		return
	}
	publishedTotal.Inc()
	for _, t := range h.topics {
		for _, ch := range t.subscribers {
			send(ch, payload)
		}
	}
}

// send is non-blocking. A full buffer sheds the oldest message first so the
// subscriber keeps the most recent view of the topic.
func send(ch chan string, payload string) {
	select {
	case ch <- payload:
		return
	default:
	}
	select {
	case <-ch:
		droppedTotal.Inc()
	default:
	}
	select {
	case ch <- payload:
	default:
		droppedTotal.Inc()
	}
}

// Admit reserves a connection slot for identity. It returns false when the
// identity is already at its cap; existing connections are unaffected.
func (h *Hub) Admit(identity string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.budgets[identity] >= h.opts.MaxPerUser {
		return false
	}
	h.budgets[identity]++
	return true
}

// Release returns a connection slot. The budget entry is removed entirely
// when it reaches zero and never goes negative.
func (h *Hub) Release(identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.budgets[identity]
	if !ok {
		return
	}
	if n <= 1 {
		delete(h.budgets, identity)
		return
	}
	h.budgets[identity] = n - 1
}

// Connections reports the current budget usage for identity.
func (h *Hub) Connections(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.budgets[identity]
}

// SubscriberCount returns the number of subscribers on a topic, or zero if
// the topic is not registered.
func (h *Hub) SubscriberCount(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if t, ok := h.topics[name]; ok {
		return len(t.subscribers)
	}
	return 0
}

// TopicCount returns the number of registered topics.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// Run sweeps idle topics until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.reapOnce(); n > 0 {
				slog.Debug("hub reaped idle topics", "count", n)
			}
		}
	}
}

// reapOnce removes every topic that currently has zero subscribers and
// returns how many were removed.
func (h *Hub) reapOnce() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for name, t := range h.topics {
		if len(t.subscribers) == 0 {
			delete(h.topics, name)
			liveTopics.Dec()
			removed++
		}
	}
	return removed
}
