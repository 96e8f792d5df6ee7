package syncstate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Category of a completable item. Singles land in the grow-only set,
// repeatables (chain chapter completions included) in the counters.
type Category string

const (
	CategorySingle     Category = "single"
	CategoryRepeatable Category = "repeatable"
	// CategoryChain marks chain chapter completions; they count as
	// repeatables locally and are additionally pushed through the chain
	// completion endpoint with the queued idempotency key.
	CategoryChain Category = "chain"
)

// Op is one queued local completion awaiting acknowledgment by the server.
type Op struct {
	Category       Category  `json:"category"`
	ItemID         string    `json:"item_id"`
	Day            string    `json:"day"`
	IdempotencyKey string    `json:"idempotency_key"`
	QueuedAt       time.Time `json:"queued_at"`
}

// Cache holds per-day progress plus the pending operation queue. All
// methods are safe for concurrent use, though a device normally drives it
// from one goroutine.
type Cache struct {
	mu       sync.Mutex
	holderID string
	days     map[string]DayProgress
	pending  []Op
	dirty    chan struct{}
}

func NewCache(holderID string) *Cache {
	return &Cache{
		holderID: holderID,
		days:     make(map[string]DayProgress),
		dirty:    make(chan struct{}, 1),
	}
}

func (c *Cache) HolderID() string { return c.holderID }

// Dirty signals once per batch of local changes; the reconciler debounces
// on it.
func (c *Cache) Dirty() <-chan struct{} { return c.dirty }

// Day returns a copy of the cached state for a day.
func (c *Cache) Day(day string) DayProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.days[day]
	if !ok {
		return NewDayProgress()
	}
	return Clone(p)
}

// Adopt replaces the cached state for a day (after a reconcile).
func (c *Cache) Adopt(day string, p DayProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[day] = Clone(p)
}

// Queue records a completion made now, possibly offline: it applies the
// change to the in-memory day state immediately and appends a pending op
// carrying a deterministic idempotency key.
func (c *Cache) Queue(category Category, itemID string, now time.Time) Op {
	day := now.UTC().Format("2006-01-02")
	op := Op{
		Category:       category,
		ItemID:         itemID,
		Day:            day,
		IdempotencyKey: IdempotencyKey(c.holderID, day, string(category), itemID, now.UnixNano()),
		QueuedAt:       now,
	}

	c.mu.Lock()
	p, ok := c.days[day]
	if !ok {
		p = NewDayProgress()
	}
	switch category {
	case CategorySingle:
		p.Singles[itemID] = struct{}{}
	default:
		p.Repeatables[itemID]++
	}
	c.days[day] = p
	c.pending = append(c.pending, op)
	c.mu.Unlock()

	select {
	case c.dirty <- struct{}{}:
	default:
	}
	return op
}

// Pending returns a snapshot of the queued ops.
func (c *Cache) Pending() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Op, len(c.pending))
	copy(out, c.pending)
	return out
}

// Ack drops acknowledged ops from the queue, matched by idempotency key.
func (c *Cache) Ack(keys ...string) {
	if len(keys) == 0 {
		return
	}
	acked := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		acked[k] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.pending[:0]
	for _, op := range c.pending {
		if _, ok := acked[op.IdempotencyKey]; !ok {
			kept = append(kept, op)
		}
	}
	c.pending = kept
}

// Restore loads previously persisted state (day progress plus unpushed
// ops) into the cache.
func (c *Cache) Restore(day string, p DayProgress, pending []Op) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[day] = Clone(p)
	c.pending = append(c.pending, pending...)
}

// IdempotencyKey derives the retry-safe completion token. The local
// timestamp distinguishes repeated completions of the same repeatable item
// within a day.
func IdempotencyKey(holderID, day, category, itemID string, localNano int64) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s|%d", holderID, day, category, itemID, localNano))
	return hex.EncodeToString(h[:])
}
