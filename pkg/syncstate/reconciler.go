package syncstate

import (
	"context"
	"sync"
	"time"
)

// Remote is the server side of the reconciliation protocol. The HTTP
// implementation lives in client.go; tests swap in a fake.
type Remote interface {
	// Fetch returns the server's state for a day.
	Fetch(ctx context.Context, day string) (DayProgress, error)
	// Push sends merged state; the server merges again and returns its
	// resulting state.
	Push(ctx context.Context, day string, p DayProgress) (DayProgress, error)
	// CompleteChapter forwards a queued chain completion with its
	// idempotency key. Safe to retry.
	CompleteChapter(ctx context.Context, op Op) error
}

// Reconciler drives the local cache toward convergence with the server:
// fetch remote, merge, push back anything the server has not seen, adopt
// the merged state. Triggers (login, reconnect, debounced local edits,
// periodic timer) can fire concurrently; a mutex serializes actual runs
// and the merge makes repeats harmless.
type Reconciler struct {
	cache    *Cache
	store    *Store
	remote   Remote
	debounce time.Duration

	runMu sync.Mutex

	stopOnce sync.Once
	stop     chan struct{}
}

type ReconcilerOption func(*Reconciler)

func WithDebounce(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.debounce = d }
}

func NewReconciler(cache *Cache, store *Store, remote Remote, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		cache:    cache,
		store:    store,
		remote:   remote,
		debounce: 3 * time.Second,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background loop that watches for local edits and
// reconciles after the debounce window. Call Stop to end it.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-r.cache.Dirty():
				// Batch rapid successive completions into one push.
				if timer == nil {
					timer = time.NewTimer(r.debounce)
					fire = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(r.debounce)
				}
			case <-fire:
				timer = nil
				fire = nil
				_ = r.SyncDay(ctx, today())
			}
		}
	}()
}

func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// SyncDay runs one full reconciliation pass for a day. Errors leave the
// pending queue untouched; the next trigger retries.
func (r *Reconciler) SyncDay(ctx context.Context, day string) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	// Flush queued chain completions first so the server's ledgers see
	// them before stats are read back.
	var acked []string
	for _, op := range r.cache.Pending() {
		if op.Category != CategoryChain {
			continue
		}
		if err := r.remote.CompleteChapter(ctx, op); err != nil {
			// Stays queued; retried on the next trigger.
			continue
		}
		acked = append(acked, op.IdempotencyKey)
	}
	r.cache.Ack(acked...)

	local := r.cache.Day(day)
	remote, err := r.remote.Fetch(ctx, day)
	if err != nil {
		return err
	}
	merged := Merge(local, remote)
	if !Equal(merged, remote) {
		// The server is missing locally-made progress; push the merge.
		merged, err = r.remote.Push(ctx, day, merged)
		if err != nil {
			return err
		}
		merged = Merge(merged, local)
	}
	r.cache.Adopt(day, merged)

	// Non-chain ops are covered by the day-state push.
	var rest []string
	for _, op := range r.cache.Pending() {
		if op.Category != CategoryChain && op.Day == day {
			rest = append(rest, op.IdempotencyKey)
		}
	}
	r.cache.Ack(rest...)

	if r.store != nil {
		return r.store.Save(day, r.cache.Day(day), r.cache.Pending())
	}
	return nil
}

// Persist writes the current cache state for a day without a network
// round-trip, so local completions survive a process exit while offline.
func (r *Reconciler) Persist(day string) error {
	if r.store == nil {
		return nil
	}
	return r.store.Save(day, r.cache.Day(day), r.cache.Pending())
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
