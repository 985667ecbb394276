package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/vijayg2124/affilink-performance-hub/internal/metrics"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
	"github.com/vijayg2124/affilink-performance-hub/internal/storage"
	"go.uber.org/zap"
)

// DefaultRefreshInterval matches the dashboard's polling cadence.
const DefaultRefreshInterval = 30 * time.Second

// RefresherConfig configures one dashboard refresh loop.
type RefresherConfig struct {
	// UserID scopes every fetch to one tenant's links.
	UserID string
	// Window is how far back the event fetch reaches (e.g. 30 days).
	Window time.Duration
	// Interval between timer-driven refreshes. Defaults to
	// DefaultRefreshInterval.
	Interval time.Duration
	// Options bounds the snapshot sections.
	Options Options
}

// Refresher owns the current AggregateSnapshot for one user. It recomputes
// the snapshot from scratch on each trigger (initial load, interval timer,
// change notification) and keeps the last-known-good snapshot when a fetch
// fails. Stale responses never overwrite fresher ones: each cycle carries a
// generation number and only the newest generation is applied.
type Refresher struct {
	source   storage.EventSource
	notifier notify.Notifier
	cache    *SnapshotCache
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cfg      RefresherConfig

	kick chan struct{}

	mu          sync.RWMutex
	snapshot    Snapshot
	refreshedAt time.Time
	hasData     bool
	generation  uint64
	applied     uint64
}

// NewRefresher creates a refresh loop. notifier, cache and m may be nil.
func NewRefresher(
	source storage.EventSource,
	notifier notify.Notifier,
	cache *SnapshotCache,
	cfg RefresherConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultRefreshInterval
	}
	return &Refresher{
		source:   source,
		notifier: notifier,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		kick:     make(chan struct{}, 1),
	}
}

// Snapshot returns the current snapshot and whether any refresh has
// succeeded yet.
func (r *Refresher) Snapshot() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot, r.hasData
}

// RefreshedAt returns when the current snapshot was computed.
func (r *Refresher) RefreshedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}

// Refresh runs one fetch+aggregate cycle. On fetch failure the previous
// snapshot is preserved and the error returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	start := time.Now()
	since := start.Add(-r.cfg.Window)

	events, err := r.source.FetchClicks(ctx, r.cfg.UserID, since)
	if err != nil {
		r.logger.Warn("event fetch failed, keeping last snapshot",
			zap.String("user_id", r.cfg.UserID),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordRefresh("error", time.Since(start))
		}
		return err
	}

	snap := Aggregate(events, r.cfg.Options)

	r.mu.Lock()
	applied := false
	if gen > r.applied {
		r.snapshot = snap
		r.refreshedAt = time.Now()
		r.hasData = true
		r.applied = gen
		applied = true
	}
	r.mu.Unlock()

	if !applied {
		// A newer cycle finished first; this result is stale.
		return nil
	}

	if r.metrics != nil {
		r.metrics.RecordRefresh("ok", time.Since(start))
		r.metrics.SetSnapshotTotals(snap.TotalClicks, snap.TotalRevenue)
	}

	if r.cache != nil {
		if err := r.cache.Store(ctx, snap); err != nil {
			r.logger.Warn("failed to mirror snapshot", zap.Error(err))
		}
	}

	r.logger.Debug("snapshot refreshed",
		zap.String("user_id", r.cfg.UserID),
		zap.Int64("total_clicks", snap.TotalClicks),
		zap.Float64("total_revenue", snap.TotalRevenue),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Run drives the refresh loop until ctx is cancelled: one initial refresh,
// then the interval timer plus coalesced change notifications. Cancelling
// ctx releases the timer and the subscription.
func (r *Refresher) Run(ctx context.Context) error {
	// Last-known-good from a previous process, until the first fetch lands.
	if r.cache != nil {
		if snap, ok, err := r.cache.Load(ctx); err != nil {
			r.logger.Warn("failed to load mirrored snapshot", zap.Error(err))
		} else if ok {
			r.mu.Lock()
			if !r.hasData {
				r.snapshot = snap
				r.refreshedAt = time.Now()
				r.hasData = true
			}
			r.mu.Unlock()
		}
	}

	var cancelSub func()
	if r.notifier != nil {
		var err error
		cancelSub, err = r.notifier.Subscribe(ctx, func(stream string) {
			if r.metrics != nil {
				r.metrics.RecordNotification(stream)
			}
			select {
			case r.kick <- struct{}{}:
			default:
			}
		})
		if err != nil {
			r.logger.Warn("change subscription unavailable, timer only", zap.Error(err))
		}
	}
	if cancelSub != nil {
		defer cancelSub()
	}

	if err := r.Refresh(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = r.Refresh(ctx)
		case <-r.kick:
			_ = r.Refresh(ctx)
		}
	}
}
