// Package gc removes partial files left behind by interrupted writes.
//
// A content store that writes through temporary files leaves them behind
// when the daemon dies mid-write:
//   - process killed while a large file is being written
//   - disk full between write and rename
//   - host crash
//
// The collector works with any content store that implements
// content.GarbageCollectableStore.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/store/content"
)

// Collector periodically deletes stale partial files.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	store  content.GarbageCollectableStore
	config Config
	log    *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether periodic collection runs (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is how often to run collection (default: 1h)
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"min=0"`

	// MinAge is how old a partial file must be before it is collected, so
	// writes in progress are never touched (default: 1h)
	MinAge time.Duration `mapstructure:"min_age" yaml:"min_age" validate:"min=0"`

	// BatchSize is how many files to delete per batch (default: 1000)
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"min=0"`

	// DryRun logs what would be deleted without deleting it
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// ApplyDefaults fills zero durations and sizes.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = time.Hour
	}
	if c.MinAge == 0 {
		c.MinAge = time.Hour
	}
	if c.BatchSize == 0 {
		c.BatchSize = 1000
	}
}

// NewCollector creates a stopped collector. It fails when store cannot
// list partial files. A nil log uses the process default logger.
func NewCollector(store content.ContentStore, config Config, log *logger.Logger) (*Collector, error) {
	gcStore, ok := store.(content.GarbageCollectableStore)
	if !ok {
		return nil, fmt.Errorf("content store does not implement GarbageCollectableStore interface")
	}

	config.ApplyDefaults()
	if log == nil {
		log = logger.Default()
	}

	return &Collector{
		store:  gcStore,
		config: config,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start runs one collection immediately and then one per Interval, in the
// background. Later calls are no-ops.
func (c *Collector) Start() {
	if !c.config.Enabled {
		c.log.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		c.log.Info("Starting garbage collector: interval=%s min_age=%s dry_run=%v",
			c.config.Interval, c.config.MinAge, c.config.DryRun)
		go c.worker()
	})
}

// Stop stops the worker and waits for a collection in progress to finish
// or ctx to expire. Safe to call more than once. A stopped collector cannot
// be started again.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	// Never started: there is no worker to close doneCh.
	c.startOnce.Do(func() { close(c.doneCh) })

	select {
	case <-c.doneCh:
		c.log.Debug("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		c.log.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one collection and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		go func() {
			select {
			case <-c.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		stats, err := c.collect(ctx)
		cancel()

		if err != nil {
			c.log.Error("Garbage collection failed: %v", err)
		} else if stats.PartialCount > 0 {
			c.log.Info("Garbage collection completed: %s", stats.Summary())
		}

		select {
		case <-ticker.C:
		case <-c.stopCh:
			return
		}
	}
}

// collect lists partial files older than MinAge and deletes them in
// batches.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	partial, err := c.store.ListPartial(ctx, stats.StartTime.Add(-c.config.MinAge))
	if err != nil {
		return stats, fmt.Errorf("failed to list partial files: %w", err)
	}
	stats.PartialCount = uint64(len(partial))

	if len(partial) == 0 {
		return stats, nil
	}

	if c.config.DryRun {
		c.log.Info("GC: DRY RUN - would delete %d partial file(s)", len(partial))
		for i, p := range partial {
			if i == 10 {
				c.log.Info("  ... and %d more", len(partial)-10)
				break
			}
			c.log.Info("  - %s", p)
		}
		return stats, nil
	}

	for i := 0; i < len(partial); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		batch := partial[i:min(i+c.config.BatchSize, len(partial))]

		failures, err := c.store.DeleteBatch(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("failed to delete batch: %w", err)
		}

		stats.DeletedCount += uint64(len(batch) - len(failures))
		stats.FailedCount += uint64(len(failures))
		for p, ferr := range failures {
			c.log.Debug("GC: Failed to delete %s: %v", p, ferr)
		}
	}

	return stats, nil
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime    time.Time
	EndTime      time.Time
	PartialCount uint64 // stale partial files found
	DeletedCount uint64
	FailedCount  uint64
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("partial=%d deleted=%d failed=%d duration=%s",
		s.PartialCount, s.DeletedCount, s.FailedCount, s.Duration())
}
