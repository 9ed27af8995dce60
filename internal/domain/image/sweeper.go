package image

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"blog-image-server/internal/domain/eventbus"
	"blog-image-server/internal/domain/image/index"
	"blog-image-server/internal/platform/logging"
	"blog-image-server/internal/platform/observability"
)

const (
	// DefaultRetention is the age after which generated variants are swept.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultSweepInterval is how often Run sweeps.
	DefaultSweepInterval = 24 * time.Hour
)

// SweeperOptions configures the retention sweeper. Index and Events are optional.
type SweeperOptions struct {
	Dir    string
	Index  index.Store
	Events Publisher
	Logger *logging.Logger
}

// SweeperOption customises a Sweeper.
type SweeperOption func(*Sweeper)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// Sweeper deletes generated variants older than a retention window.
type Sweeper struct {
	dir    string
	index  index.Store
	events Publisher
	logger *logging.Logger
	now    func() time.Time
}

// NewSweeper constructs a sweeper over opts.Dir.
func NewSweeper(opts SweeperOptions, options ...SweeperOption) *Sweeper {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	s := &Sweeper{
		dir:    opts.Dir,
		index:  opts.Index,
		events: opts.Events,
		logger: opts.Logger,
		now:    time.Now,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Sweep removes regular files modified strictly before now-maxAge and returns
// how many were removed. A directory that cannot be listed yields 0.
func (s *Sweeper) Sweep(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.WarnTag("SWEEP", "list %s failed: %v", s.dir, err)
		return 0
	}

	now := s.now()
	cutoff := now.Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.WarnTag("SWEEP", "stat %s failed: %v", entry.Name(), err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		p := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(p); err != nil {
			s.logger.WarnTag("SWEEP", "remove %s failed: %v", p, err)
			continue
		}
		removed++

		if s.index != nil {
			if err := s.index.Remove(ctx, p); err != nil {
				s.logger.WarnTag("INDEX", "unindex %s failed: %v", p, err)
			}
		}
		if s.events != nil {
			s.events.PublishAsync(eventbus.EventArtifactSwept, eventbus.ArtifactSweptEventData{
				Path: p,
				Age:  now.Sub(info.ModTime()),
				At:   now,
			})
		}
	}

	if removed > 0 {
		observability.RecordMetric(ctx, observability.MetricSweepRemoved, float64(removed), nil)
	}
	s.logger.InfoTag("SWEEP", "removed %d artifacts older than %s from %s", removed, maxAge, s.dir)
	return removed
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoTag("SWEEP", "retention sweeper started (interval %s, max age %s)", interval, maxAge)
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoTag("SWEEP", "retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx, maxAge)
		}
	}
}
