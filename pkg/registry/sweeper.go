package registry

import (
	"context"
	"time"
)

// Sweeper periodically evicts devices that have gone quiet, mirroring the
// stale-connection reaper pattern used elsewhere in this codebase.
type Sweeper struct {
	registry *Registry
	maxAge   time.Duration
	interval time.Duration
	onEvict  func(ids []string)
}

// NewSweeper returns a sweeper that evicts devices unseen for maxAge,
// checking every interval. onEvict may be nil.
func NewSweeper(r *Registry, maxAge, interval time.Duration, onEvict func(ids []string)) *Sweeper {
	return &Sweeper{registry: r, maxAge: maxAge, interval: interval, onEvict: onEvict}
}

// Run blocks, sweeping on a ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evicted := s.registry.EvictStale(s.maxAge)
			if len(evicted) > 0 && s.onEvict != nil {
				s.onEvict(evicted)
			}
		}
	}
}
