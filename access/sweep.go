/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package access

import (
	"context"
	"time"
)

const DefaultSweepInterval = 10 * time.Second

// SweepResult describes what a sweep removed.
type SweepResult struct {
	Reset   bool // the publisher slot expired and the store was reset
	Evicted int  // viewer sessions removed for inactivity
}

// Sweep enforces the per-status TTLs. An expired publisher slot resets the
// whole store; otherwise each expired viewer session is removed.
func (s *Store) Sweep() SweepResult {
	s.mu.Lock()

	now := s.now()

	if expired(s.publisher.Status.TTL(), s.publisher.LastActivity, now) {
		s.logf("SWEEP: Publisher slot expired while %s", s.publisher.Status)
		s.resetLocked()
		s.mu.Unlock()

		s.runResetHooks()

		return SweepResult{Reset: true}
	}

	var result SweepResult
	for identity, bucket := range s.viewers {
		for token, v := range bucket {
			if expired(v.Status.TTL(), v.LastActivity, now) {
				s.logf("SWEEP: Removed %s session (%s, %s)", v.Status, identity, token)
				s.removeLocked(identity, token)
				result.Evicted++
			}
		}
	}

	s.mu.Unlock()

	return result
}

// Run sweeps every interval until ctx is cancelled. report, if non-nil,
// receives each result.
func (s *Store) Run(ctx context.Context, interval time.Duration, report func(SweepResult)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := s.Sweep()
			if report != nil {
				report(result)
			}
		}
	}
}
