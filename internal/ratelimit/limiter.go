// Package ratelimit gates bursty input with a per-user last-seen timestamp.
// A user is throttled when their previous accepted message is closer than the
// configured window. The check and the timestamp update are one atomic step,
// so two near-simultaneous events from the same user cannot both pass.
package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultWindow  = 3 * time.Second
	defaultIdleTTL = time.Hour
	shardCount     = 16
)

type shard struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// Limiter is a sharded lock table: userID → last accepted timestamp.
// Entries for idle users are pruned by Run to bound memory growth.
type Limiter struct {
	window  time.Duration
	idleTTL time.Duration
	shards  [shardCount]*shard
	logger  *slog.Logger
}

// New creates a Limiter. window <= 0 uses the 3s default; idleTTL <= 0 uses 1h.
func New(window, idleTTL time.Duration, logger *slog.Logger) *Limiter {
	if window <= 0 {
		window = defaultWindow
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	l := &Limiter{window: window, idleTTL: idleTTL, logger: logger}
	for i := range l.shards {
		l.shards[i] = &shard{lastSeen: make(map[string]time.Time)}
	}
	return l
}

// Admit reports whether a message from userID at the given instant may
// proceed. On admission the user's timestamp is set before returning; on
// throttle nothing is mutated. This operation cannot fail, only branch.
func (l *Limiter) Admit(userID string, now time.Time) bool {
	s := l.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSeen[userID]; ok && now.Sub(last) < l.window {
		return false
	}
	s.lastSeen[userID] = now
	return true
}

// Run prunes idle entries until ctx is cancelled. Without the sweep the
// table holds one entry per user forever.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.idleTTL / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.prune(now.Add(-l.idleTTL)); n > 0 {
				l.logger.Debug("pruned idle rate-limit entries", "count", n)
			}
		}
	}
}

// prune removes entries last seen before cutoff and returns how many.
func (l *Limiter) prune(cutoff time.Time) int {
	var removed int
	for _, s := range l.shards {
		s.mu.Lock()
		for id, last := range s.lastSeen {
			if last.Before(cutoff) {
				delete(s.lastSeen, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (l *Limiter) shard(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return l.shards[h.Sum32()%shardCount]
}
