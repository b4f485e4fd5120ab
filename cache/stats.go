package cache

import (
	"sync/atomic"

	"github.com/qorebase/tiercache/types"
)

// Statistics holds the process-lifetime cache counters. Counters only move
// forward; Reset is the explicit admin action and the single exception.
type Statistics struct {
	hits          uint64
	misses        uint64
	errors        uint64
	invalidations uint64
}

func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) Hit() {
	atomic.AddUint64(&s.hits, 1)
}

func (s *Statistics) Miss() {
	atomic.AddUint64(&s.misses, 1)
}

func (s *Statistics) Error() {
	atomic.AddUint64(&s.errors, 1)
}

func (s *Statistics) Invalidation() {
	atomic.AddUint64(&s.invalidations, 1)
}

func (s *Statistics) Snapshot() types.CacheStatSnapshot {
	return types.CacheStatSnapshot{
		Hits:          atomic.LoadUint64(&s.hits),
		Misses:        atomic.LoadUint64(&s.misses),
		Errors:        atomic.LoadUint64(&s.errors),
		Invalidations: atomic.LoadUint64(&s.invalidations),
	}
}

func (s *Statistics) Reset() {
	atomic.StoreUint64(&s.hits, 0)
	atomic.StoreUint64(&s.misses, 0)
	atomic.StoreUint64(&s.errors, 0)
	atomic.StoreUint64(&s.invalidations, 0)
}
