package cache

import (
	"sync"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

// Recorder keeps invalidated keys in memory. The console uses it when no
// Redis is configured so the control API can still show what went stale.
type Recorder struct {
	mu   sync.Mutex
	keys []domain.CacheKey
	max  int
}

func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 1000
	}
	return &Recorder{max: max}
}

func (r *Recorder) Invalidate(key domain.CacheKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == r.max {
		r.keys = r.keys[1:]
	}
	r.keys = append(r.keys, key)
}

// Keys returns the recorded keys, oldest first.
func (r *Recorder) Keys() []domain.CacheKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.CacheKey(nil), r.keys...)
}

// Reset forgets every recorded key.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = nil
}
