package cache

import (
	"math/rand"
	"sync"
	"time"
)

// TTL hands out expirations of base plus up to a tenth of base, so entries written
// together do not all expire together.
type TTL struct {
	base time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewTTL(base time.Duration) *TTL {
	return &TTL{base: base, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Next returns the next jittered expiration, or 0 when caching is disabled.
func (t *TTL) Next() time.Duration {
	if t.base <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.base + time.Duration(t.rnd.Int63n(int64(t.base)/10+1))
}
