package transport

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// invalidAttemptLimiter throttles how often the listener logs a rejected
// handshake from the same claimed peer address, so a peer that keeps
// retrying against a dead or never-existed endpoint-id doesn't flood the
// log. It never changes the wire response (still ConnectionRequestInvalid
// every time), only log volume. Backed by hashicorp/golang-lru, a second
// and independently-purposed bounded cache from the one used for the
// pending-control-request table (see local.go), so the two LRU
// dependencies the teacher carries each earn a distinct job here.
type invalidAttemptLimiter struct {
	mu    sync.Mutex
	cache *lru.Cache
}

type invalidAttemptRecord struct {
	count     int
	firstSeen time.Time
}

const invalidAttemptLogThreshold = 5
const invalidAttemptWindow = time.Minute

func newInvalidAttemptLimiter() *invalidAttemptLimiter {
	c, _ := lru.New(1024)
	return &invalidAttemptLimiter{cache: c}
}

// shouldLog reports whether this rejection (from addr) is still novel
// enough to log at WARNING; once a window's worth of repeats has been
// seen, callers should fall back to DEBUG.
func (l *invalidAttemptLimiter) shouldLog(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.cache.Get(addr)
	if !ok {
		l.cache.Add(addr, &invalidAttemptRecord{count: 1, firstSeen: time.Now()})
		return true
	}
	rec := v.(*invalidAttemptRecord)
	if time.Now().Sub(rec.firstSeen) > invalidAttemptWindow {
		rec.count = 1
		rec.firstSeen = time.Now()
		return true
	}
	rec.count++
	return rec.count <= invalidAttemptLogThreshold
}
