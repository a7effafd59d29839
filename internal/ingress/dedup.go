package ingress

import (
	"time"

	"golang.org/x/time/rate"
)

// dedupDepth is how many recently-seen detection keys the FIFO
// remembers. A storm of identical events (the same process hammering the
// same registry key) collapses to a single notification until the oldest
// entry ages out.
const dedupDepth = 64

// dedupFIFO is a bounded FIFO of recently-seen detection keys, paired
// with a rate limiter that caps how often a *novel* key is still allowed
// to notify — the dedup FIFO alone only suppresses exact repeats, not a
// storm of distinct-but-related keys (e.g. many pids writing many
// distinct values under the same run key in a tight loop).
type dedupFIFO struct {
	order   []string
	seen    map[string]int
	limiter *rate.Limiter
}

// newDedupFIFO returns a dedup FIFO that allows at most burst
// notifications immediately, refilling at the given rate thereafter.
func newDedupFIFO(perSecond float64, burst int) *dedupFIFO {
	return &dedupFIFO{
		seen:    make(map[string]int, dedupDepth),
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Admit reports whether key should produce a notification now: it hasn't
// been seen in the current FIFO window, and the rate limiter still has
// budget. A novel key enters the window whether or not the limiter admits
// it; a repeated key is rejected without changing its position, so it
// ages out after dedupDepth newer keys.
func (d *dedupFIFO) Admit(key string) bool {
	if _, dup := d.seen[key]; dup {
		return false
	}

	d.order = append(d.order, key)
	d.seen[key] = len(d.order)
	if len(d.order) > dedupDepth {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}

	return d.limiter.AllowN(time.Now(), 1)
}
