package wire

import (
	"sync"
	"sync/atomic"
	"time"
)

// clock caches the IMF-fixdate-formatted current time so the response
// writer never pays time.Now().Format() on the hot path, ported from the
// teacher's internal/date ticker. Like the teacher's package-level
// currentDate, exactly one clock (and one ticker goroutine) backs every
// connection in the process; it is not a per-connection resource.
type clock struct {
	current atomic.Pointer[[]byte]
}

var (
	sharedClock     clock
	sharedClockOnce sync.Once
)

// sharedClockRef starts the process-wide ticker on first use and returns
// the shared clock every time after. Connections never stop it individually
// (§5: TLS contexts and similarly immutable process-wide resources are
// shared read-only) — it lives for the process, not the connection.
func sharedClockRef() *clock {
	sharedClockOnce.Do(func() {
		sharedClock.update()
		ticker := time.NewTicker(500 * time.Millisecond)
		go func() {
			for range ticker.C {
				sharedClock.update()
			}
		}()
	})
	return &sharedClock
}

func (c *clock) update() {
	b := []byte(time.Now().UTC().Format(imfFixdate))
	c.current.Store(&b)
}

// Now returns the cached IMF-fixdate bytes for the Date header.
func (c *clock) Now() []byte {
	p := c.current.Load()
	if p == nil {
		return []byte(time.Now().UTC().Format(imfFixdate))
	}
	return *p
}
