package transport

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// originLimiter hands out a token-bucket rate.Limiter per remote IP, ahead
// of the engine's own MAX_VIEWS/CapacityExceeded handling. It is an ambient
// abuse-resistance layer: auth is out of scope, but a client hammering the
// same origin with malformed requests shouldn't be able to starve others.
type originLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newOriginLimiter(perSecond float64, burst int) *originLimiter {
	return &originLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(perSecond),
		burst:    burst,
	}
}

func (o *originLimiter) allow(origin string) bool {
	o.mu.Lock()
	l, ok := o.limiters[origin]
	if !ok {
		l = rate.NewLimiter(o.r, o.burst)
		o.limiters[origin] = l
	}
	o.mu.Unlock()
	return l.Allow()
}

// httpRemoteIP extracts the host portion of r.RemoteAddr, falling back to
// the raw value if it isn't in host:port form.
func httpRemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
