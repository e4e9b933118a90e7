package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Callers that stay quiet this long lose their limiter; a returning
// caller just starts with a fresh burst allowance.
const visitorIdle = 10 * time.Minute

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterPool hands out one token bucket per caller, keyed by API key
// or remote address. Idle visitors are evicted on the way through so
// the pool tracks active callers, not every address ever seen.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*visitor
	cfg       SecConfig
	lastSweep time.Time
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if p.m == nil {
		p.m = make(map[string]*visitor)
	}
	if now.Sub(p.lastSweep) > visitorIdle {
		for k, v := range p.m {
			if now.Sub(v.seen) > visitorIdle {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}
	if v, ok := p.m[key]; ok {
		v.seen = now
		return v.lim
	}
	rps := p.cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	v := &visitor{lim: rate.NewLimiter(rate.Limit(rps), burst), seen: now}
	p.m[key] = v
	return v.lim
}

func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}
