package fetcher

import (
	"sync"
	"time"

	cb "github.com/sony/gobreaker"
)

// BreakerOptions configure the per-host circuit breaker. A zero
// ConsecutiveFailures disables tripping.
type BreakerOptions struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

type breakerSet struct {
	mu       sync.RWMutex
	opts     BreakerOptions
	breakers map[string]*cb.CircuitBreaker
}

func newBreakerSet(opts BreakerOptions) *breakerSet {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 10 * time.Minute
	}
	return &breakerSet{opts: opts, breakers: make(map[string]*cb.CircuitBreaker)}
}

func (s *breakerSet) get(host string) *cb.CircuitBreaker {
	s.mu.RLock()
	breaker, exists := s.breakers[host]
	s.mu.RUnlock()
	if exists {
		return breaker
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if breaker, exists := s.breakers[host]; exists {
		return breaker
	}

	threshold := s.opts.ConsecutiveFailures
	st := cb.Settings{Name: host}
	st.Timeout = s.opts.Cooldown
	st.ReadyToTrip = func(counts cb.Counts) bool {
		return threshold > 0 && counts.ConsecutiveFailures >= threshold
	}
	breaker = cb.NewCircuitBreaker(st)
	s.breakers[host] = breaker
	return breaker
}
