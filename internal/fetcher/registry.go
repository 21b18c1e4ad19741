package fetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry routes each source to the fetcher registered for its host. Hosts
// match by domain suffix, so "amazon.com" covers "www.amazon.com"; the
// longest registered match wins. Unmatched hosts go to the fallback.
type Registry struct {
	mu       sync.RWMutex
	fallback PriceFetcher
	byHost   map[string]PriceFetcher
}

// NewRegistry builds a registry around a fallback fetcher.
func NewRegistry(fallback PriceFetcher) *Registry {
	return &Registry{fallback: fallback, byHost: make(map[string]PriceFetcher)}
}

// Register binds host to f, replacing any previous binding.
func (r *Registry) Register(host string, f PriceFetcher) {
	host = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(host), "."))
	if host == "" || f == nil {
		return
	}
	r.mu.Lock()
	r.byHost[host] = f
	r.mu.Unlock()
}

// Fetch dispatches to the matching fetcher.
func (r *Registry) Fetch(ctx context.Context, source string) Result {
	u, err := parseSource(source)
	if err != nil {
		return Transient(err)
	}
	host := strings.ToLower(u.Hostname())
	f := r.lookup(host)
	if f == nil {
		return Transient(fmt.Errorf("no fetcher registered for host %s", host))
	}
	return f.Fetch(ctx, source)
}

func (r *Registry) lookup(host string) PriceFetcher {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best    PriceFetcher
		bestLen int
	)
	for registered, f := range r.byHost {
		if host != registered && !strings.HasSuffix(host, "."+registered) {
			continue
		}
		if len(registered) > bestLen {
			best, bestLen = f, len(registered)
		}
	}
	if best != nil {
		return best
	}
	return r.fallback
}

var _ PriceFetcher = (*Registry)(nil)
