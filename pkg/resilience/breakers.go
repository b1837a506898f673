package resilience

import (
	"sort"
	"sync"
)

// HostBreakers hands out one Breaker per host, created on first use, so a
// dead site does not slow down fetches from the others.
type HostBreakers struct {
	cfg BreakerConfig

	mu    sync.Mutex
	hosts map[string]*Breaker
}

func NewHostBreakers(cfg BreakerConfig) *HostBreakers {
	return &HostBreakers{cfg: cfg, hosts: make(map[string]*Breaker)}
}

func (h *HostBreakers) For(host string) *Breaker {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.hosts[host]
	if !ok {
		b = NewBreaker(host, h.cfg)
		h.hosts[host] = b
	}
	return b
}

// Do runs fn through the breaker for host.
func (h *HostBreakers) Do(host string, fn func() error) error {
	return h.For(host).Do(fn)
}

// Blocked lists, in order, the hosts whose breaker is open.
func (h *HostBreakers) Blocked() []string {
	h.mu.Lock()
	all := make(map[string]*Breaker, len(h.hosts))
	for host, b := range h.hosts {
		all[host] = b
	}
	h.mu.Unlock()

	var blocked []string
	for host, b := range all {
		if b.State() == StateOpen {
			blocked = append(blocked, host)
		}
	}
	sort.Strings(blocked)
	return blocked
}
