package scheduler

import "sync"

// HostLimiter ensures that only one monitoring run per host is in flight at
// any given time, so two websites on the same host never hammer it together.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]struct{}
}

// NewHostLimiter creates a new HostLimiter.
func NewHostLimiter() *HostLimiter {
	return &HostLimiter{
		hosts: make(map[string]struct{}),
	}
}

// Acquire attempts to acquire the lock for a host. It returns false when a
// run for this host is already in progress.
func (hl *HostLimiter) Acquire(host string) bool {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	if _, exists := hl.hosts[host]; exists {
		return false
	}

	hl.hosts[host] = struct{}{}
	return true
}

// Release releases the lock for a host.
func (hl *HostLimiter) Release(host string) {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	delete(hl.hosts, host)
}
