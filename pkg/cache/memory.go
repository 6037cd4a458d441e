package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryLease 进程内租约，用于模拟盘
type MemoryLease struct {
	mu     *sync.Mutex
	owner  string
	ttl    time.Duration
	now    func() time.Time
	leases map[string]memoryEntry
}

type memoryEntry struct {
	owner  string
	expire time.Time
}

func NewMemoryLease(owner string, ttl time.Duration) *MemoryLease {
	return &MemoryLease{mu: &sync.Mutex{}, owner: owner, ttl: ttl, now: time.Now, leases: make(map[string]memoryEntry)}
}

// Share 同一张租约表上的另一个持有者
func (l *MemoryLease) Share(owner string) *MemoryLease {
	return &MemoryLease{mu: l.mu, owner: owner, ttl: l.ttl, now: l.now, leases: l.leases}
}

func (l *MemoryLease) Acquire(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.leases[key]
	if ok && e.owner != l.owner && l.now().Before(e.expire) {
		return ErrLeaseHeld
	}
	l.leases[key] = memoryEntry{owner: l.owner, expire: l.now().Add(l.ttl)}
	return nil
}

func (l *MemoryLease) Renew(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.leases[key]
	if !ok || e.owner != l.owner {
		return ErrLeaseHeld
	}
	e.expire = l.now().Add(l.ttl)
	l.leases[key] = e
	return nil
}

func (l *MemoryLease) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.leases[key]; ok && e.owner == l.owner {
		delete(l.leases, key)
	}
	return nil
}

var _ Lease = (*MemoryLease)(nil)
