package engine

import (
	"context"
	"time"
)

// LeaseManager wraps Store's conditional-update primitives with the
// leaseSeconds configuration, so Poller and Executor never compute
// lease_until themselves. The WHERE predicate plus the set of values written
// by Store.TryClaim is the entire safety gate — no higher-level lock exists.
type LeaseManager struct {
	store        Store
	clock        Clock
	leaseSeconds time.Duration
}

func NewLeaseManager(store Store, clock Clock, leaseSeconds time.Duration) *LeaseManager {
	return &LeaseManager{store: store, clock: clock, leaseSeconds: leaseSeconds}
}

// TryClaim attempts to atomically claim inputID for workerID. Returns true
// iff exactly one row was affected.
func (l *LeaseManager) TryClaim(ctx context.Context, inputID, workerID string) (bool, error) {
	now := l.clock.Now()
	return l.store.TryClaim(ctx, inputID, workerID, now.Add(l.leaseSeconds), now)
}

// Renew extends the lease for inputID while it is still owned by workerID.
// Executor calls this at leaseSeconds/2.
func (l *LeaseManager) Renew(ctx context.Context, inputID, workerID string) (bool, error) {
	return l.store.RenewLease(ctx, inputID, workerID, l.clock.Now().Add(l.leaseSeconds))
}

// HeartbeatInterval is the cadence at which Executor should call Renew while
// a unit is RUNNING: half the lease duration, so a single missed heartbeat
// tick still leaves margin before the lease actually expires.
func (l *LeaseManager) HeartbeatInterval() time.Duration {
	return l.leaseSeconds / 2
}

// LeaseSeconds returns the configured lease duration.
func (l *LeaseManager) LeaseSeconds() time.Duration {
	return l.leaseSeconds
}
