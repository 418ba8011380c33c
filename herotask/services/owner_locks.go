package services

import "sync"

// ownerLocks serializes progression writes per owner. Task completion reads
// progress, computes level-ups and writes back, so two concurrent completions
// by the same owner must not interleave. Different owners never contend.
type ownerLocks struct {
	locks sync.Map // owner id -> *sync.Mutex
}

// Lock acquires the owner's mutex and returns its release func.
func (o *ownerLocks) Lock(ownerID string) func() {
	mu, _ := o.locks.LoadOrStore(ownerID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
