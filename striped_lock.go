package jsonable

import (
	"hash/fnv"
	"sync"
)

// StripedLocks guards document keys with a fixed set of mutexes.
// A key always maps to the same stripe; different keys usually do not.
type StripedLocks struct {
	stripes []sync.RWMutex
	count   uint32
}

// NewStripedLocks creates a striped lock; non-positive counts use DefaultLockStripes
func NewStripedLocks(stripeCount int) *StripedLocks {
	if stripeCount <= 0 {
		stripeCount = DefaultLockStripes
	}
	return &StripedLocks{
		stripes: make([]sync.RWMutex, stripeCount),
		count:   uint32(stripeCount),
	}
}

// Lock acquires an exclusive lock for key and returns its release function.
//
// Example:
//
//	unlock := locks.Lock(key)
//	defer unlock()
func (sl *StripedLocks) Lock(key string) func() {
	idx := sl.stripeIndex(key)
	sl.stripes[idx].Lock()
	return sl.stripes[idx].Unlock
}

// RLock acquires a shared lock for key and returns its release function
func (sl *StripedLocks) RLock(key string) func() {
	idx := sl.stripeIndex(key)
	sl.stripes[idx].RLock()
	return sl.stripes[idx].RUnlock
}

// stripeIndex hashes key with FNV-1a
func (sl *StripedLocks) stripeIndex(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32() % sl.count
}
