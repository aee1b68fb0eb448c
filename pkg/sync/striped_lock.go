package sync

import (
	"sort"
	base "sync"
)

// StripedLock maps an unbounded key space onto a fixed set of read/write
// locks. Keys sharing a stripe contend with each other.
type StripedLock struct {
	locks []base.RWMutex
	ring  *ring
}

func NewStripedLock(stripes uint) *StripedLock {
	return &StripedLock{
		locks: make([]base.RWMutex, stripes),
		ring:  newRing(int(stripes), defaultReplicas),
	}
}

// Get returns the lock guarding key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.ring.stripe(key)]
}

// LockMany acquires the stripes for a set of keys at once. A stripe shared by
// a write key and a read key is write locked. Stripes are always acquired in
// index order so overlapping callers can't deadlock. The returned function
// releases everything.
func (l *StripedLock) LockMany(writeKeys, readKeys [][]byte) (unlock func()) {
	exclusive := make(map[int]bool, len(writeKeys)+len(readKeys))
	for _, key := range readKeys {
		exclusive[l.ring.stripe(key)] = false
	}
	for _, key := range writeKeys {
		exclusive[l.ring.stripe(key)] = true
	}

	stripes := make([]int, 0, len(exclusive))
	for stripe := range exclusive {
		stripes = append(stripes, stripe)
	}
	sort.Ints(stripes)

	for _, stripe := range stripes {
		if exclusive[stripe] {
			l.locks[stripe].Lock()
		} else {
			l.locks[stripe].RLock()
		}
	}

	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			if exclusive[stripes[i]] {
				l.locks[stripes[i]].Unlock()
			} else {
				l.locks[stripes[i]].RUnlock()
			}
		}
	}
}
