// Package sleeplock provides a long-term lock whose holder may block
// on disk I/O while holding it.
package sleeplock

import (
	"sync"
)

type Sleeplock struct {
	mu     *sync.Mutex
	cond   *sync.Cond
	locked bool
	name   string
}

func MkSleeplock(name string) *Sleeplock {
	mu := new(sync.Mutex)
	return &Sleeplock{
		mu:     mu,
		cond:   sync.NewCond(mu),
		locked: false,
		name:   name,
	}
}

func (lk *Sleeplock) Acquire() {
	lk.mu.Lock()
	for lk.locked {
		lk.cond.Wait()
	}
	lk.locked = true
	lk.mu.Unlock()
}

func (lk *Sleeplock) Release() {
	lk.mu.Lock()
	if !lk.locked {
		lk.mu.Unlock()
		panic("Release " + lk.name)
	}
	lk.locked = false
	lk.cond.Signal()
	lk.mu.Unlock()
}

// Holding reports whether the lock is held.  Holders are not
// recorded, so callers that assert Holding before Release or before
// writing protected state catch a lock nobody holds, not a lock held
// by someone else.
func (lk *Sleeplock) Holding() bool {
	lk.mu.Lock()
	h := lk.locked
	lk.mu.Unlock()
	return h
}
