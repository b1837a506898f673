// Package rwlock provides a reader/writer lock that admits any number of
// concurrent readers or a single exclusive writer. A writer that is waiting
// blocks new readers, so it acquires the lock as soon as the active readers
// drain.
//
// The lock is not reentrant: a goroutine holding the read lock must not call
// RLock again while a writer may be waiting.
package rwlock

import "sync"

// Lock is a reader/writer lock. The zero value is not usable; call New.
type Lock struct {
	mu             sync.Mutex
	cond           *sync.Cond
	readers        int
	writer         bool
	waitingWriters int
}

// New returns an unlocked Lock.
func New() *Lock {
	l := &Lock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// RLock blocks until no writer holds or awaits the lock, then registers the
// caller as a reader.
func (l *Lock) RLock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.writer || l.waitingWriters > 0 {
		l.cond.Wait()
	}
	l.readers++
}

// RUnlock releases one read hold.
func (l *Lock) RUnlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers <= 0 {
		panic("rwlock: RUnlock of lock without readers")
	}
	l.readers--
	if l.readers == 0 {
		l.cond.Broadcast()
	}
}

// Lock blocks until there are no readers and no writer, then takes the lock
// exclusively.
func (l *Lock) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.waitingWriters++
	for l.writer || l.readers > 0 {
		l.cond.Wait()
	}
	l.waitingWriters--
	l.writer = true
}

// Unlock releases the exclusive hold.
func (l *Lock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.writer {
		panic("rwlock: Unlock of lock without writer")
	}
	l.writer = false
	l.cond.Broadcast()
}

// Readers returns the number of active readers.
func (l *Lock) Readers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readers
}

// RLocker returns a sync.Locker whose Lock and Unlock take the read side.
func (l *Lock) RLocker() sync.Locker {
	return (*readLocker)(l)
}

type readLocker Lock

func (r *readLocker) Lock()   { (*Lock)(r).RLock() }
func (r *readLocker) Unlock() { (*Lock)(r).RUnlock() }
