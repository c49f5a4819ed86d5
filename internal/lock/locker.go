// Package lock provides keyed exclusive sections. Admission holds one per
// station while it reads conflicts and writes the new reservation; lifecycle
// transitions hold one per reservation.
package lock

import (
	"context"
	"fmt"
	"sync"
)

// Locker acquires an exclusive section for key. The returned func releases it
// and must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// StationKey names the admission section of a station.
func StationKey(stationID string) string {
	return "station:" + stationID
}

// ReservationKey names the transition section of a reservation.
func ReservationKey(id int64) string {
	return fmt.Sprintf("reservation:%d", id)
}

// CalendarKey serializes calendar publishing for a reservation. It is held
// apart from ReservationKey so slow calendar calls never block transitions.
func CalendarKey(id int64) string {
	return fmt.Sprintf("calendar:%d", id)
}

// KeyedMutex is an in-process Locker. Entries are dropped once no goroutine
// holds or waits on them, so the map does not grow with the key space.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// size reports the number of live entries.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
