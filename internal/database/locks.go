package database

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyedMutex serialises work on logical keys inside one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// LockAll acquires every key in sorted order and returns a release func.
// Duplicate keys are collapsed. When ctx ends while waiting, the keys taken so
// far are released and ctx.Err() is returned.
func (k *KeyedMutex) LockAll(ctx context.Context, keys []string) (func(), error) {
	sorted := SortedUnique(keys)
	held := make([]*keyLock, 0, len(sorted))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].sem.Release(1)
			k.releaseRef(sorted[i])
		}
	}
	for _, key := range sorted {
		l := k.acquireRef(key)
		if err := l.sem.Acquire(ctx, 1); err != nil {
			k.releaseRef(key)
			release()
			return nil, err
		}
		held = append(held, l)
	}
	return release, nil
}

func (k *KeyedMutex) acquireRef(key string) *keyLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{sem: semaphore.NewWeighted(1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *KeyedMutex) releaseRef(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l := k.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// SortedUnique returns keys sorted with duplicates removed.
func SortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
