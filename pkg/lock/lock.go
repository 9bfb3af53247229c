// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

// Package lock provides the mutual exclusion the engine uses around read-modify-commit
// cycles on a process instance or on a single flow node instance.
//
// Callers that need both take the flow node lock first and the process lock second.
package lock

import (
	"context"
	"strconv"
	"sync"
)

// Unlock releases a held lock. Calling it more than once is a no-op.
type Unlock func()

type Locker interface {
	// Lock blocks until key is held by the caller or ctx is done.
	Lock(ctx context.Context, key string) (Unlock, error)
}

func ProcessKey(processInstanceKey int64) string {
	return "process:" + strconv.FormatInt(processInstanceKey, 10)
}

func FlowNodeKey(flowNodeInstanceKey int64) string {
	return "node:" + strconv.FormatInt(flowNodeInstanceKey, 10)
}

type entry struct {
	held chan struct{}
	refs int
}

// LocalLocker serializes holders within one process. Entries are reference counted
// and dropped once no goroutine holds or waits for the key.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: map[string]*entry{}}
}

var _ Locker = (*LocalLocker)(nil)

func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{held: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.held
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Size returns the number of keys that are held or waited for.
func (l *LocalLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
