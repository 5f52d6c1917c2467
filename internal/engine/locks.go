package engine

import "sync"

// itemLocks serializes intents per item id. Entries are dropped once no
// caller holds or waits for them.
type itemLocks struct {
	mu    sync.Mutex
	byKey map[string]*itemLock
}

type itemLock struct {
	sync.Mutex
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{byKey: map[string]*itemLock{}}
}

func (l *itemLocks) lock(id string) func() {
	if l == nil {
		return func() {}
	}
	l.mu.Lock()
	il, ok := l.byKey[id]
	if !ok {
		il = &itemLock{}
		l.byKey[id] = il
	}
	il.refs++
	l.mu.Unlock()

	il.Lock()
	return func() {
		il.Unlock()
		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.byKey, id)
		}
		l.mu.Unlock()
	}
}
