package cache

import "container/list"

// lru is a small least-recently-used map. Not safe for concurrent use;
// Cache serializes access under its own lock.
type lru[V any] struct {
	limit   int
	order   *list.List
	entries map[string]*list.Element
}

type lruEntry[V any] struct {
	key   string
	value V
}

func newLRU[V any](limit int) *lru[V] {
	return &lru[V]{
		limit:   limit,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Get returns the value for key and marks it most recently used.
func (l *lru[V]) Get(key string) (V, bool) {
	if el, ok := l.entries[key]; ok {
		l.order.MoveToFront(el)
		return el.Value.(*lruEntry[V]).value, true
	}
	var zero V
	return zero, false
}

// Add inserts or replaces a value, evicting the least recently used entry
// when the limit is exceeded.
func (l *lru[V]) Add(key string, value V) {
	if el, ok := l.entries[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		l.order.MoveToFront(el)
		return
	}
	l.entries[key] = l.order.PushFront(&lruEntry[V]{key: key, value: value})
	if l.limit > 0 && l.order.Len() > l.limit {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.entries, oldest.Value.(*lruEntry[V]).key)
	}
}

// Remove drops a key if present.
func (l *lru[V]) Remove(key string) {
	if el, ok := l.entries[key]; ok {
		l.order.Remove(el)
		delete(l.entries, key)
	}
}

// Len returns the number of cached entries.
func (l *lru[V]) Len() int { return l.order.Len() }
