package guard

import "sync"

// entry is one key's value guarded by its own lock. dead is set under the
// lock when the entry leaves the map, so a goroutine that loaded it earlier
// retries against whatever entry replaced it.
type entry[T any] struct {
	mu   sync.Mutex
	val  T
	dead bool
}

// keyedMap serializes read-modify-write per key without a map-wide lock:
// operations on different keys never wait on each other.
type keyedMap[T any] struct {
	m sync.Map // string -> *entry[T]
}

// update runs fn on the value for key, creating a zero value if absent.
// Returning false from fn removes the key.
func (k *keyedMap[T]) update(key string, fn func(v *T) (keep bool)) {
	for {
		e := k.loadOrCreate(key)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		if !fn(&e.val) {
			k.bury(key, e)
		}
		e.mu.Unlock()
		return
	}
}

// modify is update for keys that already exist. It reports whether fn ran.
func (k *keyedMap[T]) modify(key string, fn func(v *T) (keep bool)) bool {
	for {
		actual, ok := k.m.Load(key)
		if !ok {
			return false
		}
		e := actual.(*entry[T])
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		if !fn(&e.val) {
			k.bury(key, e)
		}
		e.mu.Unlock()
		return true
	}
}

func (k *keyedMap[T]) delete(key string) {
	k.modify(key, func(*T) bool { return false })
}

// sweep visits every live entry under its lock and removes those for which
// drop returns true. It returns the number removed.
func (k *keyedMap[T]) sweep(drop func(v *T) bool) int {
	removed := 0
	k.m.Range(func(key, value any) bool {
		e := value.(*entry[T])
		e.mu.Lock()
		if !e.dead && drop(&e.val) {
			k.bury(key.(string), e)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

func (k *keyedMap[T]) len() int {
	n := 0
	k.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (k *keyedMap[T]) loadOrCreate(key string) *entry[T] {
	if actual, ok := k.m.Load(key); ok {
		return actual.(*entry[T])
	}
	actual, _ := k.m.LoadOrStore(key, &entry[T]{})
	return actual.(*entry[T])
}

// bury must be called with e.mu held.
func (k *keyedMap[T]) bury(key string, e *entry[T]) {
	e.dead = true
	k.m.CompareAndDelete(key, e)
}
