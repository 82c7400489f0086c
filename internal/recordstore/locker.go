package recordstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"projecttracker/pkg/domain"
)

var (
	// ErrLockOrder reports an attempt to acquire a resource that sorts before
	// one already held, which could deadlock against another caller.
	ErrLockOrder = errors.New("recordstore: lock acquired out of order")
	// ErrLockUpgrade reports a write claim on a resource held only for reading.
	ErrLockUpgrade = errors.New("recordstore: cannot upgrade read lock")
)

// Claims names the resources a scope needs. A resource listed in both Write
// and Read is held for writing.
type Claims struct {
	Write []string
	Read  []string
}

type heldKey struct{}

type heldSet struct {
	locker *Locker
	write  map[string]bool
}

// Locker owns one RWMutex per resource name. Multi-resource scopes acquire in
// the global order of domain.ResourceOrder; names outside it sort after, by name.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.RWMutex)}
}

func (l *Locker) lockFor(resource string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[resource]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[resource] = m
	}
	return m
}

// Acquire locks every claimed resource not already held by ctx and returns a
// derived context recording the held set plus a release func. Collections
// called with the derived context skip their own locking for held resources.
// The release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, claims Claims) (context.Context, func(), error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, err
	}
	want := make(map[string]bool)
	for _, r := range claims.Read {
		if _, ok := want[r]; !ok {
			want[r] = false
		}
	}
	for _, r := range claims.Write {
		want[r] = true
	}

	var prior map[string]bool
	if h, ok := ctx.Value(heldKey{}).(*heldSet); ok && h.locker == l {
		prior = h.write
	}

	var fresh []string
	for r, write := range want {
		heldWrite, held := prior[r]
		switch {
		case held && write && !heldWrite:
			return ctx, func() {}, fmt.Errorf("%w: %s", ErrLockUpgrade, r)
		case held:
			continue
		}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return ctx, func() {}, nil
	}
	sort.Slice(fresh, func(i, j int) bool { return lessResource(fresh[i], fresh[j]) })
	for r := range prior {
		if !lessResource(r, fresh[0]) {
			return ctx, func() {}, fmt.Errorf("%w: %s while holding %s", ErrLockOrder, fresh[0], r)
		}
	}

	for _, r := range fresh {
		m := l.lockFor(r)
		if want[r] {
			m.Lock()
		} else {
			m.RLock()
		}
	}

	merged := make(map[string]bool, len(prior)+len(fresh))
	for r, w := range prior {
		merged[r] = w
	}
	for _, r := range fresh {
		merged[r] = want[r]
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			for i := len(fresh) - 1; i >= 0; i-- {
				m := l.lockFor(fresh[i])
				if want[fresh[i]] {
					m.Unlock()
				} else {
					m.RUnlock()
				}
			}
		})
	}
	return context.WithValue(ctx, heldKey{}, &heldSet{locker: l, write: merged}), release, nil
}

// Holds reports whether ctx holds resource from l, and whether for writing.
func (l *Locker) Holds(ctx context.Context, resource string) (held, write bool) {
	h, ok := ctx.Value(heldKey{}).(*heldSet)
	if !ok || h.locker != l {
		return false, false
	}
	write, held = h.write[resource]
	return held, write
}

func rank(resource string) int {
	for i, r := range domain.ResourceOrder {
		if r == resource {
			return i
		}
	}
	return len(domain.ResourceOrder)
}

func lessResource(a, b string) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}
