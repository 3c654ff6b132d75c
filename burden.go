package ioc

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// burden is one activated instance together with the transient instances
// that were created solely to satisfy it. Cached dependencies are borrowed
// and never appear in children.
type burden struct {
	handler  *Handler
	instance any
	children []*burden
	seq      uint64
	released atomic.Bool
}

var burdenSeq atomic.Uint64

func newBurden(h *Handler, instance any, children []*burden) *burden {
	return &burden{
		handler:  h,
		instance: instance,
		children: children,
		seq:      burdenSeq.Add(1),
	}
}

// needsDecommission reports whether releasing b would run any hook.
func (b *burden) needsDecommission() bool {
	if len(b.handler.desc.DecommissionSteps) > 0 {
		return true
	}
	if _, ok := b.instance.(Decommissionable); ok {
		return true
	}
	for _, c := range b.children {
		if c.needsDecommission() {
			return true
		}
	}
	return false
}

// release decommissions the instance, then its own transient dependencies in
// reverse resolution order. Failures are collected, never fatal.
func (b *burden) release() error {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	h := b.handler
	var errs []error
	if err := decommission(h.desc, b.instance); err != nil {
		h.kernel.logger.Warn("decommission failed",
			zap.String("kernel", h.kernel.name),
			zap.String("key", h.desc.Key),
			zap.Error(err))
		h.kernel.metrics.decommissioned(false)
		errs = append(errs, &DecommissionError{Key: h.desc.Key, Err: err})
	} else {
		h.kernel.metrics.decommissioned(true)
	}
	h.kernel.events.destroyed.dispatch(ComponentDestroyedEvent{Descriptor: h.desc, Instance: b.instance})

	for i := len(b.children) - 1; i >= 0; i-- {
		if err := b.children[i].release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func releaseAll(burdens []*burden) error {
	var errs []error
	for i := len(burdens) - 1; i >= 0; i-- {
		if err := burdens[i].release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cacheKey selects the slot of a caching lifestyle: zero for Singleton, the
// goroutine for PerThread, the scope for PerScope.
type cacheKey struct {
	thread int64
	scope  uuid.UUID
}

// instanceCache holds the cached instances of one handler (or of one shadowed
// handler in a child kernel). Construction of a key is guarded by a creation
// slot, so each key is built at most once.
type instanceCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*burden
}

func (c *instanceCache) get(key cacheKey) (*burden, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[key]
	return b, ok
}

func (c *instanceCache) put(key cacheKey, b *burden) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[cacheKey]*burden)
	}
	c.entries[key] = b
}

// remove deletes key only while it still maps to b.
func (c *instanceCache) remove(key cacheKey, b *burden) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[key] == b {
		delete(c.entries, key)
	}
}

func (c *instanceCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ownedInstance records a cached instance in the disposal list of the kernel
// or scope responsible for decommissioning it.
type ownedInstance struct {
	cache  *instanceCache
	key    cacheKey
	burden *burden
}

// instanceOwner is implemented by Kernel and Scope.
type instanceOwner interface {
	own(entry ownedInstance)
}

// releaseOwned decommissions entries in reverse construction order, so that
// dependents go before their dependencies.
func releaseOwned(entries []ownedInstance) error {
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		e.cache.remove(e.key, e.burden)
		if err := e.burden.release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// slot identifies one cached instance under construction.
type slot struct {
	cache *instanceCache
	key   cacheKey
}

type construction struct {
	handler *Handler
	builder int64
	done    chan struct{}
}

// creations tracks every cached instance under construction and the slot each
// blocked goroutine waits for. A goroutine about to wait follows the chain of
// builders; finding itself at the end means waiting would never return.
var creations = struct {
	sync.Mutex
	building map[slot]*construction
	waiting  map[int64]slot
}{
	building: make(map[slot]*construction),
	waiting:  make(map[int64]slot),
}

// acquireSlot makes the calling goroutine the builder of (cache, key) for h,
// waiting while another goroutine builds it. It fails with
// CircularDependencyError when the slot is being built by the caller itself,
// directly or through goroutines waiting on each other.
func acquireSlot(h *Handler, cache *instanceCache, key cacheKey) (func(), error) {
	me := goid()
	id := slot{cache: cache, key: key}

	creations.Lock()
	for {
		c, busy := creations.building[id]
		if !busy {
			creations.building[id] = &construction{handler: h, builder: me, done: make(chan struct{})}
			creations.Unlock()
			return func() { releaseSlot(id) }, nil
		}
		if chain := waitCycle(c, me); chain != nil {
			creations.Unlock()
			return nil, &CircularDependencyError{Chain: chain}
		}
		creations.waiting[me] = id
		creations.Unlock()

		<-c.done

		creations.Lock()
		delete(creations.waiting, me)
	}
}

// waitCycle returns the component chain that would close if me waited for c,
// or nil. creations must be locked.
func waitCycle(c *construction, me int64) []string {
	path := []*Handler{c.handler}
	for g := c.builder; g != me; {
		next, ok := creations.waiting[g]
		if !ok {
			return nil
		}
		nc, ok := creations.building[next]
		if !ok {
			return nil
		}
		path = append(path, nc.handler)
		g = nc.builder
	}
	// The last component of path is the one me is building.
	last := path[len(path)-1]
	chain := []string{last.desc.Key}
	for _, h := range path[:len(path)-1] {
		chain = append(chain, h.desc.Key)
	}
	return append(chain, last.desc.Key)
}

func releaseSlot(id slot) {
	creations.Lock()
	c := creations.building[id]
	delete(creations.building, id)
	creations.Unlock()
	close(c.done)
}
