package ioc

import "sync"

// CanSatisfy reports whether dep, looked up from k, resolves to a Valid
// handler. Optional dependencies are not treated specially.
func (k *Kernel) CanSatisfy(dep DependencySpec) bool {
	h := k.lookup(dep, nil)
	return h != nil && h.IsValid()
}

// Lookup returns the handler dep resolves to from k: the local registry
// first, then the parent chain. It returns nil when no kernel in the chain
// has a match.
func (k *Kernel) Lookup(dep DependencySpec) *Handler {
	return k.lookup(dep, nil)
}

// lookup walks from k to the root. self is skipped by type-only lookups so
// that a component providing the service it depends on receives the next
// registration instead of itself.
//
// Each kernel's lock is released before its parent is consulted.
func (k *Kernel) lookup(dep DependencySpec, self *Handler) *Handler {
	for cur := k; cur != nil; cur = cur.Parent() {
		if h := cur.localLookup(dep, self); h != nil {
			return h
		}
	}
	return nil
}

func (k *Kernel) localLookup(dep DependencySpec, self *Handler) *Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if dep.Key != "" {
		h, ok := k.byKey[dep.Key]
		if !ok {
			return nil
		}
		if dep.Service != "" && !h.desc.Provides(dep.Service) {
			return nil
		}
		return h
	}

	// Most recently registered wins.
	handlers := k.byService[dep.Service]
	for i := len(handlers) - 1; i >= 0; i-- {
		if handlers[i] != self {
			return handlers[i]
		}
	}
	return nil
}

// unsatisfied returns h's required dependencies that do not currently resolve
// to a Valid handler from h's own kernel.
func (k *Kernel) unsatisfied(h *Handler) []DependencySpec {
	var missing []DependencySpec
	for _, dep := range h.desc.Dependencies {
		if dep.Optional {
			continue
		}
		d := k.lookup(dep, h)
		if d == nil || d == h || !d.IsValid() {
			missing = append(missing, dep)
		}
	}
	return missing
}

// validityMu is held for reading from a handler's satisfiability check to
// its transition to Valid, and for writing by RemoveComponent while it
// checks for dependents and deletes. A removed component therefore never
// backs a handler that became Valid in between.
var validityMu sync.RWMutex

// settle checks h and either makes it Valid or parks it as a pending
// dependent of every missing dependency. It reports true only when this call
// performed the transition to Valid.
//
// The check runs again after parking: a dependency registered between the
// first check and parking cannot wake a handler that is not parked yet.
func (k *Kernel) settle(h *Handler) bool {
	validityMu.RLock()
	defer validityMu.RUnlock()

	if h.IsValid() || h.isRemoved() {
		return false
	}
	missing := k.unsatisfied(h)
	if len(missing) > 0 {
		k.park(h, missing)
		missing = k.unsatisfied(h)
		if len(missing) > 0 {
			h.setMissing(missing)
			return false
		}
	}
	k.unpark(h)
	return h.markValid()
}

func (k *Kernel) park(h *Handler, missing []DependencySpec) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, dep := range missing {
		idx := dep.index()
		set, ok := k.pending[idx]
		if !ok {
			set = make(map[*Handler]struct{})
			k.pending[idx] = set
		}
		if _, already := set[h]; !already {
			set[h] = struct{}{}
			h.parked = append(h.parked, idx)
		}
	}
}

func (k *Kernel) unpark(h *Handler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.unparkLocked(h)
}

func (k *Kernel) unparkLocked(h *Handler) {
	for _, idx := range h.parked {
		if set, ok := k.pending[idx]; ok {
			delete(set, h)
			if len(set) == 0 {
				delete(k.pending, idx)
			}
		}
	}
	h.parked = nil
}

// pendingFor returns the handlers of k parked under any identity provided by
// the given handlers.
func (k *Kernel) pendingFor(valid []*Handler) []*Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()

	seen := make(map[*Handler]struct{})
	var out []*Handler
	collect := func(idx dependencyIndex) {
		for h := range k.pending[idx] {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				out = append(out, h)
			}
		}
	}
	for _, v := range valid {
		collect(keyIndex(v.desc.Key))
		for _, s := range v.desc.Services {
			collect(serviceIndex(s))
		}
	}
	return out
}

// parkedHandlers returns every handler of k that is waiting.
func (k *Kernel) parkedHandlers() []*Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []*Handler
	for _, h := range k.order {
		if len(h.parked) > 0 {
			out = append(out, h)
		}
	}
	return out
}

// wake re-checks the handlers of k waiting on anything the given handlers
// provide, cascading through handlers that become Valid in turn, then tells
// subscribers (child kernels among them) which handlers became visible.
func (k *Kernel) wake(valid []*Handler) {
	all := append([]*Handler(nil), valid...)
	queue := append([]*Handler(nil), valid...)
	var local []*Handler

	for len(queue) > 0 {
		batch := queue
		queue = nil
		for _, h := range k.pendingFor(batch) {
			if k.settle(h) {
				local = append(local, h)
				queue = append(queue, h)
				all = append(all, h)
			}
		}
	}

	if len(local) > 0 {
		k.metrics.waiting(k.name, -float64(len(local)))
		for _, h := range local {
			k.logger.Debug("component became valid",
				zapKernel(k), zapKey(h.desc.Key))
		}
	}
	k.events.handlersChanged.dispatch(HandlersChangedEvent{Kernel: k, Valid: all})
}

// recheckWaiting settles every waiting handler of k and its descendants,
// used when the set of visible handlers changed wholesale (re-parenting).
func (k *Kernel) recheckWaiting() {
	var became []*Handler
	for _, h := range k.parkedHandlers() {
		if k.settle(h) {
			became = append(became, h)
		}
	}
	if len(became) > 0 {
		k.metrics.waiting(k.name, -float64(len(became)))
		k.wake(became)
	}
	for _, child := range k.Children() {
		child.recheckWaiting()
	}
}

// diagnose explains why h is not Valid: a CircularDependencyError when the
// wait is caused by a cycle, a NotValidError otherwise.
func (k *Kernel) diagnose(h *Handler) error {
	onStack := make(map[*Handler]bool)
	done := make(map[*Handler]bool)
	var stack []*Handler

	var walk func(x *Handler) []string
	walk = func(x *Handler) []string {
		if onStack[x] {
			return cycleChain(stack, x)
		}
		if done[x] {
			return nil
		}
		onStack[x] = true
		stack = append(stack, x)
		defer func() {
			stack = stack[:len(stack)-1]
			onStack[x] = false
			done[x] = true
		}()

		for _, dep := range x.desc.Dependencies {
			if dep.Optional {
				continue
			}
			d := x.kernel.lookup(dep, x)
			if d == nil && dep.Key == "" && x.kernel.lookup(dep, nil) == x {
				// x is the only provider of a service it depends on.
				d = x
			}
			if d == nil || (d.IsValid() && d != x) {
				continue
			}
			if chain := walk(d); chain != nil {
				return chain
			}
		}
		return nil
	}

	if chain := walk(h); chain != nil {
		return &CircularDependencyError{Chain: chain}
	}
	return &NotValidError{Key: h.desc.Key, Missing: h.MissingDependencies()}
}

func cycleChain(stack []*Handler, revisited *Handler) []string {
	start := 0
	for i, s := range stack {
		if s == revisited {
			start = i
			break
		}
	}
	chain := make([]string, 0, len(stack)-start+1)
	for _, s := range stack[start:] {
		chain = append(chain, s.desc.Key)
	}
	return append(chain, revisited.desc.Key)
}
