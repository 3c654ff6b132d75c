package ioc

import (
	"errors"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kernel is a container node. It owns a registry of handlers, an optional
// parent back-reference and zero or more child kernels. Components of a
// parent are visible to its children, never the reverse.
//
// A Kernel is safe for concurrent use.
type Kernel struct {
	name      string
	logger    *zap.Logger
	metrics   *Metrics
	activator Activator
	events    kernelEvents

	// mu guards the registry, the pending index and the composition fields.
	mu        sync.RWMutex
	byKey     map[string]*Handler
	byService map[ServiceType][]*Handler
	order     []*Handler
	pending   map[dependencyIndex]map[*Handler]struct{}
	parent    *Kernel
	children  []*Kernel
	parentSub func()
	disposed  bool

	// instMu guards instance bookkeeping.
	instMu    sync.Mutex
	shadows   map[*Handler]*instanceCache
	owned     []ownedInstance
	tracked   map[any][]*burden
	untracked []*burden
	scopes    map[*Scope]struct{}
	torndown  bool
}

// NewKernel creates an empty kernel.
func NewKernel(opts ...Option) *Kernel {
	k := &Kernel{
		name:      "kernel-" + uuid.NewString()[:8],
		logger:    zap.NewNop(),
		activator: ConstructorActivator{},
		byKey:     make(map[string]*Handler),
		byService: make(map[ServiceType][]*Handler),
		pending:   make(map[dependencyIndex]map[*Handler]struct{}),
		shadows:   make(map[*Handler]*instanceCache),
		tracked:   make(map[any][]*burden),
		scopes:    make(map[*Scope]struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Logger returns the kernel's logger.
func (k *Kernel) Logger() *zap.Logger { return k.logger }

func zapKernel(k *Kernel) zap.Field { return zap.String("kernel", k.name) }
func zapKey(key string) zap.Field   { return zap.String("key", key) }

// Register adds a component. The handler is Valid immediately when all its
// required dependencies are available, otherwise it waits and becomes Valid
// as soon as they are registered.
func (k *Kernel) Register(desc *ComponentDescriptor) (*Handler, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}
	model := desc.normalized()
	h := newHandler(model, k)

	k.mu.Lock()
	if k.disposed {
		k.mu.Unlock()
		return nil, &KernelDisposedError{Kernel: k.name}
	}
	if _, exists := k.byKey[model.Key]; exists {
		k.mu.Unlock()
		return nil, &DuplicateKeyError{Key: model.Key, Kernel: k.name}
	}
	k.byKey[model.Key] = h
	for _, s := range model.Services {
		k.byService[s] = append(k.byService[s], h)
	}
	k.order = append(k.order, h)
	k.mu.Unlock()

	k.events.modelCreated.dispatch(ComponentModelCreatedEvent{Descriptor: model})
	k.metrics.registered(k.name)
	valid := k.settle(h)
	if valid {
		k.logger.Debug("component registered",
			zapKernel(k), zapKey(model.Key),
			zap.String("lifestyle", model.Lifestyle.String()))
	} else {
		k.metrics.waiting(k.name, 1)
		k.logger.Debug("component registered, waiting for dependencies",
			zapKernel(k), zapKey(model.Key),
			zap.Stringers("missing", h.MissingDependencies()))
	}

	k.events.registered.dispatch(ComponentRegisteredEvent{Key: model.Key, Handler: h})
	if valid {
		k.wake([]*Handler{h})
	}
	return h, nil
}

// RegisterComponent builds a descriptor from its parts and registers it.
func (k *Kernel) RegisterComponent(key string, services []ServiceType, implementation string, lifestyle Lifestyle, deps []DependencySpec) (*ComponentDescriptor, error) {
	h, err := k.Register(&ComponentDescriptor{
		Key:            key,
		Services:       services,
		Implementation: implementation,
		Lifestyle:      lifestyle,
		Dependencies:   deps,
	})
	if err != nil {
		return nil, err
	}
	return h.Descriptor(), nil
}

// Resolve returns an instance of the most recently registered component
// providing service, looked up locally first and then in the parent chain.
func (k *Kernel) Resolve(service ServiceType, opts ...ResolveOption) (any, error) {
	return k.resolve(DependencySpec{Service: service}, opts)
}

// ResolveKey returns an instance of the component registered under key.
func (k *Kernel) ResolveKey(key string, opts ...ResolveOption) (any, error) {
	return k.resolve(DependencySpec{Key: key}, opts)
}

// TryResolve is Resolve reporting failure as false instead of an error.
func (k *Kernel) TryResolve(service ServiceType, opts ...ResolveOption) (any, bool) {
	instance, err := k.Resolve(service, opts...)
	if err != nil {
		return nil, false
	}
	return instance, true
}

// Has reports whether service can be looked up from k.
func (k *Kernel) Has(service ServiceType) bool {
	return k.lookup(DependencySpec{Service: service}, nil) != nil
}

func (k *Kernel) resolve(dep DependencySpec, opts []ResolveOption) (any, error) {
	if k.isDisposed() {
		return nil, &KernelDisposedError{Kernel: k.name}
	}
	h := k.lookup(dep, nil)
	if h == nil {
		err := &ComponentNotFoundError{Service: dep.Service, Key: dep.Key}
		k.metrics.resolved(k.name, err)
		return nil, err
	}
	return k.activateRoot(h, newResolveOptions(opts))
}

// Release ends the life of an instance obtained from this kernel. Transient
// instances are decommissioned together with the transient dependencies
// created for them; borrowed cached dependencies are left alone. Releasing a
// cached or unknown instance does nothing, and so does releasing a value
// without pointer identity: it is decommissioned by Dispose.
func (k *Kernel) Release(instance any) error {
	b := k.untrack(instance)
	if b == nil {
		return nil
	}
	return b.release()
}

// trackable reports whether instance has an identity usable as a map key.
// Values such as structs may be comparable in type and still hold slices,
// so only pointer-shaped instances qualify.
func trackable(instance any) bool {
	if instance == nil {
		return false
	}
	switch reflect.ValueOf(instance).Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

// track records a transient instance that needs decommissioning. Instances
// without identity cannot be released one by one and wait for Dispose.
func (k *Kernel) track(b *burden) {
	if !b.needsDecommission() {
		return
	}
	k.instMu.Lock()
	if trackable(b.instance) {
		k.tracked[b.instance] = append(k.tracked[b.instance], b)
	} else {
		k.untracked = append(k.untracked, b)
	}
	k.instMu.Unlock()
}

func (k *Kernel) untrack(instance any) *burden {
	if !trackable(instance) {
		return nil
	}
	k.instMu.Lock()
	defer k.instMu.Unlock()
	stack := k.tracked[instance]
	if len(stack) == 0 {
		return nil
	}
	b := stack[len(stack)-1]
	if len(stack) == 1 {
		delete(k.tracked, instance)
	} else {
		k.tracked[instance] = stack[:len(stack)-1]
	}
	return b
}

func (k *Kernel) own(entry ownedInstance) {
	k.instMu.Lock()
	if k.torndown {
		k.instMu.Unlock()
		// Built while Dispose ran: nothing will decommission it later.
		entry.cache.remove(entry.key, entry.burden)
		if err := entry.burden.release(); err != nil {
			k.logger.Warn("releasing instance of disposed kernel",
				zapKernel(k), zapKey(entry.burden.handler.desc.Key), zap.Error(err))
		}
		return
	}
	k.owned = append(k.owned, entry)
	k.instMu.Unlock()
}

// shadowCache returns the child-local cache used when a parent component is
// resolved from k with some of its dependencies shadowed by k.
func (k *Kernel) shadowCache(h *Handler) *instanceCache {
	k.instMu.Lock()
	defer k.instMu.Unlock()
	c, ok := k.shadows[h]
	if !ok {
		c = &instanceCache{}
		k.shadows[h] = c
	}
	return c
}

// RemoveComponent removes the component registered under key in this kernel
// and decommissions its cached instances. Removal is refused with
// ComponentInUseError while a Valid component in k or a descendant resolves
// to it, so a Valid handler never loses a dependency.
func (k *Kernel) RemoveComponent(key string) error {
	k.mu.RLock()
	h, ok := k.byKey[key]
	k.mu.RUnlock()
	if !ok {
		return &ComponentNotFoundError{Key: key}
	}

	validityMu.Lock()
	if dependents := k.dependentsOf(h); len(dependents) > 0 {
		validityMu.Unlock()
		return &ComponentInUseError{Key: key, Dependents: dependents}
	}

	k.mu.Lock()
	if k.byKey[key] != h {
		k.mu.Unlock()
		validityMu.Unlock()
		return &ComponentNotFoundError{Key: key}
	}
	delete(k.byKey, key)
	for _, s := range h.desc.Services {
		k.byService[s] = removeHandler(k.byService[s], h)
		if len(k.byService[s]) == 0 {
			delete(k.byService, s)
		}
	}
	k.order = removeHandler(k.order, h)
	wasWaiting := len(h.parked) > 0
	k.unparkLocked(h)
	k.mu.Unlock()
	h.markRemoved()
	validityMu.Unlock()

	if wasWaiting && !h.IsValid() {
		k.metrics.waiting(k.name, -1)
	}

	err := k.releaseHandlerInstances(h)
	k.logger.Debug("component removed", zapKernel(k), zapKey(key))
	k.events.removed.dispatch(ComponentRemovedEvent{Key: key, Handler: h})
	return err
}

func removeHandler(list []*Handler, h *Handler) []*Handler {
	out := list[:0:0]
	for _, x := range list {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// dependentsOf returns the keys of Valid components in k and its descendants
// whose dependency lookups currently resolve to h.
func (k *Kernel) dependentsOf(h *Handler) []string {
	var out []string
	var visit func(kernel *Kernel)
	visit = func(kernel *Kernel) {
		for _, x := range kernel.Handlers() {
			if x == h || !x.IsValid() {
				continue
			}
			for _, dep := range x.desc.Dependencies {
				if kernel.lookup(dep, x) == h {
					out = append(out, kernel.name+"/"+x.desc.Key)
					break
				}
			}
		}
		for _, child := range kernel.Children() {
			visit(child)
		}
	}
	visit(k)
	return out
}

// releaseHandlerInstances decommissions h's cached instances owned by k and
// drops shadow caches of h in k's descendants.
func (k *Kernel) releaseHandlerInstances(h *Handler) error {
	k.instMu.Lock()
	var mine []ownedInstance
	kept := k.owned[:0:0]
	for _, e := range k.owned {
		if e.burden.handler == h {
			mine = append(mine, e)
		} else {
			kept = append(kept, e)
		}
	}
	k.owned = kept
	k.instMu.Unlock()

	errs := []error{releaseOwned(mine)}
	var visit func(kernel *Kernel)
	visit = func(kernel *Kernel) {
		for _, child := range kernel.Children() {
			errs = append(errs, child.dropShadow(h))
			visit(child)
		}
	}
	visit(k)
	return errors.Join(errs...)
}

func (k *Kernel) dropShadow(h *Handler) error {
	k.instMu.Lock()
	if _, ok := k.shadows[h]; !ok {
		k.instMu.Unlock()
		return nil
	}
	delete(k.shadows, h)
	var mine []ownedInstance
	kept := k.owned[:0:0]
	for _, e := range k.owned {
		if e.burden.handler == h {
			mine = append(mine, e)
		} else {
			kept = append(kept, e)
		}
	}
	k.owned = kept
	k.instMu.Unlock()
	return releaseOwned(mine)
}

// Dispose tears the kernel down: child kernels are disposed first, the
// kernel is detached from its parent, open scopes are closed, tracked
// transient instances are released and cached instances are decommissioned
// in reverse construction order, dependents before their dependencies.
// Decommission failures are collected and returned together; they do not
// stop the teardown. Dispose is safe to call more than once.
func (k *Kernel) Dispose() error {
	k.mu.Lock()
	if k.disposed {
		k.mu.Unlock()
		return nil
	}
	k.disposed = true
	children := append([]*Kernel(nil), k.children...)
	parent := k.parent
	k.mu.Unlock()

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	if parent != nil {
		if err := parent.RemoveChildKernel(k); err != nil {
			errs = append(errs, err)
		}
	}

	k.instMu.Lock()
	scopes := make([]*Scope, 0, len(k.scopes))
	for s := range k.scopes {
		scopes = append(scopes, s)
	}
	tracked := k.untracked
	for _, stack := range k.tracked {
		tracked = append(tracked, stack...)
	}
	owned := k.owned
	k.owned = nil
	k.torndown = true
	k.tracked = make(map[any][]*burden)
	k.untracked = nil
	k.shadows = make(map[*Handler]*instanceCache)
	k.instMu.Unlock()

	for _, s := range scopes {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	sort.Slice(tracked, func(i, j int) bool { return tracked[i].seq > tracked[j].seq })
	for _, b := range tracked {
		if err := b.release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := releaseOwned(owned); err != nil {
		errs = append(errs, err)
	}

	k.mu.Lock()
	waiting := 0
	for _, h := range k.order {
		if !h.IsValid() {
			waiting++
		}
		h.markRemoved()
	}
	k.byKey = make(map[string]*Handler)
	k.byService = make(map[ServiceType][]*Handler)
	k.order = nil
	k.pending = make(map[dependencyIndex]map[*Handler]struct{})
	k.mu.Unlock()
	k.metrics.waiting(k.name, -float64(waiting))

	err := errors.Join(errs...)
	if err != nil {
		k.logger.Warn("kernel disposed with errors", zapKernel(k), zap.Error(err))
	} else {
		k.logger.Info("kernel disposed", zapKernel(k), zap.Int("instances", len(owned)+len(tracked)))
	}
	return err
}

func (k *Kernel) isDisposed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.disposed
}

// Handlers returns the handlers registered in this kernel, in registration
// order.
func (k *Kernel) Handlers() []*Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]*Handler(nil), k.order...)
}

// Handler returns the handler registered under key in this kernel only.
func (k *Kernel) Handler(key string) (*Handler, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	h, ok := k.byKey[key]
	return h, ok
}

// Graph returns a diagnostic snapshot of every handler of k.
func (k *Kernel) Graph() []HandlerInfo {
	handlers := k.Handlers()
	out := make([]HandlerInfo, len(handlers))
	for i, h := range handlers {
		out[i] = h.Info()
	}
	return out
}
