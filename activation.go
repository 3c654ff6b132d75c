package ioc

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// resolution is the state of one root Resolve call: the kernel it was
// requested from, the shared creation context and the stack of components
// being activated.
type resolution struct {
	kernel *Kernel
	ctx    *CreationContext
	scope  *Scope
	stack  []*Handler
}

// activateRoot resolves h for a caller of k. Transient results are tracked
// on k so that Release can end their life.
func (k *Kernel) activateRoot(h *Handler, ro resolveOptions) (any, error) {
	if !h.IsValid() {
		err := k.diagnose(h)
		k.metrics.resolved(k.name, err)
		return nil, err
	}
	if ro.scope != nil && ro.scope.isClosed() {
		err := &ScopeClosedError{Scope: ro.scope.ID().String()}
		k.metrics.resolved(k.name, err)
		return nil, err
	}

	ctx := NewCreationContext(ro.ctx).WithOverrides(ro.overrides)
	ctx.kernel = k
	ctx.scope = ro.scope
	r := &resolution{kernel: k, ctx: ctx, scope: ro.scope}

	b, err := r.activate(h, true)
	k.metrics.resolved(k.name, err)
	if err != nil {
		return nil, err
	}
	if !h.desc.Lifestyle.caches() {
		k.track(b)
	}
	return b.instance, nil
}

// activate returns the burden of an instance of h, creating it when the
// lifestyle demands it. Cached burdens are shared and must not be adopted as
// children by the caller.
func (r *resolution) activate(h *Handler, root bool) (*burden, error) {
	for _, s := range r.stack {
		if s == h {
			return nil, &CircularDependencyError{Chain: cycleChain(r.stack, h)}
		}
	}
	r.stack = append(r.stack, h)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	if !h.desc.Lifestyle.caches() {
		args, children, err := r.resolveArguments(h, root)
		if err != nil {
			return nil, err
		}
		b, err := r.build(h, args, children, root)
		if err != nil {
			return nil, err
		}
		r.created(b)
		return b, nil
	}

	cache, key, owner, err := r.cacheFor(h)
	if err != nil {
		return nil, err
	}
	if b, ok := cache.get(key); ok {
		return b, nil
	}

	// Dependencies are resolved before the creation slot is taken; only
	// construction and commissioning run inside it.
	args, children, err := r.resolveArguments(h, root)
	if err != nil {
		return nil, err
	}

	release, err := acquireSlot(h, cache, key)
	if err != nil {
		r.discard(h, children)
		return nil, err
	}
	if b, ok := cache.get(key); ok {
		release()
		r.discard(h, children)
		return b, nil
	}

	b, err := r.build(h, args, children, root)
	if err != nil {
		release()
		return nil, err
	}
	cache.put(key, b)
	release()

	owner.own(ownedInstance{cache: cache, key: key, burden: b})
	r.created(b)
	return b, nil
}

// cacheFor selects the cache slot of a caching lifestyle and the kernel or
// scope that will decommission the instance.
func (r *resolution) cacheFor(h *Handler) (*instanceCache, cacheKey, instanceOwner, error) {
	var key cacheKey
	var owner instanceOwner = h.kernel
	cache := &h.cache

	switch h.desc.Lifestyle {
	case PerThread:
		key.thread = goid()
	case PerScope:
		if r.scope == nil {
			return nil, key, nil, &MissingScopeError{Key: h.desc.Key}
		}
		key.scope = r.scope.id
		owner = r.scope
	}

	if r.kernel != h.kernel && r.shadowed(h) {
		cache = r.kernel.shadowCache(h)
		if h.desc.Lifestyle != PerScope {
			owner = r.kernel
		}
	}
	return cache, key, owner, nil
}

// shadowed reports whether some dependency of h, looked up transitively from
// the requesting kernel, lands in a kernel below h's own. The instance built
// then differs from the one h's kernel would build and is kept by the
// requesting kernel.
func (r *resolution) shadowed(h *Handler) bool {
	below := make(map[*Kernel]bool)
	for cur := r.kernel; cur != nil && cur != h.kernel; cur = cur.Parent() {
		below[cur] = true
	}

	visited := make(map[*Handler]bool)
	var walk func(x *Handler) bool
	walk = func(x *Handler) bool {
		if visited[x] {
			return false
		}
		visited[x] = true
		for _, dep := range x.desc.Dependencies {
			d := r.kernel.lookup(dep, x)
			if d == nil {
				continue
			}
			if below[d.kernel] || walk(d) {
				return true
			}
		}
		return false
	}
	return walk(h)
}

// resolveArguments resolves h's dependencies in declaration order. Transient
// dependency instances are returned as children of the future instance. On
// failure every child created so far is released, so no partially built
// graph survives.
func (r *resolution) resolveArguments(h *Handler, root bool) (Arguments, []*burden, error) {
	args := make(Arguments, len(h.desc.Dependencies))
	var children []*burden

	fail := func(err error) (Arguments, []*burden, error) {
		if relErr := releaseAll(children); relErr != nil {
			r.kernel.logger.Warn("releasing dependencies after failed activation",
				zapKernel(r.kernel), zapKey(h.desc.Key), zap.Error(relErr))
		}
		return nil, nil, err
	}

	for _, dep := range h.desc.Dependencies {
		name := dep.ArgumentName()
		if root {
			if v, ok := r.ctx.Override(name); ok {
				args[name] = v
				continue
			}
		}

		d := r.kernel.lookup(dep, h)
		if d == nil {
			if dep.Optional {
				args[name] = nil
				continue
			}
			return fail(fmt.Errorf("resolving %s for %q: %w", dep, h.desc.Key,
				&ComponentNotFoundError{Service: dep.Service, Key: dep.Key}))
		}
		if !d.IsValid() {
			if dep.Optional {
				args[name] = nil
				continue
			}
			return fail(fmt.Errorf("resolving %s for %q: %w", dep, h.desc.Key, d.kernel.diagnose(d)))
		}

		b, err := r.activate(d, false)
		if err != nil {
			var circular *CircularDependencyError
			if errors.As(err, &circular) {
				return fail(err)
			}
			return fail(fmt.Errorf("resolving %s for %q: %w", dep, h.desc.Key, err))
		}
		if !d.desc.Lifestyle.caches() {
			children = append(children, b)
		}
		args[name] = b.instance
	}
	return args, children, nil
}

// build asks the creation strategy for the instance and commissions it. The
// dependencies are already commissioned at this point.
func (r *resolution) build(h *Handler, args Arguments, children []*burden, root bool) (*burden, error) {
	ctx := r.ctx.forComponent(h.desc, root)

	activator := h.desc.Activator
	if activator == nil {
		activator = h.kernel.activator
	}

	instance, err := activator.Create(ctx, h.desc, args)
	if err == nil && instance == nil {
		err = errors.New("creation strategy returned nil instance")
	}
	if err != nil {
		r.discard(h, children)
		return nil, &ActivationError{Key: h.desc.Key, Phase: PhaseConstruct, Err: err}
	}

	if err := commission(ctx, h.desc, instance); err != nil {
		r.discard(h, children)
		return nil, &ActivationError{Key: h.desc.Key, Phase: PhaseCommission, Err: err}
	}

	return newBurden(h, instance, children), nil
}

// created reports a new instance. It runs with no creation slot held, so
// subscribers may resolve from any kernel.
func (r *resolution) created(b *burden) {
	h := b.handler
	h.kernel.metrics.created(h.desc.Lifestyle)
	h.kernel.logger.Debug("component activated",
		zapKernel(h.kernel), zapKey(h.desc.Key),
		zap.String("lifestyle", h.desc.Lifestyle.String()),
		zap.String("requested_from", r.kernel.name))
	h.kernel.events.created.dispatch(ComponentCreatedEvent{Descriptor: h.desc, Instance: b.instance})
}

func (r *resolution) discard(h *Handler, children []*burden) {
	if err := releaseAll(children); err != nil {
		r.kernel.logger.Warn("releasing dependencies after failed activation",
			zapKernel(r.kernel), zapKey(h.desc.Key), zap.Error(err))
	}
}
