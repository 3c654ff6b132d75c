package ioc

import "sync"

// ComponentRegisteredEvent is fired after a component is added to a kernel,
// whatever the state of its handler.
type ComponentRegisteredEvent struct {
	Key     string
	Handler *Handler
}

// ComponentModelCreatedEvent is fired when a descriptor has been accepted
// into the registry, before its handler is checked and ComponentRegistered
// fires. Rejected registrations fire nothing.
type ComponentModelCreatedEvent struct {
	Descriptor *ComponentDescriptor
}

// ComponentCreatedEvent is fired after an instance is constructed and
// commissioned.
type ComponentCreatedEvent struct {
	Descriptor *ComponentDescriptor
	Instance   any
}

// ComponentDestroyedEvent is fired after an instance is decommissioned, also
// when decommissioning failed.
type ComponentDestroyedEvent struct {
	Descriptor *ComponentDescriptor
	Instance   any
}

// ComponentRemovedEvent is fired after a component is removed from a kernel.
type ComponentRemovedEvent struct {
	Key     string
	Handler *Handler
}

// HandlersChangedEvent is fired when handlers visible from a kernel became
// Valid. Child kernels subscribe to their parent's event.
type HandlersChangedEvent struct {
	Kernel *Kernel
	Valid  []*Handler
}

// KernelCompositionEvent is fired on the child kernel when it is attached to
// or detached from a parent.
type KernelCompositionEvent struct {
	Parent *Kernel
	Child  *Kernel
}

type subscription[E any] struct {
	id int
	fn func(E)
}

// observers is a typed subscriber list. dispatch runs callbacks with no lock
// held so they may call back into the kernel.
type observers[E any] struct {
	mu   sync.RWMutex
	next int
	subs []subscription[E]
}

func (o *observers[E]) subscribe(fn func(E)) func() {
	o.mu.Lock()
	o.next++
	id := o.next
	o.subs = append(o.subs, subscription[E]{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.unsubscribe(id) })
	}
}

func (o *observers[E]) unsubscribe(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

func (o *observers[E]) dispatch(ev E) {
	o.mu.RLock()
	subs := o.subs
	o.mu.RUnlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

func (o *observers[E]) count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

type kernelEvents struct {
	registered      observers[ComponentRegisteredEvent]
	modelCreated    observers[ComponentModelCreatedEvent]
	created         observers[ComponentCreatedEvent]
	destroyed       observers[ComponentDestroyedEvent]
	removed         observers[ComponentRemovedEvent]
	handlersChanged observers[HandlersChangedEvent]
	addedAsChild    observers[KernelCompositionEvent]
	removedAsChild  observers[KernelCompositionEvent]
}

// OnComponentRegistered subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnComponentRegistered(fn func(ComponentRegisteredEvent)) func() {
	return k.events.registered.subscribe(fn)
}

// OnComponentModelCreated subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnComponentModelCreated(fn func(ComponentModelCreatedEvent)) func() {
	return k.events.modelCreated.subscribe(fn)
}

// OnComponentCreated subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnComponentCreated(fn func(ComponentCreatedEvent)) func() {
	return k.events.created.subscribe(fn)
}

// OnComponentDestroyed subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnComponentDestroyed(fn func(ComponentDestroyedEvent)) func() {
	return k.events.destroyed.subscribe(fn)
}

// OnComponentRemoved subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnComponentRemoved(fn func(ComponentRemovedEvent)) func() {
	return k.events.removed.subscribe(fn)
}

// OnHandlersChanged subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnHandlersChanged(fn func(HandlersChangedEvent)) func() {
	return k.events.handlersChanged.subscribe(fn)
}

// OnAddedAsChildKernel subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnAddedAsChildKernel(fn func(KernelCompositionEvent)) func() {
	return k.events.addedAsChild.subscribe(fn)
}

// OnRemovedAsChildKernel subscribes fn. The returned function unsubscribes.
func (k *Kernel) OnRemovedAsChildKernel(fn func(KernelCompositionEvent)) func() {
	return k.events.removedAsChild.subscribe(fn)
}
