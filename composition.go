package ioc

import (
	"sync"

	"go.uber.org/zap"
)

// compositionMu serializes changes to the kernel tree so that two concurrent
// AddChildKernel calls cannot build a cycle between them.
var compositionMu sync.Mutex

// Parent returns the kernel k was added to, or nil.
func (k *Kernel) Parent() *Kernel {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.parent
}

// Children returns the child kernels of k in the order they were added.
func (k *Kernel) Children() []*Kernel {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return append([]*Kernel(nil), k.children...)
}

func (k *Kernel) hasAncestor(a *Kernel) bool {
	for cur := k.Parent(); cur != nil; cur = cur.Parent() {
		if cur == a {
			return true
		}
	}
	return false
}

// AddChildKernel makes child a child of k. The child starts seeing k's
// components and those of k's ancestors: its waiting handlers are re-checked
// at once and follow every later registration in the chain.
func (k *Kernel) AddChildKernel(child *Kernel) error {
	if child == nil {
		return &InvalidCompositionError{Parent: k.name, Reason: "child kernel is nil"}
	}
	if child == k {
		return &InvalidCompositionError{Parent: k.name, Child: child.name, Reason: "a kernel cannot be its own child"}
	}

	compositionMu.Lock()
	if k.hasAncestor(child) {
		compositionMu.Unlock()
		return &InvalidCompositionError{Parent: k.name, Child: child.name, Reason: "child is an ancestor of the parent"}
	}
	if k.isDisposed() || child.isDisposed() {
		compositionMu.Unlock()
		return &InvalidCompositionError{Parent: k.name, Child: child.name, Reason: "kernel is disposed"}
	}

	child.mu.Lock()
	if child.parent != nil {
		current := child.parent.name
		child.mu.Unlock()
		compositionMu.Unlock()
		return &InvalidCompositionError{Parent: k.name, Child: child.name, Reason: "child already has parent " + current}
	}
	child.parent = k
	child.mu.Unlock()

	unsubscribe := k.events.handlersChanged.subscribe(func(ev HandlersChangedEvent) {
		child.wake(ev.Valid)
	})

	k.mu.Lock()
	k.children = append(k.children, child)
	k.mu.Unlock()

	child.mu.Lock()
	child.parentSub = unsubscribe
	child.mu.Unlock()
	compositionMu.Unlock()

	k.logger.Info("child kernel added", zapKernel(k), zap.String("child", child.name))
	child.events.addedAsChild.dispatch(KernelCompositionEvent{Parent: k, Child: child})
	child.recheckWaiting()
	return nil
}

// RemoveChildKernel detaches child from k. Handlers of the child that are
// already Valid stay Valid; resolving through them fails once a dependency
// that only the former parent provided is needed.
func (k *Kernel) RemoveChildKernel(child *Kernel) error {
	if child == nil {
		return &InvalidCompositionError{Parent: k.name, Reason: "child kernel is nil"}
	}

	compositionMu.Lock()
	k.mu.Lock()
	idx := -1
	for i, c := range k.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		k.mu.Unlock()
		compositionMu.Unlock()
		return &InvalidCompositionError{Parent: k.name, Child: child.name, Reason: "not a child of this kernel"}
	}
	k.children = append(k.children[:idx:idx], k.children[idx+1:]...)
	k.mu.Unlock()

	child.mu.Lock()
	unsubscribe := child.parentSub
	child.parent = nil
	child.parentSub = nil
	child.mu.Unlock()
	compositionMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	k.logger.Info("child kernel removed", zapKernel(k), zap.String("child", child.name))
	child.events.removedAsChild.dispatch(KernelCompositionEvent{Parent: k, Child: child})
	return nil
}
