package ioc

import (
	"sync"
)

// HandlerState is the resolution state of a registered component.
type HandlerState int

const (
	// WaitingDependency means at least one required dependency is not
	// available yet.
	WaitingDependency HandlerState = iota
	// Valid means every required dependency is satisfiable. A handler never
	// leaves this state.
	Valid
)

func (s HandlerState) String() string {
	switch s {
	case WaitingDependency:
		return "WaitingDependency"
	case Valid:
		return "Valid"
	default:
		return "Unknown"
	}
}

// Handler is the runtime wrapper of a registered component. It tracks the
// resolution state and, for caching lifestyles, the component's instances.
type Handler struct {
	desc   *ComponentDescriptor
	kernel *Kernel

	mu      sync.RWMutex
	state   HandlerState
	missing []DependencySpec
	removed bool

	// parked lists the pending-dependent index entries of the owning kernel
	// this handler is registered under. Guarded by kernel.mu.
	parked []dependencyIndex

	cache instanceCache
}

func newHandler(desc *ComponentDescriptor, k *Kernel) *Handler {
	return &Handler{
		desc:   desc,
		kernel: k,
		state:  WaitingDependency,
	}
}

// Key returns the component key.
func (h *Handler) Key() string { return h.desc.Key }

// Descriptor returns the registered descriptor. Callers must not modify it.
func (h *Handler) Descriptor() *ComponentDescriptor { return h.desc }

// Kernel returns the kernel the component is registered in.
func (h *Handler) Kernel() *Kernel { return h.kernel }

// State returns the current resolution state.
func (h *Handler) State() HandlerState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// IsValid reports whether the handler is Valid.
func (h *Handler) IsValid() bool {
	return h.State() == Valid
}

// MissingDependencies returns the required dependencies that were not
// satisfiable at the last check. It is empty once the handler is Valid.
func (h *Handler) MissingDependencies() []DependencySpec {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]DependencySpec(nil), h.missing...)
}

// Resolve activates the component from its own kernel.
func (h *Handler) Resolve(opts ...ResolveOption) (any, error) {
	return h.kernel.activateRoot(h, newResolveOptions(opts))
}

func (h *Handler) setMissing(missing []DependencySpec) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == WaitingDependency {
		h.missing = missing
	}
}

// markValid performs the WaitingDependency -> Valid transition. It reports
// true only to the caller that made the transition.
func (h *Handler) markValid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Valid || h.removed {
		return false
	}
	h.state = Valid
	h.missing = nil
	return true
}

func (h *Handler) markRemoved() {
	h.mu.Lock()
	h.removed = true
	h.mu.Unlock()
}

func (h *Handler) isRemoved() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.removed
}

// HandlerInfo is a point-in-time snapshot of a handler for diagnostics.
type HandlerInfo struct {
	Key            string
	Kernel         string
	Services       []string
	Implementation string
	Lifestyle      string
	State          string
	Dependencies   []string
	Missing        []string
	Instances      int
	Interceptors   int
}

// Info returns a diagnostic snapshot of the handler.
func (h *Handler) Info() HandlerInfo {
	info := HandlerInfo{
		Key:            h.desc.Key,
		Kernel:         h.kernel.Name(),
		Implementation: h.desc.Implementation,
		Lifestyle:      h.desc.Lifestyle.String(),
		State:          h.State().String(),
		Instances:      h.cache.len(),
		Interceptors:   len(h.desc.Interceptors),
	}
	for _, s := range h.desc.Services {
		info.Services = append(info.Services, string(s))
	}
	for _, d := range h.desc.Dependencies {
		info.Dependencies = append(info.Dependencies, d.String())
	}
	for _, d := range h.MissingDependencies() {
		info.Missing = append(info.Missing, d.String())
	}
	return info
}
