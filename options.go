package ioc

import (
	"context"

	"go.uber.org/zap"
)

// Option configures a Kernel at construction.
type Option func(*Kernel)

// WithName sets the kernel name used in logs, errors and metrics.
func WithName(name string) Option {
	return func(k *Kernel) {
		if name != "" {
			k.name = name
		}
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithMetrics records kernel activity on m. Kernels of one tree may share m.
func WithMetrics(m *Metrics) Option {
	return func(k *Kernel) {
		k.metrics = m
	}
}

// WithDefaultActivator sets the creation strategy for descriptors that do
// not carry their own. The default is ConstructorActivator.
func WithDefaultActivator(a Activator) Option {
	return func(k *Kernel) {
		if a != nil {
			k.activator = a
		}
	}
}

// ResolveOption configures a single resolution.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	ctx       context.Context
	overrides map[string]any
	scope     *Scope
}

func newResolveOptions(opts []ResolveOption) resolveOptions {
	ro := resolveOptions{ctx: context.Background()}
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

// WithOverrides supplies values for the requested component's dependencies,
// matched by argument name. Overrides do not reach nested components.
func WithOverrides(overrides map[string]any) ResolveOption {
	return func(ro *resolveOptions) {
		if ro.overrides == nil {
			ro.overrides = make(map[string]any, len(overrides))
		}
		for k, v := range overrides {
			ro.overrides[k] = v
		}
	}
}

// InScope resolves per-scope components in s.
func InScope(s *Scope) ResolveOption {
	return func(ro *resolveOptions) {
		ro.scope = s
	}
}

// WithContext sets the context.Context wrapped by the CreationContext handed
// to activators.
func WithContext(ctx context.Context) ResolveOption {
	return func(ro *resolveOptions) {
		if ctx != nil {
			ro.ctx = ctx
		}
	}
}
