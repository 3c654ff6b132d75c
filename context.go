package ioc

import (
	"context"
	"sync"
)

// CreationContext extends context.Context with the state of one activation.
// Activators and commission hooks receive it; runtime overrides are carried
// as context values keyed by argument name.
type CreationContext struct {
	context.Context
	values sync.Map

	kernel *Kernel
	desc   *ComponentDescriptor
	scope  *Scope
}

// NewCreationContext creates a CreationContext wrapping a standard
// context.Context. A nil parent is replaced by context.Background().
func NewCreationContext(parent context.Context) *CreationContext {
	if parent == nil {
		parent = context.Background()
	}
	return &CreationContext{
		Context: parent,
	}
}

// WithValue returns a new CreationContext with the provided key-value pair.
// The new context inherits all values and activation state from c.
func (c *CreationContext) WithValue(key, val any) *CreationContext {
	newCtx := c.derive(c.desc)
	newCtx.values.Store(key, val)
	return newCtx
}

// WithOverrides returns a new CreationContext whose values include every
// entry of overrides. Existing values with the same name are replaced.
func (c *CreationContext) WithOverrides(overrides map[string]any) *CreationContext {
	newCtx := c.derive(c.desc)
	for k, v := range overrides {
		newCtx.values.Store(k, v)
	}
	return newCtx
}

// Parent returns the wrapped context.Context.
func (c *CreationContext) Parent() context.Context {
	return c.Context
}

// Value looks up key in the creation values, then in the wrapped context.
func (c *CreationContext) Value(key any) any {
	if c == nil {
		return nil
	}
	if val, ok := c.values.Load(key); ok {
		return val
	}
	if c.Context != nil {
		return c.Context.Value(key)
	}
	return nil
}

// Override returns the runtime override stored under an argument name. Only
// creation values are consulted, never the wrapped context.
func (c *CreationContext) Override(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	return c.values.Load(name)
}

// MergeWith combines values from another CreationContext.
// Values from the other context override existing values with the same key.
func (c *CreationContext) MergeWith(other *CreationContext) *CreationContext {
	newCtx := c.derive(c.desc)
	if other != nil {
		other.values.Range(func(k, v any) bool {
			newCtx.values.Store(k, v)
			return true
		})
	}
	return newCtx
}

// Kernel is the kernel the resolution was requested from.
func (c *CreationContext) Kernel() *Kernel { return c.kernel }

// Descriptor is the component being activated, nil outside an activation.
func (c *CreationContext) Descriptor() *ComponentDescriptor { return c.desc }

// Scope is the scope the resolution runs in, nil when none.
func (c *CreationContext) Scope() *Scope { return c.scope }

func (c *CreationContext) derive(desc *ComponentDescriptor) *CreationContext {
	newCtx := &CreationContext{
		Context: c.Context,
		kernel:  c.kernel,
		desc:    desc,
		scope:   c.scope,
	}
	c.values.Range(func(k, v any) bool {
		newCtx.values.Store(k, v)
		return true
	})
	return newCtx
}

// forComponent returns the context handed to desc's activator. Overrides
// only apply to the component that was requested, so nested components get
// a context without creation values.
func (c *CreationContext) forComponent(desc *ComponentDescriptor, root bool) *CreationContext {
	if root {
		return c.derive(desc)
	}
	return &CreationContext{
		Context: c.Context,
		kernel:  c.kernel,
		desc:    desc,
		scope:   c.scope,
	}
}
