package ioc

// Commissionable is implemented by components that need a hook after
// construction. It runs once the component's dependencies are commissioned.
type Commissionable interface {
	OnCommission(ctx *CreationContext) error
}

// Decommissionable is implemented by components that release resources
// before they are discarded.
type Decommissionable interface {
	OnDecommission() error
}

// CommissionStep is an extra commission hook declared on a descriptor.
type CommissionStep func(ctx *CreationContext, instance any) error

// DecommissionStep is an extra decommission hook declared on a descriptor.
type DecommissionStep func(instance any) error

// Activator is the instance creation strategy. Given a descriptor and its
// resolved dependency values it returns the constructed, possibly wrapped,
// instance. The kernel does not inspect how the instance is built.
type Activator interface {
	Create(ctx *CreationContext, desc *ComponentDescriptor, args Arguments) (any, error)
}

// ActivatorFunc adapts a function to the Activator interface.
type ActivatorFunc func(ctx *CreationContext, desc *ComponentDescriptor, args Arguments) (any, error)

// Create calls f.
func (f ActivatorFunc) Create(ctx *CreationContext, desc *ComponentDescriptor, args Arguments) (any, error) {
	return f(ctx, desc, args)
}

// Constructor builds an instance from resolved dependency values. It is the
// designated constructor used by ConstructorActivator.
type Constructor func(ctx *CreationContext, args Arguments) (any, error)

// ConstructorActivator is the default creation strategy: it calls the
// descriptor's Constructor.
type ConstructorActivator struct{}

// Create implements Activator.
func (ConstructorActivator) Create(ctx *CreationContext, desc *ComponentDescriptor, args Arguments) (any, error) {
	if desc.Constructor == nil {
		return nil, ErrNoConstructor
	}
	return desc.Constructor(ctx, args)
}

// Lifestyle defines the instance sharing policy of a component.
type Lifestyle string

// Available lifestyles
const (
	// Singleton shares one instance per handler (the default)
	Singleton Lifestyle = "singleton"
	// Transient creates a new instance for each resolution
	Transient Lifestyle = "transient"
	// PerThread shares an instance per goroutine
	PerThread Lifestyle = "per-thread"
	// PerScope shares an instance within a Scope
	PerScope Lifestyle = "per-scope"
)

// ParseLifestyle converts a textual lifestyle. The empty string is Singleton.
func ParseLifestyle(s string) (Lifestyle, bool) {
	switch Lifestyle(s) {
	case "", Singleton:
		return Singleton, true
	case Transient, PerThread, PerScope:
		return Lifestyle(s), true
	case "perthread", "thread":
		return PerThread, true
	case "perscope", "scoped", "scope":
		return PerScope, true
	}
	return "", false
}

func (l Lifestyle) String() string {
	if l == "" {
		return string(Singleton)
	}
	return string(l)
}

// caches reports whether instances of this lifestyle are kept by the kernel.
func (l Lifestyle) caches() bool {
	return l != Transient
}
