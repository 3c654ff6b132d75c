package ioc

// ComponentDescriptor is the static metadata of a registered component. It is
// supplied by a metadata source and is immutable once registered: the kernel
// keeps its own copy.
type ComponentDescriptor struct {
	// Key identifies the component within one kernel.
	Key string
	// Services are the contracts the component can be looked up by. When empty
	// the Implementation name is used.
	Services []ServiceType
	// Implementation names the concrete type. Informational for the kernel.
	Implementation string
	Lifestyle      Lifestyle
	// Dependencies are resolved in order before activation.
	Dependencies []DependencySpec
	// Interceptors are opaque references handed to the Activator.
	Interceptors []any

	// Activator overrides the kernel's creation strategy for this component.
	Activator Activator
	// Constructor is used by ConstructorActivator.
	Constructor Constructor

	CommissionSteps   []CommissionStep
	DecommissionSteps []DecommissionStep
}

// Provides reports whether the component can be looked up as service.
func (d *ComponentDescriptor) Provides(service ServiceType) bool {
	for _, s := range d.Services {
		if s == service {
			return true
		}
	}
	return false
}

func (d *ComponentDescriptor) validate() error {
	if d == nil {
		return &InvalidDescriptorError{Reason: "descriptor is nil"}
	}
	if d.Key == "" {
		return &InvalidDescriptorError{Reason: "key cannot be empty"}
	}
	if len(d.Services) == 0 && d.Implementation == "" {
		return &InvalidDescriptorError{Key: d.Key, Reason: "no service type or implementation"}
	}
	if _, ok := ParseLifestyle(string(d.Lifestyle)); !ok {
		return &InvalidDescriptorError{Key: d.Key, Reason: "unknown lifestyle " + string(d.Lifestyle)}
	}
	for i, dep := range d.Dependencies {
		if dep.Service == "" && dep.Key == "" {
			return &InvalidDescriptorError{Key: d.Key, Reason: "dependency has neither service nor key", Index: i + 1}
		}
	}
	return nil
}

// normalized returns a deep enough copy that later mutation of the caller's
// descriptor cannot reach the registered one.
func (d *ComponentDescriptor) normalized() *ComponentDescriptor {
	c := *d
	c.Lifestyle, _ = ParseLifestyle(string(d.Lifestyle))
	c.Services = append([]ServiceType(nil), d.Services...)
	if len(c.Services) == 0 {
		c.Services = []ServiceType{ServiceType(d.Implementation)}
	}
	c.Dependencies = append([]DependencySpec(nil), d.Dependencies...)
	c.Interceptors = append([]any(nil), d.Interceptors...)
	c.CommissionSteps = append([]CommissionStep(nil), d.CommissionSteps...)
	c.DecommissionSteps = append([]DecommissionStep(nil), d.DecommissionSteps...)
	return &c
}

// Arguments holds resolved dependency values by argument name. Absent
// optional dependencies are present with a nil value.
type Arguments map[string]any

// Arg returns the named argument converted to T. The second result is false
// when the argument is absent, nil or of another type.
func Arg[T any](args Arguments, name string) (T, bool) {
	var zero T
	v, ok := args[name]
	if !ok || v == nil {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
