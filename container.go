package ioc

import (
	"fmt"
	"reflect"
)

// Bind registers a component providing T, built by ctor from the resolved
// values of deps. The implementation name is T's qualified type name.
func Bind[T any](k *Kernel, key string, lifestyle Lifestyle, ctor func(ctx *CreationContext, args Arguments) (T, error), deps ...DependencySpec) (*Handler, error) {
	service := TypeOf[T]()
	return k.Register(&ComponentDescriptor{
		Key:            key,
		Services:       []ServiceType{service},
		Implementation: string(service),
		Lifestyle:      lifestyle,
		Dependencies:   deps,
		Constructor: func(ctx *CreationContext, args Arguments) (any, error) {
			return ctor(ctx, args)
		},
	})
}

// BindSingleton registers T with one shared instance per kernel.
func BindSingleton[T any](k *Kernel, key string, ctor func(ctx *CreationContext, args Arguments) (T, error), deps ...DependencySpec) (*Handler, error) {
	return Bind(k, key, Singleton, ctor, deps...)
}

// BindTransient registers T with a new instance for each resolution.
func BindTransient[T any](k *Kernel, key string, ctor func(ctx *CreationContext, args Arguments) (T, error), deps ...DependencySpec) (*Handler, error) {
	return Bind(k, key, Transient, ctor, deps...)
}

// BindPerThread registers T with one instance per goroutine.
func BindPerThread[T any](k *Kernel, key string, ctor func(ctx *CreationContext, args Arguments) (T, error), deps ...DependencySpec) (*Handler, error) {
	return Bind(k, key, PerThread, ctor, deps...)
}

// BindPerScope registers T with one instance per Scope.
func BindPerScope[T any](k *Kernel, key string, ctor func(ctx *CreationContext, args Arguments) (T, error), deps ...DependencySpec) (*Handler, error) {
	return Bind(k, key, PerScope, ctor, deps...)
}

// Resolve resolves T from k.
// Returns ComponentNotFoundError if no component provides T.
// Returns TypeMismatchError if the instance is not a T.
func Resolve[T any](k *Kernel, opts ...ResolveOption) (T, error) {
	instance, err := k.Resolve(TypeOf[T](), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](instance)
}

// ResolveKeyed resolves the component registered under key as a T.
func ResolveKeyed[T any](k *Kernel, key string, opts ...ResolveOption) (T, error) {
	instance, err := k.ResolveKey(key, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](instance)
}

// ResolveScoped resolves T within s.
func ResolveScoped[T any](s *Scope, opts ...ResolveOption) (T, error) {
	return Resolve[T](s.kernel, append(opts, InScope(s))...)
}

// MustResolve is Resolve panicking on error. Intended for wiring code at
// program start.
func MustResolve[T any](k *Kernel, opts ...ResolveOption) T {
	v, err := Resolve[T](k, opts...)
	if err != nil {
		panic(fmt.Sprintf("ioc: resolving %s: %v", TypeOf[T](), err))
	}
	return v
}

func cast[T any](instance any) (T, error) {
	typed, ok := instance.(T)
	if !ok {
		var zero T
		return zero, &TypeMismatchError{
			Expected: string(TypeOf[T]()),
			Got:      reflect.TypeOf(instance).String(),
		}
	}
	return typed, nil
}
