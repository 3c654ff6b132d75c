package manifest

import (
	"errors"
	"fmt"

	"github.com/centraunit/ioc"
)

// UnknownImplementationError represents an implementation name missing from
// a Catalog.
type UnknownImplementationError struct {
	Implementation string
}

func (e *UnknownImplementationError) Error() string {
	return fmt.Sprintf("no activator registered for implementation %q", e.Implementation)
}

// Catalog maps implementation names used in manifests to creation
// strategies.
type Catalog map[string]ioc.Activator

// Add registers the activator for an implementation name.
func (c Catalog) Add(implementation string, activator ioc.Activator) Catalog {
	c[implementation] = activator
	return c
}

// AddConstructor registers a plain constructor for an implementation name.
func (c Catalog) AddConstructor(implementation string, ctor ioc.Constructor) Catalog {
	return c.Add(implementation, ioc.ActivatorFunc(func(ctx *ioc.CreationContext, desc *ioc.ComponentDescriptor, args ioc.Arguments) (any, error) {
		return ctor(ctx, args)
	}))
}

// Lookup returns the activator for implementation.
func (c Catalog) Lookup(implementation string) (ioc.Activator, error) {
	a, ok := c[implementation]
	if !ok {
		return nil, &UnknownImplementationError{Implementation: implementation}
	}
	return a, nil
}

// Tree is the result of Install: the kernel the manifest was installed into
// and one Tree per child kernel created for it.
type Tree struct {
	Kernel   *ioc.Kernel
	Children []*Tree
}

// Walk calls fn for t and every descendant, parents first.
func (t *Tree) Walk(fn func(depth int, k *ioc.Kernel)) {
	var walk func(n *Tree, depth int)
	walk = func(n *Tree, depth int) {
		fn(depth, n.Kernel)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(t, 0)
}

// Install registers m's components in k and builds its child kernels with
// opts (plus the child's name), attached below k. Registration stops at the
// first error; child kernels created so far stay attached and are disposed
// with k.
func Install(k *ioc.Kernel, m *Manifest, catalog Catalog, opts ...ioc.Option) (*Tree, error) {
	descs, err := m.Descriptors(catalog)
	if err != nil {
		return nil, err
	}
	for _, desc := range descs {
		if _, err := k.Register(desc); err != nil {
			return nil, fmt.Errorf("kernel %s: %w", k.Name(), err)
		}
	}

	tree := &Tree{Kernel: k}
	for i := range m.Children {
		spec := &m.Children[i]
		childOpts := append(append([]ioc.Option(nil), opts...), ioc.WithName(spec.Kernel))
		child := ioc.NewKernel(childOpts...)
		if err := k.AddChildKernel(child); err != nil {
			return nil, err
		}
		sub, err := Install(child, spec, catalog, opts...)
		if err != nil {
			return nil, err
		}
		tree.Children = append(tree.Children, sub)
	}
	return tree, nil
}

// Problem is a handler that cannot be resolved.
type Problem struct {
	Kernel string
	Key    string
	Err    error
}

// Validate reports every waiting handler of the tree, with the reason the
// kernel gives for it: a circular dependency chain or the missing
// dependencies.
func (t *Tree) Validate() []Problem {
	var problems []Problem
	t.Walk(func(_ int, k *ioc.Kernel) {
		for _, h := range k.Handlers() {
			if h.IsValid() {
				continue
			}
			_, err := h.Resolve()
			problems = append(problems, Problem{Kernel: k.Name(), Key: h.Key(), Err: err})
		}
	})
	return problems
}

// IsCircular reports whether p is caused by a dependency cycle.
func (p Problem) IsCircular() bool {
	var circular *ioc.CircularDependencyError
	return errors.As(p.Err, &circular)
}
