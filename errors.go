package ioc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoConstructor is returned by ConstructorActivator when the descriptor
// has no Constructor.
var ErrNoConstructor = errors.New("no usable constructor")

// DuplicateKeyError represents a registration under a key already present in
// the same kernel.
type DuplicateKeyError struct {
	Key    string
	Kernel string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("component %q already registered in kernel %s", e.Key, e.Kernel)
}

// ComponentNotFoundError represents a lookup that found no handler anywhere
// in the visible kernel chain.
type ComponentNotFoundError struct {
	Service ServiceType
	Key     string
}

func (e *ComponentNotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("no component found for key: %s", e.Key)
	}
	return fmt.Sprintf("no component found for service: %s", e.Service)
}

// NotValidError represents a resolution of a handler still waiting for
// dependencies.
type NotValidError struct {
	Key     string
	Missing []DependencySpec
}

func (e *NotValidError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, d := range e.Missing {
		missing[i] = d.String()
	}
	return fmt.Sprintf("component %q is waiting for dependencies: %s", e.Key, strings.Join(missing, ", "))
}

// CircularDependencyError represents a dependency cycle. Chain lists the
// component keys in resolution order, ending with the revisited key.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}

// Activation phases
const (
	PhaseConstruct  = "construct"
	PhaseCommission = "commission"
)

// ActivationError represents a failure of the creation strategy or of a
// commission step.
type ActivationError struct {
	Key   string
	Phase string
	Err   error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activation of %q failed during %s: %v", e.Key, e.Phase, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// InvalidCompositionError represents an illegal kernel parent/child change.
type InvalidCompositionError struct {
	Parent string
	Child  string
	Reason string
}

func (e *InvalidCompositionError) Error() string {
	return fmt.Sprintf("invalid composition of kernel %s under %s: %s", e.Child, e.Parent, e.Reason)
}

// MissingScopeError represents a per-scope resolution without a scope.
type MissingScopeError struct {
	Key string
}

func (e *MissingScopeError) Error() string {
	return fmt.Sprintf("component %q is per-scope and requires a scope", e.Key)
}

// ScopeClosedError represents a resolution in a scope that has been closed.
type ScopeClosedError struct {
	Scope string
}

func (e *ScopeClosedError) Error() string {
	return fmt.Sprintf("scope %s is closed", e.Scope)
}

// InvalidDescriptorError represents a descriptor rejected at registration.
type InvalidDescriptorError struct {
	Key    string
	Reason string
	// Index is the 1-based dependency position the reason refers to, 0 when
	// it concerns the descriptor itself.
	Index int
}

func (e *InvalidDescriptorError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("invalid descriptor %q: dependency %d: %s", e.Key, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid descriptor %q: %s", e.Key, e.Reason)
}

// ComponentInUseError represents a removal refused because valid components
// still resolve to the component.
type ComponentInUseError struct {
	Key        string
	Dependents []string
}

func (e *ComponentInUseError) Error() string {
	return fmt.Sprintf("component %q is used by: %s", e.Key, strings.Join(e.Dependents, ", "))
}

// DecommissionError represents a decommission failure of one instance.
type DecommissionError struct {
	Key string
	Err error
}

func (e *DecommissionError) Error() string {
	return fmt.Sprintf("decommission failed for %q: %v", e.Key, e.Err)
}

func (e *DecommissionError) Unwrap() error {
	return e.Err
}

// KernelDisposedError represents an operation on a disposed kernel.
type KernelDisposedError struct {
	Kernel string
}

func (e *KernelDisposedError) Error() string {
	return fmt.Sprintf("kernel %s is disposed", e.Kernel)
}

// TypeMismatchError represents a resolved instance that does not implement
// the type requested by a generic helper.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}
