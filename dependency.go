package ioc

import (
	"reflect"
	"sync"
)

// ServiceType names a contract a component can be looked up by. It is an
// opaque identity: the kernel compares service types, it never inspects them.
type ServiceType string

var typeNameCache sync.Map

// TypeOf returns the ServiceType for T. Named types are qualified with their
// package path so that identically named types in different packages do not
// collide.
//
//	ioc.TypeOf[MailSender]() // "github.com/acme/mail.MailSender"
func TypeOf[T any]() ServiceType {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := typeNameCache.Load(t); ok {
		return cached.(ServiceType)
	}
	name := ServiceType(qualifiedName(t))
	typeNameCache.Store(t, name)
	return name
}

func qualifiedName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return "*" + qualifiedName(t.Elem())
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// DependencySpec describes one required input of a component.
//
// A dependency with a Key is looked up by key only; otherwise it is looked up
// by Service. Name is the argument name the resolved value is delivered under
// and the name runtime overrides are matched against.
type DependencySpec struct {
	Service  ServiceType
	Key      string
	Optional bool
	Name     string
}

// DependsOn declares a required dependency on T.
func DependsOn[T any]() DependencySpec {
	return DependencySpec{Service: TypeOf[T]()}
}

// DependsOnService declares a required dependency on a service type.
func DependsOnService(service ServiceType) DependencySpec {
	return DependencySpec{Service: service}
}

// DependsOnKey declares a required dependency on the component registered
// under key.
func DependsOnKey(key string) DependencySpec {
	return DependencySpec{Key: key}
}

// Named returns a copy of d delivered under the argument name.
func (d DependencySpec) Named(name string) DependencySpec {
	d.Name = name
	return d
}

// WithKey returns a copy of d that is looked up by key.
func (d DependencySpec) WithKey(key string) DependencySpec {
	d.Key = key
	return d
}

// AsOptional returns a copy of d that resolves to nil when unsatisfied.
func (d DependencySpec) AsOptional() DependencySpec {
	d.Optional = true
	return d
}

// ArgumentName is the name the resolved value is passed to the activator
// under: Name, else Key, else the service type.
func (d DependencySpec) ArgumentName() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.Key != "":
		return d.Key
	default:
		return string(d.Service)
	}
}

func (d DependencySpec) String() string {
	s := string(d.Service)
	if d.Key != "" {
		if s == "" {
			s = "key " + d.Key
		} else {
			s += " (key " + d.Key + ")"
		}
	}
	if d.Optional {
		s += " [optional]"
	}
	return s
}

// dependencyIndex is the pending-dependent index entry a missing dependency
// is parked under.
type dependencyIndex string

func (d DependencySpec) index() dependencyIndex {
	if d.Key != "" {
		return dependencyIndex("key:" + d.Key)
	}
	return dependencyIndex("type:" + string(d.Service))
}

func keyIndex(key string) dependencyIndex {
	return dependencyIndex("key:" + key)
}

func serviceIndex(service ServiceType) dependencyIndex {
	return dependencyIndex("type:" + string(service))
}
