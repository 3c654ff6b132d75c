// Package ioc is a hierarchical inversion-of-control container.
//
// A Kernel holds a registry of component handlers. Each handler wraps a
// ComponentDescriptor (key, service types, lifestyle, dependencies) and is
// either Valid, when every required dependency can be satisfied, or waiting.
// Waiting handlers become Valid automatically as soon as what they need is
// registered, in their own kernel or in any ancestor.
//
// Kernels form a tree. A child sees the components of its parent chain; the
// parent never sees the child's. Resolving a parent component from a child
// whose own registrations shadow one of its dependencies builds a separate
// instance owned by the child.
//
// Basic usage:
//
//	k := ioc.NewKernel(ioc.WithName("app"), ioc.WithLogger(logger))
//	defer k.Dispose()
//
//	ioc.BindSingleton(k, "engine", newTemplateEngine)
//	ioc.BindTransient(k, "sender", newMailSender,
//		ioc.DependsOn[TemplateEngine]().Named("engine"))
//
//	sender, err := ioc.Resolve[MailSender](k)
//
// Instances are created by the descriptor's Activator, or the kernel's
// default one, and commissioned before use. Transient instances end their
// life with Release; cached ones with Scope.Close, RemoveComponent or
// Dispose.
package ioc
