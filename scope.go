package ioc

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Scope is a unit of work, typically one request, that per-scope components
// are cached in. Closing the scope decommissions them.
type Scope struct {
	id     uuid.UUID
	kernel *Kernel

	mu     sync.Mutex
	owned  []ownedInstance
	closed bool
}

// BeginScope opens a scope on k. Components resolved through it see k's
// registry and its parent chain.
func (k *Kernel) BeginScope() (*Scope, error) {
	s := &Scope{id: uuid.New(), kernel: k}

	k.mu.RLock()
	disposed := k.disposed
	k.mu.RUnlock()
	if disposed {
		return nil, &KernelDisposedError{Kernel: k.name}
	}

	k.instMu.Lock()
	k.scopes[s] = struct{}{}
	k.instMu.Unlock()

	k.logger.Debug("scope opened", zapKernel(k), zap.Stringer("scope", s.id))
	return s, nil
}

// ID returns the scope identifier.
func (s *Scope) ID() uuid.UUID { return s.id }

// Kernel returns the kernel the scope was opened on.
func (s *Scope) Kernel() *Kernel { return s.kernel }

// Resolve resolves service from the scope's kernel within the scope.
func (s *Scope) Resolve(service ServiceType, opts ...ResolveOption) (any, error) {
	return s.kernel.Resolve(service, append(opts, InScope(s))...)
}

// ResolveKey resolves the component registered under key within the scope.
func (s *Scope) ResolveKey(key string, opts ...ResolveOption) (any, error) {
	return s.kernel.ResolveKey(key, append(opts, InScope(s))...)
}

// Release ends the life of a transient instance resolved through the scope.
func (s *Scope) Release(instance any) error {
	return s.kernel.Release(instance)
}

func (s *Scope) own(entry ownedInstance) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// Lost the race with Close: nothing will dispose of it later.
		entry.cache.remove(entry.key, entry.burden)
		if err := entry.burden.release(); err != nil {
			s.kernel.logger.Warn("releasing instance of closed scope",
				zapKernel(s.kernel), zap.Stringer("scope", s.id), zap.Error(err))
		}
		return
	}
	s.owned = append(s.owned, entry)
	s.mu.Unlock()
}

func (s *Scope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close decommissions the per-scope instances in reverse construction order.
// It is safe to call more than once.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	owned := s.owned
	s.owned = nil
	s.mu.Unlock()

	s.kernel.instMu.Lock()
	delete(s.kernel.scopes, s)
	s.kernel.instMu.Unlock()

	err := releaseOwned(owned)
	s.kernel.logger.Debug("scope closed",
		zapKernel(s.kernel), zap.Stringer("scope", s.id), zap.Int("instances", len(owned)))
	return err
}
