package ioc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BurdenTestSuite struct {
	suite.Suite
	kernel *Kernel
}

func (s *BurdenTestSuite) SetupTest() {
	s.kernel = NewKernel(WithName("burden"))
}

func (s *BurdenTestSuite) TearDownTest() {
	s.kernel.Dispose()
}

func (s *BurdenTestSuite) register(key string, steps ...DecommissionStep) *Handler {
	h, err := s.kernel.Register(&ComponentDescriptor{
		Key:               key,
		Implementation:    key,
		DecommissionSteps: steps,
		Constructor: func(ctx *CreationContext, args Arguments) (any, error) {
			return &struct{ name string }{name: key}, nil
		},
	})
	s.Require().NoError(err)
	return h
}

func (s *BurdenTestSuite) TestOwnAfterDisposeReleasesAtOnce() {
	released := 0
	h := s.register("engine", func(any) error {
		released++
		return nil
	})
	s.Require().NoError(s.kernel.Dispose())

	b := newBurden(h, &struct{}{}, nil)
	h.cache.put(cacheKey{}, b)
	s.kernel.own(ownedInstance{cache: &h.cache, key: cacheKey{}, burden: b})

	s.Equal(1, released)
	_, cached := h.cache.get(cacheKey{})
	s.False(cached)
}

func (s *BurdenTestSuite) TestTrackable() {
	s.True(trackable(&struct{}{}))
	s.True(trackable(make(chan int)))
	s.False(trackable(nil))
	s.False(trackable(struct{ v any }{v: []int{1}}))
	s.False(trackable(42))
}

func (s *BurdenTestSuite) TestSlotReentryIsCircular() {
	h := s.register("engine")
	release, err := acquireSlot(h, &h.cache, cacheKey{})
	s.Require().NoError(err)

	_, err = acquireSlot(h, &h.cache, cacheKey{})
	var circular *CircularDependencyError
	s.Require().True(errors.As(err, &circular))
	s.Equal([]string{"engine", "engine"}, circular.Chain)

	release()
	again, err := acquireSlot(h, &h.cache, cacheKey{})
	s.Require().NoError(err)
	again()
}

func (s *BurdenTestSuite) TestSlotWaitsForOtherBuilder() {
	h := s.register("engine")
	release, err := acquireSlot(h, &h.cache, cacheKey{})
	s.Require().NoError(err)

	acquired := make(chan struct{})
	go func() {
		other, err := acquireSlot(h, &h.cache, cacheKey{})
		if err == nil {
			other()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		s.Fail("slot acquired while held")
	default:
	}
	release()
	<-acquired
}

func TestBurdenSuite(t *testing.T) {
	suite.Run(t, new(BurdenTestSuite))
}
