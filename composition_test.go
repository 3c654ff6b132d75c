package ioc_test

import (
	"errors"
	"testing"

	"github.com/centraunit/ioc"
	"github.com/centraunit/ioc/mock"
	"github.com/stretchr/testify/suite"
)

type CompositionTestSuite struct {
	suite.Suite
	parent *ioc.Kernel
	child  *ioc.Kernel
	rec    *mock.Recorder
}

func (s *CompositionTestSuite) SetupTest() {
	s.parent = ioc.NewKernel(ioc.WithName("parent"))
	s.child = ioc.NewKernel(ioc.WithName("child"))
	s.rec = &mock.Recorder{}
}

func (s *CompositionTestSuite) TearDownTest() {
	s.child.Dispose()
	s.parent.Dispose()
}

func (s *CompositionTestSuite) register(k *ioc.Kernel, key string, lifestyle ioc.Lifestyle, deps ...ioc.DependencySpec) *ioc.Handler {
	h, err := k.Register(mock.Descriptor(key, lifestyle, s.rec, deps...))
	s.Require().NoError(err)
	return h
}

func (s *CompositionTestSuite) TestChildSeesParent() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.Same(s.parent, s.child.Parent())
	s.Equal([]*ioc.Kernel{s.child}, s.parent.Children())

	s.register(s.parent, "engine", ioc.Singleton)
	sender := s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))
	s.True(sender.IsValid())

	fromChild, err := s.child.ResolveKey("engine")
	s.Require().NoError(err)
	fromParent, err := s.parent.ResolveKey("engine")
	s.Require().NoError(err)
	s.Same(fromParent, fromChild)
}

func (s *CompositionTestSuite) TestParentDoesNotSeeChild() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.child, "engine", ioc.Singleton)
	sender := s.register(s.parent, "sender", ioc.Singleton, mock.Service("engine"))
	s.False(sender.IsValid())

	_, err := s.parent.ResolveKey("engine")
	var notFound *ioc.ComponentNotFoundError
	s.True(errors.As(err, &notFound))
}

func (s *CompositionTestSuite) TestChildWaitsForParentRegistration() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	sender := s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))
	s.False(sender.IsValid())

	s.register(s.parent, "engine", ioc.Singleton)
	s.True(sender.IsValid())
}

func (s *CompositionTestSuite) TestCascadeAcrossGenerations() {
	grandchild := ioc.NewKernel(ioc.WithName("grandchild"))
	defer grandchild.Dispose()
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.Require().NoError(s.child.AddChildKernel(grandchild))

	spam := s.register(grandchild, "spam", ioc.Singleton, mock.Service("sender"))
	sender := s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))
	s.False(spam.IsValid())
	s.False(sender.IsValid())

	s.register(s.parent, "engine", ioc.Singleton)
	s.True(sender.IsValid())
	s.True(spam.IsValid())
}

func (s *CompositionTestSuite) TestAttachRechecksWaitingHandlers() {
	s.register(s.parent, "engine", ioc.Singleton)
	sender := s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))
	spam := s.register(s.child, "spam", ioc.Singleton, mock.Service("sender"))
	s.False(sender.IsValid())

	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.True(sender.IsValid())
	s.True(spam.IsValid())
}

func (s *CompositionTestSuite) TestInvalidComposition() {
	var invalid *ioc.InvalidCompositionError

	s.True(errors.As(s.parent.AddChildKernel(s.parent), &invalid))
	s.True(errors.As(s.parent.AddChildKernel(nil), &invalid))

	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.True(errors.As(s.child.AddChildKernel(s.parent), &invalid), "cycle")

	other := ioc.NewKernel(ioc.WithName("other"))
	defer other.Dispose()
	s.True(errors.As(other.AddChildKernel(s.child), &invalid), "already parented")
	s.True(errors.As(other.RemoveChildKernel(s.child), &invalid), "not a child")
}

func (s *CompositionTestSuite) TestDetachKeepsChildUsableAlone() {
	s.register(s.parent, "engine", ioc.Singleton)
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	local := s.register(s.child, "formatter", ioc.Singleton)

	s.Require().NoError(s.parent.RemoveChildKernel(s.child))
	s.Nil(s.child.Parent())
	s.Empty(s.parent.Children())

	_, err := s.child.ResolveKey("engine")
	var notFound *ioc.ComponentNotFoundError
	s.True(errors.As(err, &notFound))

	_, err = local.Resolve()
	s.NoError(err)

	// No longer notified of parent registrations.
	waiting := s.register(s.child, "sender", ioc.Singleton, mock.Service("mailer"))
	s.register(s.parent, "mailer", ioc.Singleton)
	s.False(waiting.IsValid())
}

func (s *CompositionTestSuite) TestReattach() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.Require().NoError(s.parent.RemoveChildKernel(s.child))

	other := ioc.NewKernel(ioc.WithName("other"))
	defer other.Dispose()
	s.register(other, "engine", ioc.Singleton)
	sender := s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))

	s.Require().NoError(other.AddChildKernel(s.child))
	s.True(sender.IsValid())
}

func (s *CompositionTestSuite) TestLocalRegistrationShadowsParent() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "db", ioc.Singleton)
	s.register(s.child, "db", ioc.Singleton)

	fromChild, err := s.child.Resolve("db")
	s.Require().NoError(err)
	fromParent, err := s.parent.Resolve("db")
	s.Require().NoError(err)
	s.NotSame(fromParent, fromChild)
}

func (s *CompositionTestSuite) TestParentComponentWithShadowedDependency() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "db", ioc.Singleton)
	s.register(s.parent, "repo", ioc.Singleton, mock.Service("db"))
	s.register(s.child, "db", ioc.Singleton)

	fromParent, err := s.parent.ResolveKey("repo")
	s.Require().NoError(err)
	fromChild, err := s.child.ResolveKey("repo")
	s.Require().NoError(err)
	again, err := s.child.ResolveKey("repo")
	s.Require().NoError(err)

	parentRepo := fromParent.(*mock.Component)
	childRepo := fromChild.(*mock.Component)
	s.NotSame(parentRepo, childRepo)
	s.Same(fromChild, again)

	childDB, err := s.child.Resolve("db")
	s.Require().NoError(err)
	s.Same(childDB, childRepo.Dep("db"))
	s.NotSame(childDB, parentRepo.Dep("db"))

	s.Require().NoError(s.child.Dispose())
	s.True(childRepo.Decommissioned())
	s.False(parentRepo.Decommissioned())
	s.Equal([]string{"repo", "db"}, s.rec.Filter("decommission:"))
}

func (s *CompositionTestSuite) TestTransitiveShadowing() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "db", ioc.Singleton)
	s.register(s.parent, "repo", ioc.Singleton, mock.Service("db"))
	s.register(s.parent, "service", ioc.Singleton, mock.Service("repo"))
	s.register(s.child, "db", ioc.Singleton)

	fromParent, err := s.parent.ResolveKey("service")
	s.Require().NoError(err)
	fromChild, err := s.child.ResolveKey("service")
	s.Require().NoError(err)
	s.NotSame(fromParent, fromChild)
}

func (s *CompositionTestSuite) TestUnshadowedParentComponentIsShared() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "db", ioc.Singleton)
	s.register(s.parent, "repo", ioc.Singleton, mock.Service("db"))
	s.register(s.child, "cache", ioc.Singleton)

	fromChild, err := s.child.ResolveKey("repo")
	s.Require().NoError(err)
	fromParent, err := s.parent.ResolveKey("repo")
	s.Require().NoError(err)
	s.Same(fromParent, fromChild)

	s.Require().NoError(s.child.Dispose())
	s.False(fromParent.(*mock.Component).Decommissioned(), "parent keeps ownership")
}

func (s *CompositionTestSuite) TestParentTransientResolvedFromChild() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "db", ioc.Singleton)
	s.register(s.parent, "query", ioc.Transient, mock.Service("db"))
	s.register(s.child, "db", ioc.Singleton)

	instance, err := s.child.ResolveKey("query")
	s.Require().NoError(err)
	childDB, err := s.child.Resolve("db")
	s.Require().NoError(err)
	s.Same(childDB, instance.(*mock.Component).Dep("db"))
}

func (s *CompositionTestSuite) TestDisposeParentDisposesChildrenFirst() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "engine", ioc.Singleton)
	s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))

	_, err := s.child.ResolveKey("sender")
	s.Require().NoError(err)

	s.Require().NoError(s.parent.Dispose())
	s.Equal([]string{"sender", "engine"}, s.rec.Filter("decommission:"))
	s.Empty(s.parent.Children())
	s.Nil(s.child.Parent())

	_, err = s.child.ResolveKey("sender")
	var disposed *ioc.KernelDisposedError
	s.True(errors.As(err, &disposed))
}

func (s *CompositionTestSuite) TestDisposeChildDetaches() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.Require().NoError(s.child.Dispose())
	s.Empty(s.parent.Children())

	var invalid *ioc.InvalidCompositionError
	s.True(errors.As(s.parent.AddChildKernel(s.child), &invalid), "disposed kernel cannot be attached")
}

func (s *CompositionTestSuite) TestRemoveComponentUsedByChild() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "engine", ioc.Singleton)
	s.register(s.child, "sender", ioc.Singleton, mock.Service("engine"))

	err := s.parent.RemoveComponent("engine")
	var inUse *ioc.ComponentInUseError
	s.Require().True(errors.As(err, &inUse))
	s.Equal([]string{"child/sender"}, inUse.Dependents)
}

func (s *CompositionTestSuite) TestRemoveShadowedComponentDropsChildInstances() {
	s.Require().NoError(s.parent.AddChildKernel(s.child))
	s.register(s.parent, "db", ioc.Singleton)
	s.register(s.parent, "repo", ioc.Singleton, mock.Service("db"))
	s.register(s.child, "db", ioc.Singleton)

	fromChild, err := s.child.ResolveKey("repo")
	s.Require().NoError(err)

	s.Require().NoError(s.parent.RemoveComponent("repo"))
	s.True(fromChild.(*mock.Component).Decommissioned())
}

func TestCompositionSuite(t *testing.T) {
	suite.Run(t, new(CompositionTestSuite))
}
