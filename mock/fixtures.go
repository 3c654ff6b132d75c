package mock

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/centraunit/ioc"
)

// Recorder collects lifecycle events in the order they happen.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) Record(event string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Filter returns the recorded events starting with prefix, prefix stripped.
func (r *Recorder) Filter(prefix string) []string {
	var out []string
	for _, e := range r.Events() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, strings.TrimPrefix(e, prefix))
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Component is a generic fixture. It records its commission and
// decommission under its name.
type Component struct {
	Name string
	Args ioc.Arguments
	Ctx  *ioc.CreationContext

	rec              *Recorder
	failDecommission error
	commissioned     atomic.Bool
	decommissioned   atomic.Bool
}

func (c *Component) OnCommission(ctx *ioc.CreationContext) error {
	c.commissioned.Store(true)
	c.rec.Record("commission:" + c.Name)
	return nil
}

func (c *Component) OnDecommission() error {
	c.decommissioned.Store(true)
	c.rec.Record("decommission:" + c.Name)
	return c.failDecommission
}

func (c *Component) Commissioned() bool   { return c.commissioned.Load() }
func (c *Component) Decommissioned() bool { return c.decommissioned.Load() }

// Dep returns the resolved dependency delivered under name.
func (c *Component) Dep(name string) *Component {
	d, _ := ioc.Arg[*Component](c.Args, name)
	return d
}

// Factory returns a constructor building Components named name.
func Factory(name string, rec *Recorder) ioc.Constructor {
	return func(ctx *ioc.CreationContext, args ioc.Arguments) (any, error) {
		rec.Record("construct:" + name)
		return &Component{Name: name, Args: args, Ctx: ctx, rec: rec}, nil
	}
}

// FailingDecommissionFactory builds Components whose OnDecommission fails.
func FailingDecommissionFactory(name string, rec *Recorder) ioc.Constructor {
	return func(ctx *ioc.CreationContext, args ioc.Arguments) (any, error) {
		rec.Record("construct:" + name)
		return &Component{Name: name, Args: args, Ctx: ctx, rec: rec,
			failDecommission: fmt.Errorf("simulated decommission failure of %s", name)}, nil
	}
}

// ErrConstruct is returned by FailingFactory.
var ErrConstruct = errors.New("simulated construction failure")

// FailingFactory returns a constructor that always fails.
func FailingFactory() ioc.Constructor {
	return func(ctx *ioc.CreationContext, args ioc.Arguments) (any, error) {
		return nil, ErrConstruct
	}
}

// Descriptor builds a descriptor for key whose service type is the key
// itself, constructed by Factory.
func Descriptor(key string, lifestyle ioc.Lifestyle, rec *Recorder, deps ...ioc.DependencySpec) *ioc.ComponentDescriptor {
	return &ioc.ComponentDescriptor{
		Key:            key,
		Services:       []ioc.ServiceType{ioc.ServiceType(key)},
		Implementation: "mock.Component",
		Lifestyle:      lifestyle,
		Dependencies:   deps,
		Constructor:    Factory(key, rec),
	}
}

// Service declares a dependency on the service type named like a fixture key.
func Service(key string) ioc.DependencySpec {
	return ioc.DependsOnService(ioc.ServiceType(key))
}

// Mail domain fixtures used by the typed helpers.

type TemplateEngine interface {
	Render(template string, data map[string]string) string
}

type MailSender interface {
	Send(to, body string) error
	Sent() []string
}

type SpamService interface {
	Spam(template string, to ...string) error
}

type SimpleTemplateEngine struct {
	Prefix string
}

func (e *SimpleTemplateEngine) Render(template string, data map[string]string) string {
	out := template
	for k, v := range data {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return e.Prefix + out
}

type MemoryMailSender struct {
	mu     sync.Mutex
	sent   []string
	Closed bool
}

func (m *MemoryMailSender) Send(to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return errors.New("mail sender closed")
	}
	m.sent = append(m.sent, to+": "+body)
	return nil
}

func (m *MemoryMailSender) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *MemoryMailSender) OnDecommission() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

type DefaultSpamService struct {
	Engine TemplateEngine
	Sender MailSender
}

func (s *DefaultSpamService) Spam(template string, to ...string) error {
	for _, addr := range to {
		if err := s.Sender.Send(addr, s.Engine.Render(template, map[string]string{"to": addr})); err != nil {
			return err
		}
	}
	return nil
}

// NewTemplateEngine, NewMailSender and NewSpamService are typed
// constructors for ioc.Bind.

func NewTemplateEngine(ctx *ioc.CreationContext, args ioc.Arguments) (TemplateEngine, error) {
	return &SimpleTemplateEngine{}, nil
}

func NewMailSender(ctx *ioc.CreationContext, args ioc.Arguments) (MailSender, error) {
	return &MemoryMailSender{}, nil
}

func NewSpamService(ctx *ioc.CreationContext, args ioc.Arguments) (SpamService, error) {
	engine, ok := ioc.Arg[TemplateEngine](args, "engine")
	if !ok {
		return nil, errors.New("template engine missing")
	}
	sender, ok := ioc.Arg[MailSender](args, "sender")
	if !ok {
		return nil, errors.New("mail sender missing")
	}
	return &DefaultSpamService{Engine: engine, Sender: sender}, nil
}

// SpamDependencies are the dependencies NewSpamService expects.
func SpamDependencies() []ioc.DependencySpec {
	return []ioc.DependencySpec{
		ioc.DependsOn[TemplateEngine]().Named("engine"),
		ioc.DependsOn[MailSender]().Named("sender"),
	}
}
