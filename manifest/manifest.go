// Package manifest reads component descriptors and kernel trees from YAML.
//
//	kernel: app
//	components:
//	  - key: engine
//	    implementation: mail.TemplateEngine
//	  - key: sender
//	    implementation: mail.SMTPSender
//	    services: [mail.Sender]
//	    lifestyle: transient
//	    dependencies:
//	      - service: mail.TemplateEngine
//	        name: engine
//	children:
//	  - kernel: request
//	    components: [...]
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/centraunit/ioc"
	"gopkg.in/yaml.v3"
)

// Manifest describes one kernel and, recursively, its child kernels.
type Manifest struct {
	Kernel     string      `yaml:"kernel"`
	Components []Component `yaml:"components"`
	Children   []Manifest  `yaml:"children,omitempty"`
}

// Component is the YAML form of an ioc.ComponentDescriptor.
type Component struct {
	Key            string       `yaml:"key"`
	Implementation string       `yaml:"implementation"`
	Services       []string     `yaml:"services,omitempty"`
	Lifestyle      string       `yaml:"lifestyle,omitempty"`
	Dependencies   []Dependency `yaml:"dependencies,omitempty"`
	Interceptors   []string     `yaml:"interceptors,omitempty"`
}

// Dependency is the YAML form of an ioc.DependencySpec.
type Dependency struct {
	Service  string `yaml:"service,omitempty"`
	Key      string `yaml:"key,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest document. Unknown fields are rejected.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// check rejects documents the kernel would reject anyway, but reports them
// with the position in the tree.
func (m *Manifest) check() error {
	var errs []error
	seen := make(map[string]bool)
	for i, c := range m.Components {
		if c.Key == "" {
			errs = append(errs, fmt.Errorf("kernel %q: component %d has no key", m.Kernel, i+1))
			continue
		}
		if seen[c.Key] {
			errs = append(errs, fmt.Errorf("kernel %q: duplicate component key %q", m.Kernel, c.Key))
		}
		seen[c.Key] = true
		if _, ok := ioc.ParseLifestyle(c.Lifestyle); !ok {
			errs = append(errs, fmt.Errorf("kernel %q: component %q: unknown lifestyle %q", m.Kernel, c.Key, c.Lifestyle))
		}
	}
	for i := range m.Children {
		if err := m.Children[i].check(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Descriptor converts c. The activator is taken from catalog by
// implementation name; with a nil catalog the kernel's default activator is
// left in place.
func (c Component) Descriptor(catalog Catalog) (*ioc.ComponentDescriptor, error) {
	lifestyle, _ := ioc.ParseLifestyle(c.Lifestyle)
	desc := &ioc.ComponentDescriptor{
		Key:            c.Key,
		Implementation: c.Implementation,
		Lifestyle:      lifestyle,
	}
	for _, s := range c.Services {
		desc.Services = append(desc.Services, ioc.ServiceType(s))
	}
	for _, d := range c.Dependencies {
		desc.Dependencies = append(desc.Dependencies, ioc.DependencySpec{
			Service:  ioc.ServiceType(d.Service),
			Key:      d.Key,
			Name:     d.Name,
			Optional: d.Optional,
		})
	}
	for _, name := range c.Interceptors {
		desc.Interceptors = append(desc.Interceptors, name)
	}
	if catalog != nil {
		activator, err := catalog.Lookup(c.Implementation)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", c.Key, err)
		}
		desc.Activator = activator
	}
	return desc, nil
}

// Descriptors converts the components of this kernel, not of its children.
func (m *Manifest) Descriptors(catalog Catalog) ([]*ioc.ComponentDescriptor, error) {
	out := make([]*ioc.ComponentDescriptor, 0, len(m.Components))
	for _, c := range m.Components {
		desc, err := c.Descriptor(catalog)
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}
