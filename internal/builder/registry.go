package builder

import (
	"fmt"
	"sort"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
)

// Constructor creates a builder. It must not emit anything.
type Constructor func(p Params) (Builder, error)

// Family is one build technology: how to construct its builders and the
// rule templates they share.
type Family struct {
	New Constructor

	// Rules registers the family's rule templates. It is called once per
	// generated graph, before the first edge of the family is emitted.
	Rules func(g ninja.Generator, rc RuleContext) error
}

// UnknownTypeError is returned for a builder type no family is registered for.
type UnknownTypeError struct {
	Type      string
	Component string
	Mark      config.Mark
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: component %q: unknown builder type %q", e.Mark, e.Component, e.Type)
}

// Registry maps builder type tags to families.
type Registry struct {
	families map[string]Family
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]Family)}
}

// Register adds a family under the given tag.
func (r *Registry) Register(tag string, f Family) error {
	if _, exists := r.families[tag]; exists {
		return fmt.Errorf("builder %q already registered", tag)
	}
	if f.New == nil || f.Rules == nil {
		return fmt.Errorf("builder %q: incomplete family", tag)
	}
	r.families[tag] = f
	return nil
}

// Type returns the type tag of a builder node.
func Type(conf config.Value) (string, config.Mark, error) {
	t, err := conf.Required("type")
	if err != nil {
		return "", config.Mark{}, err
	}
	s, err := t.AsString()
	if err != nil {
		return "", config.Mark{}, err
	}
	return s, t.Mark(), nil
}

// Family returns the family registered for a builder node's type.
func (r *Registry) Family(p Params) (string, Family, error) {
	tag, mark, err := Type(p.Conf)
	if err != nil {
		return "", Family{}, err
	}
	f, ok := r.families[tag]
	if !ok {
		return "", Family{}, &UnknownTypeError{Type: tag, Component: p.Name, Mark: mark}
	}
	return tag, f, nil
}

// New constructs the builder selected by the node's type tag.
func (r *Registry) New(p Params) (Builder, error) {
	_, f, err := r.Family(p)
	if err != nil {
		return nil, err
	}
	return f.New(p)
}

// List returns all registered tags, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the builtin technologies.
var DefaultRegistry = NewRegistry()

func init() {
	mustRegister("yocto", Family{New: NewYocto, Rules: YoctoRules})
	mustRegister("agl", Family{New: NewAGL, Rules: AGLRules})
	mustRegister("android_kernel", Family{New: NewAndroidKernel, Rules: AndroidKernelRules})
	mustRegister("android", Family{New: NewAndroid, Rules: AndroidRules})
}

func mustRegister(tag string, f Family) {
	if err := DefaultRegistry.Register(tag, f); err != nil {
		panic(err)
	}
}

// New constructs a builder from the default registry.
func New(p Params) (Builder, error) {
	return DefaultRegistry.New(p)
}
