// Package ninja records build rules and edges and serializes them in ninja
// syntax.
package ninja

import "fmt"

// Phony is ninja's builtin rule for aliases.
const Phony = "phony"

// ConsolePool is ninja's builtin single-slot pool with direct terminal
// access.
const ConsolePool = "console"

// DepsGCC selects gcc-style depfiles.
const DepsGCC = "gcc"

// RuleParams describes a rule template.
type RuleParams struct {
	// Command may reference variables set on edges ($name) and the
	// builtins $in and $out.
	Command     string
	Description string

	// Pool is the execution pool. Empty means the default pool.
	Pool string

	// Depfile and Deps declare dependencies discovered while running.
	Depfile string
	Deps    string

	// Restat re-checks output timestamps after the command ran so that
	// unchanged outputs do not trigger dependents.
	Restat bool

	// Generator marks the rule that regenerates build.ninja itself.
	Generator bool
}

// BuildParams describes one build edge.
type BuildParams struct {
	Outputs   []string
	Rule      string
	Inputs    []string
	Variables map[string]string
}

// Generator is the graph emission contract that builders use.
type Generator interface {
	// Rule registers a rule template. A rule name can be registered once.
	Rule(name string, p RuleParams) error
	// Build registers a build edge.
	Build(p BuildParams)
}

// Rule is a registered rule template.
type Rule struct {
	Name string
	RuleParams
}

// Graph is an append-only in-memory log of registrations. It implements
// Generator.
type Graph struct {
	Rules []Rule
	Edges []BuildParams

	rules map[string]bool
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{rules: make(map[string]bool)}
}

// Rule implements Generator.
func (g *Graph) Rule(name string, p RuleParams) error {
	if g.rules == nil {
		g.rules = make(map[string]bool)
	}
	if name == Phony {
		return fmt.Errorf("rule %q is builtin", name)
	}
	if g.rules[name] {
		return fmt.Errorf("rule %q already registered", name)
	}
	g.rules[name] = true
	g.Rules = append(g.Rules, Rule{Name: name, RuleParams: p})
	return nil
}

// HasRule reports whether a rule with the given name was registered.
func (g *Graph) HasRule(name string) bool { return g.rules[name] }

// Build implements Generator. Slices and the variable map are copied.
func (g *Graph) Build(p BuildParams) {
	e := BuildParams{
		Outputs: append([]string(nil), p.Outputs...),
		Rule:    p.Rule,
		Inputs:  append([]string(nil), p.Inputs...),
	}
	if len(p.Variables) > 0 {
		e.Variables = make(map[string]string, len(p.Variables))
		for k, v := range p.Variables {
			e.Variables[k] = v
		}
	}
	g.Edges = append(g.Edges, e)
}

// EdgesFor returns the edges using the given rule, in registration order.
func (g *Graph) EdgesFor(rule string) []BuildParams {
	var out []BuildParams
	for _, e := range g.Edges {
		if e.Rule == rule {
			out = append(out, e)
		}
	}
	return out
}
