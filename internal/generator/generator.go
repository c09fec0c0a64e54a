// Package generator turns a build description into a ninja build graph.
package generator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dosanma1/foundry/internal/builder"
	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/fetcher"
	"github.com/dosanma1/foundry/internal/ninja"
	"github.com/dosanma1/foundry/internal/shell"
	"github.com/dosanma1/foundry/pkg/xos"
)

// NinjaFile is the graph file written into the build root.
const NinjaFile = "build.ninja"

// Options configures a Generator.
type Options struct {
	// BuildRoot is the directory build.ninja and all component build
	// directories live in.
	BuildRoot string

	// ConfigPath is the build description as seen from the build root.
	ConfigPath string

	// Self is the foundry executable. It enables the fetcher dependency
	// gate and the regeneration edge; empty disables both.
	Self string

	// Registry selects builders. Nil means builder.DefaultRegistry.
	Registry *builder.Registry

	// Progress, when set, is called after each component's state was
	// captured.
	Progress func(component string)

	Log *zerolog.Logger
}

// Generator drives fetchers and builders over the components of one
// document.
type Generator struct {
	doc  *config.Document
	opts Options
	log  *zerolog.Logger
}

// New creates a generator for doc.
func New(doc *config.Document, opts Options) *Generator {
	if opts.Registry == nil {
		opts.Registry = builder.DefaultRegistry
	}
	if opts.BuildRoot == "" {
		opts.BuildRoot = "."
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = doc.Path()
	}
	log := opts.Log
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	return &Generator{doc: doc, opts: opts, log: log}
}

func (g *Generator) ruleContext() builder.RuleContext {
	if g.opts.Self == "" {
		return builder.RuleContext{}
	}
	return builder.RuleContext{
		FetcherDep: fetcher.GateCommand(g.opts.Self, g.opts.ConfigPath, g.opts.BuildRoot),
	}
}

func (g *Generator) fetcher(c config.Component) (*fetcher.Fetcher, error) {
	return fetcher.New(c, fetcher.Options{
		BuildRoot:  g.opts.BuildRoot,
		ConfigPath: g.opts.ConfigPath,
		Log:        g.log,
	})
}

func (g *Generator) params(c config.Component, stamps []string, gen ninja.Generator) builder.Params {
	return builder.Params{
		Conf:     c.Builder,
		Name:     c.Name,
		BuildDir: filepath.Join(g.opts.BuildRoot, c.BuildDir),
		Stamps:   stamps,
		Gen:      gen,
		Log:      g.log,
		State:    g.doc,
	}
}

// Generate builds the graph of every component in declaration order. On
// error the graph built so far is returned along with the error; it holds
// only complete components.
func (g *Generator) Generate() (*ninja.Graph, error) {
	graph := ninja.NewGraph()
	comps, err := g.doc.Components()
	if err != nil {
		return graph, err
	}

	rc := g.ruleContext()
	families := make(map[string]bool)
	stamps := make(map[string]string)
	gitRules := false
	for _, c := range comps {
		f, err := g.fetcher(c)
		if err != nil {
			return graph, err
		}
		for _, s := range f.Stamps() {
			if other, ok := stamps[s]; ok {
				return graph, config.Errorf(c.Mark,
					"component %q: sources share the stamp %s with component %q", c.Name, s, other)
			}
			stamps[s] = c.Name
		}

		// Construct the builder before emitting anything for the
		// component so a bad builder leaves the graph untouched.
		p := g.params(c, f.Stamps(), graph)
		tag, family, err := g.opts.Registry.Family(p)
		if err != nil {
			return graph, err
		}
		b, err := family.New(p)
		if err != nil {
			return graph, err
		}

		if len(f.Sources()) > 0 && !gitRules {
			if err := fetcher.Rules(graph); err != nil {
				return graph, err
			}
			gitRules = true
		}
		f.GenBuild(graph)

		if !families[tag] {
			if err := family.Rules(graph, rc); err != nil {
				return graph, fmt.Errorf("builder %s: %w", tag, err)
			}
			families[tag] = true
		}
		targets := b.GenBuild()
		graph.Build(ninja.BuildParams{
			Outputs: []string{c.Name},
			Rule:    ninja.Phony,
			Inputs:  targets,
		})

		g.log.Debug().
			Str("component", c.Name).
			Str("builder", tag).
			Strs("targets", targets).
			Msg("component generated")
	}

	if g.opts.Self != "" {
		if err := g.regenerate(graph); err != nil {
			return graph, err
		}
	}
	return graph, graph.Validate()
}

// regenerate adds the edge that re-runs foundry when the build
// description changes. Its output is the manifest as ninja names it when
// run from the build root.
func (g *Generator) regenerate(graph *ninja.Graph) error {
	argv := shell.QuoteCommand(g.opts.Self, "generate",
		"--config", g.opts.ConfigPath,
		"--build-dir", g.opts.BuildRoot)
	err := graph.Rule("regenerate", ninja.RuleParams{
		Command:     strings.ReplaceAll(argv, "$", "$$"),
		Description: "Regenerating " + NinjaFile,
		Generator:   true,
	})
	if err != nil {
		return err
	}
	graph.Build(ninja.BuildParams{
		Outputs: []string{NinjaFile},
		Rule:    "regenerate",
		Inputs:  []string{g.opts.ConfigPath},
	})
	return nil
}

// Write generates the graph and writes it to path. Nothing is written
// unless generation succeeds.
func (g *Generator) Write(path string) error {
	graph, err := g.Generate()
	if err != nil {
		return err
	}

	f, err := xos.NewPendingFile(path, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Cleanup()

	if _, err := graph.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.CloseAtomically(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	g.log.Info().
		Str("file", path).
		Int("rules", len(graph.Rules)).
		Int("edges", len(graph.Edges)).
		Msg("build graph written")
	return nil
}

// builder constructs the builder of a component without emitting anything.
func (g *Generator) builder(c config.Component) (builder.Builder, *fetcher.Fetcher, error) {
	f, err := g.fetcher(c)
	if err != nil {
		return nil, nil, err
	}
	b, err := g.opts.Registry.New(g.params(c, f.Stamps(), ninja.NewGraph()))
	if err != nil {
		return nil, nil, err
	}
	return b, f, nil
}

// Check generates the graph without writing it, reporting the first
// error.
func (g *Generator) Check() error {
	_, err := g.Generate()
	return err
}

// Targets returns the targets of a component.
func (g *Generator) Targets(component string) ([]string, error) {
	c, err := g.doc.Component(component)
	if err != nil {
		return nil, err
	}
	b, _, err := g.builder(c)
	if err != nil {
		return nil, err
	}
	return b.Targets(), nil
}

// Depfile renders the fetch depfile of a component: its first target
// depends on the build description and the fetched stamps.
func (g *Generator) Depfile(component string) ([]byte, error) {
	c, err := g.doc.Component(component)
	if err != nil {
		return nil, err
	}
	b, f, err := g.builder(c)
	if err != nil {
		return nil, err
	}
	targets := b.Targets()
	if len(targets) == 0 {
		return nil, fmt.Errorf("component %s has no targets", component)
	}
	deps := append([]string{g.opts.ConfigPath}, f.Stamps()...)
	return fetcher.Depfile(targets[0], deps), nil
}

// Capture records the state of every component's last build in the
// document and saves it, keeping the previous version as a backup.
func (g *Generator) Capture(ctx context.Context) error {
	comps, err := g.doc.Components()
	if err != nil {
		return err
	}
	for _, c := range comps {
		b, f, err := g.builder(c)
		if err != nil {
			return err
		}
		if err := f.CaptureState(ctx, g.doc); err != nil {
			return err
		}
		if err := b.CaptureState(ctx); err != nil {
			return err
		}
		if g.opts.Progress != nil {
			g.opts.Progress(c.Name)
		}
	}

	if err := g.doc.Save(g.doc.Path()); err != nil {
		return err
	}
	g.log.Info().Str("file", g.doc.Path()).Msg("build state captured")
	return nil
}
