// Package builder provides the technology specific builders that turn a
// component's builder configuration into ninja rules and edges.
package builder

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
)

// Builder is the interface that all technology-specific builders must implement.
type Builder interface {
	// GenBuild registers the builder's edges with the generator and
	// returns the targets. It must be called once per component.
	GenBuild() []string

	// Targets returns the files produced by the build. It does not emit
	// anything and can be called before GenBuild.
	Targets() []string

	// CaptureState writes whatever is needed to reproduce the build into
	// the persisted configuration.
	CaptureState(ctx context.Context) error
}

// StateStore is the persisted configuration that state capture writes to.
type StateStore interface {
	SetOverrides(component, key string, pairs []config.Pair) error
}

// Params contains everything a builder is constructed from.
type Params struct {
	// Conf is the component's builder node.
	Conf config.Value

	// Name is the component name.
	Name string

	// BuildDir is the component's build directory.
	BuildDir string

	// Stamps are the completion markers the build must wait for.
	Stamps []string

	// Gen receives the build edges.
	Gen ninja.Generator

	// Log receives diagnostics. Nil disables them.
	Log *zerolog.Logger

	// State receives captured state.
	State StateStore
}

func (p *Params) logger() *zerolog.Logger {
	if p.Log == nil {
		l := zerolog.Nop()
		return &l
	}
	return p.Log
}

// RuleContext carries run-wide settings that rule templates depend on.
type RuleContext struct {
	// FetcherDep is a shell fragment regenerating ".foundry_$name.d", the
	// depfile listing fetch-time dependencies of a build. Empty disables
	// the depfile.
	FetcherDep string
}

// DepfileName is the depfile written by the fetcher dependency gate.
const DepfileName = ".foundry_$name.d"

// targetsIn reads target_images and joins every entry with dir. Order is
// kept; a repeated image name is a configuration error.
func targetsIn(conf config.Value, dir string) ([]string, error) {
	node, err := conf.Required("target_images")
	if err != nil {
		return nil, err
	}
	items, err := node.Items()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, config.Errorf(node.Mark(), "%s: at least one target image is required", node.Path())
	}

	seen := make(map[string]bool, len(items))
	targets := make([]string, 0, len(items))
	for _, item := range items {
		name, err := item.AsString()
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, config.Errorf(item.Mark(), "duplicate target image %q", name)
		}
		seen[name] = true
		targets = append(targets, filepath.Join(dir, name))
	}
	return targets, nil
}

// stringsOrFields reads key as a list of strings, or as a single string
// split on whitespace.
func stringsOrFields(conf config.Value, key string) ([]string, error) {
	v, ok := conf.Get(key)
	if !ok {
		return nil, nil
	}
	if v.IsScalar() {
		s, err := v.AsString()
		if err != nil {
			return nil, err
		}
		return strings.Fields(s), nil
	}
	return v.StringList()
}

// overrides reads the optional conf list.
func overrides(conf config.Value) ([]config.Pair, error) {
	v, ok := conf.Get("conf")
	if !ok {
		return nil, nil
	}
	return config.Flatten(v)
}

func inputs(stamps []string, extra ...string) []string {
	in := make([]string, 0, len(stamps)+len(extra))
	in = append(in, stamps...)
	return append(in, extra...)
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
