// Package fetcher emits the edges that fetch a component's sources and
// produces the stamps its build waits for.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
	"github.com/dosanma1/foundry/internal/shell"
)

// StampDir holds the fetch stamps, relative to the build root.
const StampDir = ".stamps"

// DefaultRev is checked out when a source does not name a revision.
const DefaultRev = "master"

// Source is one git source of a component.
type Source struct {
	Index int
	URL   string
	Rev   string
	Dir   string
	Mark  config.Mark
}

// ParseSources reads the optional sources list of a component.
func ParseSources(c config.Component) ([]Source, error) {
	if !c.Sources.Exists() {
		return nil, nil
	}
	items, err := c.Sources.Items()
	if err != nil {
		return nil, err
	}

	out := make([]Source, 0, len(items))
	seen := make(map[string]string, len(items))
	for i, item := range items {
		if !item.IsMap() {
			return nil, config.Errorf(item.Mark(), "%s: expected a mapping", item.Path())
		}
		typ, err := item.GetString("type", "git")
		if err != nil {
			return nil, err
		}
		if typ != "git" {
			t, _ := item.Get("type")
			return nil, config.Errorf(t.Mark(), "component %q: unknown source type %q", c.Name, typ)
		}
		url, err := item.RequiredString("url")
		if err != nil {
			return nil, err
		}
		rev, err := item.GetString("rev", DefaultRev)
		if err != nil {
			return nil, err
		}
		dir, err := item.GetString("dir", defaultDir(url))
		if err != nil {
			return nil, err
		}
		if dir == "" {
			return nil, config.Errorf(item.Mark(), "%s: cannot derive a directory from %q", item.Path(), url)
		}
		if other, ok := seen[stampKey(dir)]; ok {
			if other == dir {
				return nil, config.Errorf(item.Mark(), "duplicate source directory %q", dir)
			}
			return nil, config.Errorf(item.Mark(), "source directories %q and %q share a stamp", other, dir)
		}
		seen[stampKey(dir)] = dir
		out = append(out, Source{Index: i, URL: url, Rev: rev, Dir: dir, Mark: item.Mark()})
	}
	return out, nil
}

// defaultDir is the last path element of a repository URL without ".git".
func defaultDir(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(url, ":/"); i >= 0 {
		url = url[i+1:]
	}
	return strings.TrimSuffix(path.Base(url), ".git")
}

// Rules registers the git rules.
func Rules(g ninja.Generator) error {
	clone := shell.Script{
		shell.Run("mkdir", "-p", "$stamp_dir"),
		shell.Run("{ [ -d $dir/.git ] || git clone --no-checkout $url $dir; }"),
		shell.Run("touch", "$stamp"),
	}
	err := g.Rule("git_clone", ninja.RuleParams{
		Command:     clone.Bash(),
		Description: "git clone $url",
	})
	if err != nil {
		return err
	}

	checkout := shell.Script{
		shell.Run("git", "-C", "$dir", "fetch", "origin", "$rev"),
		shell.Run("git", "-C", "$dir", "checkout", "--detach", "FETCH_HEAD"),
		shell.Run("touch", "$stamp"),
	}
	return g.Rule("git_checkout", ninja.RuleParams{
		Command:     checkout.Bash(),
		Description: "git checkout $rev in $dir",
		Pool:        ninja.ConsolePool,
	})
}

// RevisionStore is the persisted configuration source capture writes to.
type RevisionStore interface {
	SetSourceRevision(component string, index int, rev string) error
}

// Fetcher fetches the sources of one component.
type Fetcher struct {
	name     string
	root     string
	buildDir string
	config   string
	sources  []Source
	log      *zerolog.Logger
}

// Options configures a Fetcher.
type Options struct {
	// BuildRoot is the directory build.ninja lives in.
	BuildRoot string

	// ConfigPath is the build description. Checkouts depend on it so a
	// changed revision is fetched again.
	ConfigPath string

	Log *zerolog.Logger
}

// New creates the fetcher of a component.
func New(c config.Component, opts Options) (*Fetcher, error) {
	sources, err := ParseSources(c)
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		l := zerolog.Nop()
		log = &l
	}
	return &Fetcher{
		name:     c.Name,
		root:     opts.BuildRoot,
		buildDir: filepath.Join(opts.BuildRoot, c.BuildDir),
		config:   opts.ConfigPath,
		sources:  sources,
		log:      log,
	}, nil
}

// Sources returns the parsed sources.
func (f *Fetcher) Sources() []Source { return append([]Source(nil), f.sources...) }

// Dir returns the checkout directory of a source.
func (f *Fetcher) Dir(s Source) string { return filepath.Join(f.buildDir, s.Dir) }

// stampKey flattens a source directory into a stamp file name.
func stampKey(dir string) string { return strings.ReplaceAll(dir, "/", "_") }

func (f *Fetcher) stamp(s Source, state string) string {
	base := fmt.Sprintf("%s-%s-%s", f.name, stampKey(s.Dir), state)
	return filepath.Join(f.root, StampDir, base)
}

// Stamps returns the fetched stamps of every source, the stamps the build
// of the component depends on.
func (f *Fetcher) Stamps() []string {
	out := make([]string, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, f.stamp(s, "fetched"))
	}
	return out
}

// GenBuild emits the clone and checkout edges and returns the fetched
// stamps.
func (f *Fetcher) GenBuild(g ninja.Generator) []string {
	for _, s := range f.sources {
		dir := shell.Quote(f.Dir(s))
		cloned := f.stamp(s, "cloned")
		g.Build(ninja.BuildParams{
			Outputs: []string{cloned},
			Rule:    "git_clone",
			Variables: map[string]string{
				"url":       shell.Quote(s.URL),
				"dir":       dir,
				"stamp_dir": shell.Quote(filepath.Join(f.root, StampDir)),
				"stamp":     shell.Quote(cloned),
			},
		})

		fetched := f.stamp(s, "fetched")
		in := []string{cloned}
		if f.config != "" {
			in = append(in, f.config)
		}
		g.Build(ninja.BuildParams{
			Outputs: []string{fetched},
			Rule:    "git_checkout",
			Inputs:  in,
			Variables: map[string]string{
				"dir":   dir,
				"rev":   shell.Quote(s.Rev),
				"stamp": shell.Quote(fetched),
			},
		})
		f.log.Debug().
			Str("component", f.name).
			Str("url", s.URL).
			Str("rev", s.Rev).
			Msg("git source")
	}
	return f.Stamps()
}

// CaptureState pins every source to the commit currently checked out.
func (f *Fetcher) CaptureState(ctx context.Context, store RevisionStore) error {
	for _, s := range f.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		rev, err := Head(f.Dir(s))
		if err != nil {
			return fmt.Errorf("component %s: %w", f.name, err)
		}
		if err := store.SetSourceRevision(f.name, s.Index, rev); err != nil {
			return err
		}
		f.log.Info().
			Str("component", f.name).
			Str("dir", s.Dir).
			Str("rev", rev).
			Msg("captured source revision")
	}
	return nil
}

// Head returns the commit hash checked out in dir.
func Head(dir string) (string, error) {
	repository, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%s is not fetched yet", dir)
	} else if err != nil {
		return "", fmt.Errorf("open %s: %w", dir, err)
	}
	ref, err := repository.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD of %s: %w", dir, err)
	}
	return ref.Hash().String(), nil
}
