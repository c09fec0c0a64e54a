package builder

import (
	"context"
	"path/filepath"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
	"github.com/dosanma1/foundry/internal/shell"
)

// YoctoRules registers the rules of the yocto builder.
func YoctoRules(g ninja.Generator, rc RuleContext) error {
	// Create the build dir with poky's oe-init-build-env, add layers and
	// write the conf overrides.
	setup := shell.Script{
		shell.Chdir("$yocto_dir"),
		shell.Source("poky/oe-init-build-env", "$work_dir"),
		shell.Run("set --", "$layers"),
		shell.Run(`{ [ $$# -eq 0 ] || bitbake-layers add-layer "$$@"; }`),
	}
	setup = append(setup, writeConfSteps()...)
	err := g.Rule("yocto_init_env", ninja.RuleParams{
		Command:     setup.Bash(),
		Description: "Initialize Yocto build environment: $name",
		Restat:      true,
	})
	if err != nil {
		return err
	}

	// bitbake runs in the console pool so its output stays visible.
	return g.Rule("yocto_build", bitbakeRule(rc, "Yocto Build: $name", shell.Script{
		shell.Chdir("$yocto_dir"),
		shell.Source("poky/oe-init-build-env", "$work_dir"),
		shell.Run("bitbake", "$target"),
	}))
}

// bitbakeRule prefixes the build script with the fetcher dependency gate
// when there is one.
func bitbakeRule(rc RuleContext, desc string, script shell.Script) ninja.RuleParams {
	p := ninja.RuleParams{
		Description: desc,
		Pool:        ninja.ConsolePool,
		Restat:      true,
	}
	if rc.FetcherDep != "" {
		script = append(shell.Script{shell.Fragment(rc.FetcherDep)}, script...)
		p.Depfile = DepfileName
		p.Deps = ninja.DepsGCC
	}
	p.Command = script.Bash()
	return p
}

// Yocto builds images with poky and bitbake.
//
// Several yocto components can share one set of layers, so there are two
// directories: yocto_dir holds the layers (poky among them) and work_dir,
// relative to it, holds conf/ and tmp/.
type Yocto struct {
	params    Params
	yoctoDir  string
	workDir   string
	target    string
	layers    []string
	overrides []config.Pair
	targets   []string
}

// NewYocto creates a yocto builder.
func NewYocto(p Params) (Builder, error) {
	b := &Yocto{params: p}
	conf := p.Conf

	yoctoDir, err := conf.GetString("yocto_dir", ".")
	if err != nil {
		return nil, err
	}
	b.yoctoDir = filepath.Join(p.BuildDir, yoctoDir)
	if b.workDir, err = conf.GetString("work_dir", "build"); err != nil {
		return nil, err
	}
	if b.target, err = conf.RequiredString("build_target"); err != nil {
		return nil, err
	}
	if b.layers, err = conf.OptionalStringList("layers"); err != nil {
		return nil, err
	}
	if b.overrides, err = overrides(conf); err != nil {
		return nil, err
	}
	if b.targets, err = targetsIn(conf, filepath.Join(b.yoctoDir, b.workDir)); err != nil {
		return nil, err
	}

	p.logger().Debug().
		Str("component", p.Name).
		Str("yocto_dir", b.yoctoDir).
		Str("work_dir", b.workDir).
		Str("target", b.target).
		Strs("layers", b.layers).
		Int("overrides", len(b.overrides)).
		Msg("yocto builder")
	return b, nil
}

// GenBuild implements Builder.
func (b *Yocto) GenBuild() []string {
	vars := map[string]string{
		"name":      b.params.Name,
		"yocto_dir": shell.Quote(b.yoctoDir),
		"work_dir":  shell.Quote(b.workDir),
	}

	confTarget := filepath.Join(b.yoctoDir, b.workDir, foundryConf)
	b.params.Gen.Build(ninja.BuildParams{
		Outputs: []string{confTarget},
		Rule:    "yocto_init_env",
		Inputs:  inputs(b.params.Stamps),
		Variables: with(vars, map[string]string{
			"layers": shell.QuoteList(b.layers),
			"conf":   confLines(b.overrides),
		}),
	})

	targets := b.Targets()
	b.params.Gen.Build(ninja.BuildParams{
		Outputs:   targets,
		Rule:      "yocto_build",
		Inputs:    inputs(b.params.Stamps, confTarget),
		Variables: with(vars, map[string]string{"target": shell.Quote(b.target)}),
	})
	return targets
}

// Targets implements Builder.
func (b *Yocto) Targets() []string { return clone(b.targets) }

// CaptureState pins the SRCREVs of VCS based recipes so the exact build
// can be reproduced later.
func (b *Yocto) CaptureState(ctx context.Context) error {
	return captureSRCREVs(ctx, &b.params, filepath.Join(b.yoctoDir, b.workDir))
}

func with(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
