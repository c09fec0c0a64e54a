package builder

import (
	"context"
	"path/filepath"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
	"github.com/dosanma1/foundry/internal/shell"
)

// AGLRules registers the rules of the AGL builder.
func AGLRules(g ninja.Generator, rc RuleContext) error {
	setup := shell.Script{
		shell.Chdir("$agl_dir"),
		shell.Source("meta-agl/scripts/aglsetup.sh", "-m", "$agl_machine", "-b", "$work_dir", "$agl_features"),
	}
	setup = append(setup, writeConfSteps()...)
	err := g.Rule("agl_init_env", ninja.RuleParams{
		Command:     setup.Bash(),
		Description: "Initialize AGL build environment",
		Restat:      true,
	})
	if err != nil {
		return err
	}

	return g.Rule("agl_build", bitbakeRule(rc, "AGL Build: $name", shell.Script{
		shell.Chdir("$agl_dir"),
		shell.Source("$work_dir/agl-init-build-env"),
		shell.Run("bitbake", "$target"),
	}))
}

// AGL builds Automotive Grade Linux images. aglsetup.sh creates work_dir
// inside the component's build directory and leaves agl-init-build-env
// there.
type AGL struct {
	params    Params
	aglDir    string
	workDir   string
	machine   string
	features  []string
	target    string
	overrides []config.Pair
	targets   []string
}

// NewAGL creates an AGL builder.
func NewAGL(p Params) (Builder, error) {
	b := &AGL{params: p, aglDir: p.BuildDir}
	conf := p.Conf

	var err error
	if b.workDir, err = conf.GetString("work_dir", "build"); err != nil {
		return nil, err
	}
	if b.machine, err = conf.RequiredString("agl_machine"); err != nil {
		return nil, err
	}
	if b.features, err = stringsOrFields(conf, "agl_features"); err != nil {
		return nil, err
	}
	if b.target, err = conf.RequiredString("build_target"); err != nil {
		return nil, err
	}
	if b.overrides, err = overrides(conf); err != nil {
		return nil, err
	}
	if b.targets, err = targetsIn(conf, filepath.Join(b.aglDir, b.workDir)); err != nil {
		return nil, err
	}

	p.logger().Debug().
		Str("component", p.Name).
		Str("agl_dir", b.aglDir).
		Str("work_dir", b.workDir).
		Str("agl_machine", b.machine).
		Strs("agl_features", b.features).
		Strs("stamps", p.Stamps).
		Msg("agl builder")
	return b, nil
}

// GenBuild implements Builder.
func (b *AGL) GenBuild() []string {
	vars := map[string]string{
		"name":         b.params.Name,
		"agl_dir":      shell.Quote(b.aglDir),
		"work_dir":     shell.Quote(b.workDir),
		"agl_machine":  shell.Quote(b.machine),
		"agl_features": shell.QuoteList(b.features),
	}

	// The environment script must exist before bitbake can be invoked.
	envTarget := filepath.Join(b.aglDir, b.workDir, "agl-init-build-env")
	b.params.Gen.Build(ninja.BuildParams{
		Outputs:   []string{envTarget},
		Rule:      "agl_init_env",
		Inputs:    inputs(b.params.Stamps),
		Variables: with(vars, map[string]string{"conf": confLines(b.overrides)}),
	})

	targets := b.Targets()
	b.params.Gen.Build(ninja.BuildParams{
		Outputs:   targets,
		Rule:      "agl_build",
		Inputs:    inputs(b.params.Stamps, envTarget),
		Variables: with(vars, map[string]string{"target": shell.Quote(b.target)}),
	})
	return targets
}

// Targets implements Builder.
func (b *AGL) Targets() []string { return clone(b.targets) }

// CaptureState updates the stored conf with the actual SRCREVs of VCS
// based recipes.
func (b *AGL) CaptureState(ctx context.Context) error {
	return captureSRCREVs(ctx, &b.params, filepath.Join(b.aglDir, b.workDir))
}
