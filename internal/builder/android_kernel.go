package builder

import (
	"context"

	"github.com/dosanma1/foundry/internal/ninja"
	"github.com/dosanma1/foundry/internal/shell"
)

// AndroidKernelRules registers the rule of the Android kernel builder.
func AndroidKernelRules(g ninja.Generator, _ RuleContext) error {
	script := shell.Script{
		shell.Export("$env"),
		shell.Chdir("$build_dir"),
		shell.Run("build/build.sh"),
	}
	return g.Rule("android_kernel_build", ninja.RuleParams{
		Command:     script.Bash(),
		Description: "Invoke Android Kernel build script",
		Pool:        ninja.ConsolePool,
	})
}

// AndroidKernel runs the Android kernel build/build.sh script.
type AndroidKernel struct {
	params  Params
	env     []string
	targets []string
}

// NewAndroidKernel creates an Android kernel builder.
func NewAndroidKernel(p Params) (Builder, error) {
	b := &AndroidKernel{params: p}

	var err error
	if b.env, err = p.Conf.OptionalStringList("env"); err != nil {
		return nil, err
	}
	if b.targets, err = targetsIn(p.Conf, p.BuildDir); err != nil {
		return nil, err
	}

	p.logger().Debug().
		Str("component", p.Name).
		Str("build_dir", p.BuildDir).
		Strs("env", b.env).
		Msg("android kernel builder")
	return b, nil
}

// GenBuild implements Builder.
func (b *AndroidKernel) GenBuild() []string {
	targets := b.Targets()
	b.params.Gen.Build(ninja.BuildParams{
		Outputs: targets,
		Rule:    "android_kernel_build",
		Inputs:  inputs(b.params.Stamps),
		Variables: map[string]string{
			"build_dir": shell.Quote(b.params.BuildDir),
			"env":       shell.QuoteList(b.env),
		},
	})
	return targets
}

// Targets implements Builder.
func (b *AndroidKernel) Targets() []string { return clone(b.targets) }

// CaptureState does nothing: the kernel tree is controlled solely by its
// repo state, which the fetcher captures.
func (b *AndroidKernel) CaptureState(context.Context) error { return nil }
