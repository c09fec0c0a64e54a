package builder

import (
	"context"

	"github.com/dosanma1/foundry/internal/ninja"
	"github.com/dosanma1/foundry/internal/shell"
)

// AndroidRules registers the rule of the AOSP builder.
func AndroidRules(g ninja.Generator, _ RuleContext) error {
	script := shell.Script{
		shell.Export("$env"),
		shell.Chdir("$build_dir"),
		shell.Source("build/envsetup.sh"),
		shell.Run("lunch", "$lunch_target"),
		shell.Run("m"),
	}
	return g.Rule("android_build", ninja.RuleParams{
		Command:     script.Bash(),
		Description: "Invoke Android build: $name",
		Pool:        ninja.ConsolePool,
		Restat:      true,
	})
}

// Android builds an AOSP tree with lunch and m.
type Android struct {
	params  Params
	env     []string
	lunch   string
	targets []string
}

// NewAndroid creates an AOSP builder.
func NewAndroid(p Params) (Builder, error) {
	b := &Android{params: p}

	var err error
	if b.env, err = p.Conf.OptionalStringList("env"); err != nil {
		return nil, err
	}
	if b.lunch, err = p.Conf.RequiredString("lunch_target"); err != nil {
		return nil, err
	}
	if b.targets, err = targetsIn(p.Conf, p.BuildDir); err != nil {
		return nil, err
	}

	p.logger().Debug().
		Str("component", p.Name).
		Str("lunch_target", b.lunch).
		Msg("android builder")
	return b, nil
}

// GenBuild implements Builder.
func (b *Android) GenBuild() []string {
	targets := b.Targets()
	b.params.Gen.Build(ninja.BuildParams{
		Outputs: targets,
		Rule:    "android_build",
		Inputs:  inputs(b.params.Stamps),
		Variables: map[string]string{
			"name":         b.params.Name,
			"build_dir":    shell.Quote(b.params.BuildDir),
			"env":          shell.QuoteList(b.env),
			"lunch_target": shell.Quote(b.lunch),
		},
	})
	return targets
}

// Targets implements Builder.
func (b *Android) Targets() []string { return clone(b.targets) }

// CaptureState does nothing: an AOSP tree is fully described by its repo
// manifest, which the fetcher pins.
func (b *Android) CaptureState(context.Context) error { return nil }
