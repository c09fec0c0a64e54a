package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/foundry/internal/builder"
	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
)

const product = `desc: R-Car H3 product
components:
  dom0:
    build-dir: yocto
    sources:
      - url: https://git.yoctoproject.org/poky
        rev: kirkstone
    builder:
      type: yocto
      build_target: core-image-minimal
      conf:
        - [MACHINE, h3ulcb]
      target_images:
        - tmp/deploy/images/h3ulcb/Image
  kernel:
    builder:
      type: android_kernel
      env: [FOO=bar]
      target_images: [out/boot.img]
  kernel2:
    builder:
      type: android_kernel
      target_images: [out/boot.img]
`

func load(t *testing.T, src string) *config.Document {
	t.Helper()
	d, err := config.ParseDocument([]byte(src), "/src/foundry.yaml")
	require.NoError(t, err)
	return d
}

func ruleNames(g *ninja.Graph) []string {
	var names []string
	for _, r := range g.Rules {
		names = append(names, r.Name)
	}
	return names
}

func TestGenerate(t *testing.T) {
	gen := New(load(t, product), Options{BuildRoot: "/b", Self: "/usr/bin/foundry"})
	g, err := gen.Generate()
	require.NoError(t, err)

	want := []string{"git_clone", "git_checkout", "yocto_init_env", "yocto_build", "android_kernel_build", "regenerate"}
	if diff := cmp.Diff(want, ruleNames(g)); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}

	phony := g.EdgesFor(ninja.Phony)
	require.Len(t, phony, 3)
	assert.Equal(t, []string{"dom0"}, phony[0].Outputs)
	assert.Equal(t, []string{"/b/yocto/build/tmp/deploy/images/h3ulcb/Image"}, phony[0].Inputs)
	assert.Equal(t, []string{"kernel2"}, phony[2].Outputs)
	assert.Equal(t, []string{"/b/kernel2/out/boot.img"}, phony[2].Inputs)

	build := g.EdgesFor("yocto_build")
	require.Len(t, build, 1)
	assert.Contains(t, build[0].Inputs, "/b/.stamps/dom0-poky-fetched")

	kernels := g.EdgesFor("android_kernel_build")
	require.Len(t, kernels, 2)
	assert.Equal(t, "FOO=bar", kernels[0].Variables["env"])
	assert.Empty(t, kernels[1].Variables["env"])

	regen := g.EdgesFor("regenerate")
	require.Len(t, regen, 1)
	assert.Equal(t, []string{"build.ninja"}, regen[0].Outputs)
	assert.Equal(t, []string{"/src/foundry.yaml"}, regen[0].Inputs)

	rules := map[string]ninja.Rule{}
	for _, r := range g.Rules {
		rules[r.Name] = r
	}
	assert.True(t, rules["regenerate"].Generator)
	assert.Equal(t, "/usr/bin/foundry generate --config /src/foundry.yaml --build-dir /b", rules["regenerate"].Command)
	assert.True(t, strings.HasPrefix(rules["yocto_build"].Command,
		"bash -c '/usr/bin/foundry fetcherdep --config /src/foundry.yaml --build-dir /b --output .foundry_$name.d $name && "))
	assert.Equal(t, builder.DepfileName, rules["yocto_build"].Depfile)
}

func TestGenerateWithoutSelf(t *testing.T) {
	g, err := New(load(t, product), Options{BuildRoot: "/b"}).Generate()
	require.NoError(t, err)

	assert.NotContains(t, ruleNames(g), "regenerate")
	for _, r := range g.Rules {
		assert.Empty(t, r.Depfile, r.Name)
		assert.NotContains(t, r.Command, "fetcherdep", r.Name)
	}
}

func TestGenerateUnknownType(t *testing.T) {
	doc := load(t, `
components:
  kernel:
    builder:
      type: android_kernel
      target_images: [boot.img]
  rootfs:
    sources:
      - url: https://git.buildroot.net/buildroot
    builder:
      type: buildroot
      target_images: [rootfs.ext4]
  late:
    builder:
      type: android
      lunch_target: x
      target_images: [img]
`)
	g, err := New(doc, Options{BuildRoot: "/b"}).Generate()
	require.Error(t, err)

	var uerr *builder.UnknownTypeError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, "rootfs", uerr.Component)
	assert.Contains(t, err.Error(), "/src/foundry.yaml:")

	// The kernel component is intact; nothing of rootfs or later was
	// emitted.
	assert.Equal(t, []string{"android_kernel_build"}, ruleNames(g))
	require.Len(t, g.Edges, 2)
	assert.Equal(t, []string{"/b/kernel/boot.img"}, g.Edges[0].Outputs)
	assert.Equal(t, []string{"kernel"}, g.Edges[1].Outputs)
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, NinjaFile)

	require.NoError(t, New(load(t, product), Options{BuildRoot: root}).Write(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# This file is generated by foundry."))
	assert.Contains(t, string(data), "build kernel: phony "+filepath.Join(root, "kernel", "out", "boot.img")+"\n")
	assert.Contains(t, string(data), "  env = FOO=bar\n")

	bad := load(t, "components:\n  x:\n    builder: {type: nope, target_images: [a]}\n")
	require.Error(t, New(bad, Options{BuildRoot: root}).Write(out))

	again, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, again, "failed generation must keep the previous graph")
}

func TestWriteRegenerateEdge(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, NinjaFile)
	gen := New(load(t, product), Options{BuildRoot: root, Self: "/usr/bin/foundry"})
	require.NoError(t, gen.Write(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\nbuild build.ninja: regenerate /src/foundry.yaml\n")
	assert.NotContains(t, string(data), "build "+out+":")
}

func TestGenerateRejectsNewlines(t *testing.T) {
	doc := load(t, `
components:
  kernel:
    builder:
      type: android_kernel
      env:
        - |
          FOO=bar
          BAZ=qux
      target_images: [boot.img]
`)
	gen := New(doc, Options{BuildRoot: "/b"})
	_, err := gen.Generate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newline in value of env")
	assert.Error(t, gen.Check())
}

func TestGenerateSharedStamp(t *testing.T) {
	doc := load(t, `
components:
  meta-a:
    sources:
      - url: https://example.com/b
    builder: {type: android_kernel, target_images: [a.img]}
  meta:
    sources:
      - url: https://example.com/x
        dir: a-b
    builder: {type: android_kernel, target_images: [b.img]}
`)
	_, err := New(doc, Options{BuildRoot: "/b"}).Generate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `component "meta": sources share the stamp /b/.stamps/meta-a-b-fetched with component "meta-a"`)
}

func TestTargets(t *testing.T) {
	gen := New(load(t, product), Options{BuildRoot: "/b"})

	targets, err := gen.Targets("kernel")
	require.NoError(t, err)
	assert.Equal(t, []string{"/b/kernel/out/boot.img"}, targets)

	_, err = gen.Targets("missing")
	assert.Error(t, err)

	require.NoError(t, gen.Check())
}

func TestDepfile(t *testing.T) {
	gen := New(load(t, product), Options{BuildRoot: "/b"})
	data, err := gen.Depfile("dom0")
	require.NoError(t, err)
	assert.Equal(t,
		"/b/yocto/build/tmp/deploy/images/h3ulcb/Image: \\\n  /src/foundry.yaml \\\n  /b/.stamps/dom0-poky-fetched\n",
		string(data))
}

func TestCapture(t *testing.T) {
	root := t.TempDir()
	cfg := filepath.Join(root, "foundry.yaml")
	src := `components:
  kernel:
    sources:
      - url: https://android.googlesource.com/kernel/common
        rev: android14-6.1
    builder:
      type: android_kernel
      target_images: [out/boot.img]
`
	require.NoError(t, os.WriteFile(cfg, []byte(src), 0644))

	repo, err := git.PlainInit(filepath.Join(root, "kernel", "common"), false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "foundry", Email: "foundry@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	doc, err := config.Load(cfg)
	require.NoError(t, err)
	var captured []string
	gen := New(doc, Options{
		BuildRoot: root,
		Progress:  func(component string) { captured = append(captured, component) },
	})
	require.NoError(t, gen.Capture(context.Background()))
	assert.Equal(t, []string{"kernel"}, captured)

	saved, err := config.Load(cfg)
	require.NoError(t, err)
	c, err := saved.Component("kernel")
	require.NoError(t, err)
	rev, err := c.Sources.Index(0).RequiredString("rev")
	require.NoError(t, err)
	assert.Equal(t, hash.String(), rev)

	backup, err := os.ReadFile(cfg + ".bak")
	require.NoError(t, err)
	assert.Equal(t, src, string(backup))
}
