package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/ninja"
)

func component(t *testing.T, src string) config.Component {
	t.Helper()
	d, err := config.ParseDocument([]byte(src), "foundry.yaml")
	require.NoError(t, err)
	comps, err := d.Components()
	require.NoError(t, err)
	require.NotEmpty(t, comps)
	return comps[0]
}

const twoSources = `
components:
  dom0:
    build-dir: yocto
    sources:
      - type: git
        url: https://git.yoctoproject.org/poky.git
        rev: kirkstone
      - url: git@github.com:renesas-rcar/meta-renesas
        dir: layers/meta-renesas
    builder:
      type: yocto
      build_target: core-image-minimal
      target_images: [img]
`

func TestParseSources(t *testing.T) {
	sources, err := ParseSources(component(t, twoSources))
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "https://git.yoctoproject.org/poky.git", sources[0].URL)
	assert.Equal(t, "kirkstone", sources[0].Rev)
	assert.Equal(t, "poky", sources[0].Dir)

	assert.Equal(t, DefaultRev, sources[1].Rev)
	assert.Equal(t, "layers/meta-renesas", sources[1].Dir)
	assert.Equal(t, 1, sources[1].Index)
}

func TestDefaultDir(t *testing.T) {
	tests := map[string]string{
		"https://android.googlesource.com/kernel/common": "common",
		"https://git.yoctoproject.org/poky.git":          "poky",
		"git@github.com:renesas-rcar/meta-renesas.git":   "meta-renesas",
		"https://gerrit.automotivelinux.org/gerrit/AGL/": "AGL",
		"file:///srv/mirror/meta-openembedded.git":       "meta-openembedded",
	}
	for url, want := range tests {
		assert.Equal(t, want, defaultDir(url), url)
	}
}

func TestParseSourcesErrors(t *testing.T) {
	tests := []struct {
		name    string
		sources string
		wantMsg string
	}{
		{"unknown type", "[{type: svn, url: x}]", `unknown source type "svn"`},
		{"missing url", "[{type: git}]", `missing required field "url"`},
		{"not a list", "{url: x}", "expected an array"},
		{"scalar entry", "[x]", "expected a mapping"},
		{"duplicate dir", "[{url: a/x}, {url: b/x.git}]", `duplicate source directory "x"`},
		{"shared stamp", "[{url: x, dir: a/b}, {url: y, dir: a_b}]", `source directories "a/b" and "a_b" share a stamp`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := component(t, "components:\n  a:\n    sources: "+tt.sources+"\n    builder: {type: android}\n")
			_, err := ParseSources(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Contains(t, err.Error(), "foundry.yaml:")
		})
	}
}

func TestGenBuild(t *testing.T) {
	f, err := New(component(t, twoSources), Options{BuildRoot: "/b", ConfigPath: "/src/foundry.yaml"})
	require.NoError(t, err)

	g := ninja.NewGraph()
	require.NoError(t, Rules(g))
	stamps := f.GenBuild(g)

	wantStamps := []string{
		"/b/.stamps/dom0-poky-fetched",
		"/b/.stamps/dom0-layers_meta-renesas-fetched",
	}
	assert.Equal(t, wantStamps, stamps)
	assert.Equal(t, wantStamps, f.Stamps())

	clones := g.EdgesFor("git_clone")
	require.Len(t, clones, 2)
	assert.Equal(t, []string{"/b/.stamps/dom0-poky-cloned"}, clones[0].Outputs)
	assert.Equal(t, "/b/yocto/poky", clones[0].Variables["dir"])
	assert.Equal(t, "https://git.yoctoproject.org/poky.git", clones[0].Variables["url"])

	checkouts := g.EdgesFor("git_checkout")
	require.Len(t, checkouts, 2)
	assert.Equal(t, []string{"/b/.stamps/dom0-poky-cloned", "/src/foundry.yaml"}, checkouts[0].Inputs)
	assert.Equal(t, "kirkstone", checkouts[0].Variables["rev"])
	assert.Equal(t, []string{wantStamps[1]}, checkouts[1].Outputs)
	assert.Equal(t, "/b/yocto/layers/meta-renesas", checkouts[1].Variables["dir"])
}

func TestNoSources(t *testing.T) {
	f, err := New(component(t, "components:\n  k:\n    builder: {type: android_kernel}\n"), Options{BuildRoot: "/b"})
	require.NoError(t, err)

	g := ninja.NewGraph()
	assert.Empty(t, f.GenBuild(g))
	assert.Empty(t, g.Edges)
}

func TestRules(t *testing.T) {
	g := ninja.NewGraph()
	require.NoError(t, Rules(g))
	require.Len(t, g.Rules, 2)
	assert.Equal(t,
		"bash -c 'mkdir -p $stamp_dir && { [ -d $dir/.git ] || git clone --no-checkout $url $dir; } && touch $stamp'",
		g.Rules[0].Command)
	assert.Equal(t,
		"bash -c 'git -C $dir fetch origin $rev && git -C $dir checkout --detach FETCH_HEAD && touch $stamp'",
		g.Rules[1].Command)

	assert.Error(t, Rules(g))
}

type revisionCall struct {
	component string
	index     int
	rev       string
}

type fakeStore struct {
	calls []revisionCall
}

func (s *fakeStore) SetSourceRevision(component string, index int, rev string) error {
	s.calls = append(s.calls, revisionCall{component, index, rev})
	return nil
}

func initRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hello\n"), 0644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "foundry", Email: "foundry@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestCaptureState(t *testing.T) {
	root := t.TempDir()
	f, err := New(component(t, twoSources), Options{BuildRoot: root})
	require.NoError(t, err)

	poky := initRepo(t, filepath.Join(root, "yocto", "poky"))
	renesas := initRepo(t, filepath.Join(root, "yocto", "layers", "meta-renesas"))

	store := &fakeStore{}
	require.NoError(t, f.CaptureState(context.Background(), store))
	assert.Equal(t, []revisionCall{
		{"dom0", 0, poky},
		{"dom0", 1, renesas},
	}, store.calls)
}

func TestCaptureStateNotFetched(t *testing.T) {
	f, err := New(component(t, twoSources), Options{BuildRoot: t.TempDir()})
	require.NoError(t, err)

	err = f.CaptureState(context.Background(), &fakeStore{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not fetched yet")
}

func TestDepfile(t *testing.T) {
	got := Depfile("/b/yocto/build/tmp/img", []string{"/src/foundry.yaml", "/b/.stamps/my dir-fetched"})
	assert.Equal(t,
		"/b/yocto/build/tmp/img: \\\n  /src/foundry.yaml \\\n  /b/.stamps/my\\ dir-fetched\n",
		string(got))
}

func TestGateCommand(t *testing.T) {
	assert.Equal(t,
		"/usr/bin/foundry fetcherdep --config /src/foundry.yaml --build-dir /b --output .foundry_$name.d $name",
		GateCommand("/usr/bin/foundry", "/src/foundry.yaml", "/b"))
	assert.Equal(t,
		"'/opt/my tools/foundry' fetcherdep --config /src/foundry.yaml --build-dir /b --output .foundry_$name.d $name",
		GateCommand("/opt/my tools/foundry", "/src/foundry.yaml", "/b"))
}
