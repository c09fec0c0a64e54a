package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/foundry/internal/config"
)

const kernelConfig = `desc: Kernel only
components:
  kernel:
    builder:
      type: android_kernel
      env: [FOO=bar]
      target_images: [boot.img]
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flag values live in package variables and survive between runs.
	configPath, buildDir, logLevel, logJSON = config.DefaultFile, ".", "info", false
	fetcherdepOutput = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "foundry.yaml")
	build := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(cfg, []byte(kernelConfig), 0644))
	flags := []string{"--config", cfg, "--build-dir", build, "--log-level", "error"}

	out, err := run(t, append([]string{"validate"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	out, err = run(t, append([]string{"generate"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Kernel only")

	ninjaFile, err := os.ReadFile(filepath.Join(build, "build.ninja"))
	require.NoError(t, err)
	assert.Contains(t, string(ninjaFile), "rule android_kernel_build\n")
	assert.Contains(t, string(ninjaFile), "build kernel: phony "+filepath.Join(build, "kernel", "boot.img"))

	out, err = run(t, append([]string{"targets", "kernel"}, flags...)...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(build, "kernel", "boot.img"), strings.TrimSpace(out))

	depfile := filepath.Join(dir, "kernel.d")
	_, err = run(t, append([]string{"fetcherdep", "--output", depfile, "kernel"}, flags...)...)
	require.NoError(t, err)
	data, err := os.ReadFile(depfile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), filepath.Join(build, "kernel", "boot.img")+":"))
}

func TestValidateReportsPosition(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "foundry.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`components:
  img:
    builder:
      type: android
      target_images: [system.img]
`), 0644))

	_, err := run(t, "validate", "--config", cfg, "--build-dir", dir, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required field "lunch_target"`)
	assert.Contains(t, err.Error(), cfg+":4:")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := run(t, "targets", "x", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}
