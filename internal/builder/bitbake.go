package builder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dosanma1/foundry/internal/config"
	"github.com/dosanma1/foundry/internal/shell"
)

// foundryConf is written next to local.conf and holds the conf overrides.
const foundryConf = "conf/foundry.conf"

// writeConfSteps writes the conf overrides held in $conf and makes
// local.conf require them. They run inside the bitbake build directory.
// An unchanged foundry.conf keeps its timestamp so restat can skip the
// build.
func writeConfSteps() []shell.Step {
	const (
		require = `require ` + foundryConf
		pending = foundryConf + `.new`
	)
	return []shell.Step{
		shell.Chdir(`"$$BUILDDIR"`),
		shell.Run(`printf "%s\n" $conf > ` + pending),
		shell.Run(`{ cmp -s ` + pending + ` ` + foundryConf + ` && rm -f ` + pending + ` || mv ` + pending + ` ` + foundryConf + `; }`),
		shell.Run(`{ grep -qx "` + require + `" conf/local.conf || echo "` + require + `" >> conf/local.conf; }`),
	}
}

// confLines renders overrides as bitbake assignments, quoted for a command.
func confLines(pairs []config.Pair) string {
	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		v := strings.ReplaceAll(p.Value, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		lines = append(lines, fmt.Sprintf(`%s = "%s"`, p.Key, v))
	}
	return shell.QuoteList(lines)
}

var srcrevLine = regexp.MustCompile(`^(SRCREV(?:_[A-Za-z0-9_.+-]+)?)\s*=\s*"([^"]*)"\s*$`)

// collectSRCREVs reads the revisions buildhistory recorded for every
// recipe below workDir and returns them as per-recipe overrides, sorted by
// key.
func collectSRCREVs(workDir string) ([]config.Pair, error) {
	root := filepath.Join(workDir, "buildhistory", "packages")
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no buildhistory at %s; build with INHERIT += \"buildhistory\"", root)
		}
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(root, "*", "*", "latest_srcrev"))
	if err != nil {
		return nil, err
	}

	revs := make(map[string]string)
	for _, f := range files {
		recipe := filepath.Base(filepath.Dir(f))
		found, err := parseSRCREVs(f)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			key := p.Key + ":pn-" + recipe
			if prev, ok := revs[key]; ok && prev != p.Value {
				return nil, fmt.Errorf("%s: conflicting revisions %s and %s", key, prev, p.Value)
			}
			revs[key] = p.Value
		}
	}

	keys := make([]string, 0, len(revs))
	for k := range revs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]config.Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, config.Pair{Key: k, Value: revs[k]})
	}
	return pairs, nil
}

// parseSRCREVs parses a latest_srcrev file. Commented lines hold the
// unresolved values (e.g. ${AUTOREV}) and are skipped.
func parseSRCREVs(path string) ([]config.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pairs []config.Pair
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := srcrevLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		pairs = append(pairs, config.Pair{Key: m[1], Value: m[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return pairs, nil
}

// captureSRCREVs pins the revisions of a finished bitbake build.
func captureSRCREVs(ctx context.Context, p *Params, workDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.State == nil {
		return fmt.Errorf("component %s: no state store to capture into", p.Name)
	}
	pairs, err := collectSRCREVs(workDir)
	if err != nil {
		return fmt.Errorf("component %s: %w", p.Name, err)
	}
	p.logger().Info().
		Str("component", p.Name).
		Int("srcrevs", len(pairs)).
		Msg("captured bitbake revisions")
	if len(pairs) == 0 {
		return nil
	}
	return p.State.SetOverrides(p.Name, "conf", pairs)
}
