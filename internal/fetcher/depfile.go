package fetcher

import (
	"strings"

	"github.com/dosanma1/foundry/internal/shell"
)

// GateCommand returns the shell fragment that writes a component's fetch
// depfile. self is the foundry executable, config the build description.
// The fragment references the $name variable of the edge it runs on.
func GateCommand(self, config, buildRoot string) string {
	argv := shell.QuoteCommand(self, "fetcherdep", "--config", config, "--build-dir", buildRoot)
	// argv lands in a rule template, where a literal $ must be doubled.
	return strings.ReplaceAll(argv, "$", "$$") + " --output .foundry_$name.d $name"
}

// Depfile renders a gcc style depfile: target depends on deps.
func Depfile(target string, deps []string) []byte {
	var b strings.Builder
	b.WriteString(escapeMake(target))
	b.WriteString(":")
	for _, d := range deps {
		b.WriteString(" \\\n  ")
		b.WriteString(escapeMake(d))
	}
	b.WriteString("\n")
	return []byte(b.String())
}

var makeEscaper = strings.NewReplacer(
	" ", `\ `,
	"#", `\#`,
	"$", "$$",
)

func escapeMake(p string) string { return makeEscaper.Replace(p) }
