// Package shell composes the multi-step commands used by ninja rules.
//
// A rule command is a Script: an ordered list of steps joined with "&&" and
// handed to bash as one single-quoted argument. Step words are template
// text and may reference ninja variables ($work_dir). Values that end up in
// those variables come from the build description and must go through
// Quote or QuoteList; nothing else in foundry is allowed to embed external
// strings into a command.
package shell

import (
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// StepKind identifies what a step does.
type StepKind int

const (
	StepChdir StepKind = iota + 1
	StepSource
	StepExport
	StepRun
	StepFragment
)

func (k StepKind) String() string {
	switch k {
	case StepChdir:
		return "chdir"
	case StepSource:
		return "source"
	case StepExport:
		return "export"
	case StepRun:
		return "run"
	case StepFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// Step is one command of a script.
type Step struct {
	Kind  StepKind
	Words []string
}

func (s Step) String() string {
	var prefix []string
	switch s.Kind {
	case StepChdir:
		prefix = []string{"cd"}
	case StepSource:
		prefix = []string{"source"}
	case StepExport:
		prefix = []string{"export"}
	}
	return strings.Join(append(prefix, s.Words...), " ")
}

// Chdir changes into dir.
func Chdir(dir string) Step { return Step{Kind: StepChdir, Words: []string{dir}} }

// Source sources an environment setup script with optional arguments.
func Source(script string, args ...string) Step {
	return Step{Kind: StepSource, Words: append([]string{script}, args...)}
}

// Export exports variable assignments, usually a single "$env" reference.
func Export(vars string) Step { return Step{Kind: StepExport, Words: []string{vars}} }

// Run invokes a program.
func Run(argv ...string) Step { return Step{Kind: StepRun, Words: argv} }

// Fragment inserts an opaque, already composed shell fragment.
func Fragment(s string) Step { return Step{Kind: StepFragment, Words: []string{s}} }

// Script is an ordered list of steps. Each step runs only if the previous
// one succeeded.
type Script []Step

// String joins the steps with "&&".
func (s Script) String() string {
	parts := make([]string, 0, len(s))
	for _, step := range s {
		if str := step.String(); str != "" {
			parts = append(parts, str)
		}
	}
	return strings.Join(parts, " && ")
}

// Bash returns the command running the script with bash -c.
func (s Script) Bash() string {
	return "bash -c " + singleQuote(s.String())
}

// Quote prepares an external value for a ninja variable that is referenced
// from a Bash command. The value is quoted for the inner bash and then
// escaped for the surrounding single-quoted argument.
func Quote(v string) string {
	return escapeSingle(shellescape.Quote(v))
}

// QuoteList quotes every value and joins them with spaces, producing one
// composed string such as an environment assignment list.
func QuoteList(vs []string) string {
	quoted := make([]string, 0, len(vs))
	for _, v := range vs {
		quoted = append(quoted, Quote(v))
	}
	return strings.Join(quoted, " ")
}

// QuoteCommand quotes argv for direct use inside a Bash script template.
func QuoteCommand(argv ...string) string {
	return shellescape.QuoteCommand(argv)
}

func singleQuote(s string) string {
	return "'" + escapeSingle(s) + "'"
}

// escapeSingle escapes s for use inside a single-quoted string.
func escapeSingle(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}
