package ninja

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Validate reports the first string that ninja syntax cannot carry. Ninja
// has no escape for a newline, so none may appear in a rule field, a path
// or a variable value.
func (g *Graph) Validate() error {
	for _, r := range g.Rules {
		fields := map[string]string{
			"command":     r.Command,
			"description": r.Description,
			"pool":        r.Pool,
			"depfile":     r.Depfile,
			"deps":        r.Deps,
		}
		for k, v := range fields {
			if strings.ContainsAny(v, "\r\n") {
				return fmt.Errorf("rule %s: newline in %s", r.Name, k)
			}
		}
	}
	for _, e := range g.Edges {
		for _, p := range append(append([]string(nil), e.Outputs...), e.Inputs...) {
			if strings.ContainsAny(p, "\r\n") {
				return fmt.Errorf("build %s: newline in path %q", edgeName(e), p)
			}
		}
		for k, v := range e.Variables {
			if strings.ContainsAny(v, "\r\n") {
				return fmt.Errorf("build %s: newline in value of %s: %q", edgeName(e), k, v)
			}
		}
	}
	return nil
}

func edgeName(e BuildParams) string {
	if len(e.Outputs) == 0 {
		return e.Rule
	}
	return e.Outputs[0]
}

// WriteTo serializes the graph: rules first, then edges, both in
// registration order. Nothing is written when Validate fails.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	fmt.Fprintln(bw, "# This file is generated by foundry. Do not edit.")
	fmt.Fprintln(bw, "ninja_required_version = 1.10")
	fmt.Fprintln(bw)

	for _, r := range g.Rules {
		writeRule(bw, r)
		fmt.Fprintln(bw)
	}
	for _, e := range g.Edges {
		writeBuild(bw, e)
		fmt.Fprintln(bw)
	}

	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func writeRule(w io.Writer, r Rule) {
	fmt.Fprintf(w, "rule %s\n", r.Name)
	writeVar(w, "command", r.Command)
	writeVar(w, "description", r.Description)
	writeVar(w, "pool", r.Pool)
	writeVar(w, "depfile", r.Depfile)
	writeVar(w, "deps", r.Deps)
	if r.Restat {
		writeVar(w, "restat", "1")
	}
	if r.Generator {
		writeVar(w, "generator", "1")
	}
}

func writeBuild(w io.Writer, e BuildParams) {
	line := "build " + escapePaths(e.Outputs) + ": " + e.Rule
	if len(e.Inputs) > 0 {
		line += " " + escapePaths(e.Inputs)
	}
	fmt.Fprintln(w, line)

	names := make([]string, 0, len(e.Variables))
	for k := range e.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		writeVar(w, k, EscapeValue(e.Variables[k]))
	}
}

// writeVar writes an indented binding; rule values are templates and are
// written verbatim.
func writeVar(w io.Writer, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "  %s = %s\n", key, value)
}

// EscapeValue escapes a literal string for use as a variable value. The
// string must not contain a newline.
func EscapeValue(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

// EscapePath escapes a path for use in a build line. The path must not
// contain a newline.
func EscapePath(p string) string {
	r := strings.NewReplacer("$", "$$", " ", "$ ", ":", "$:")
	return r.Replace(p)
}

func escapePaths(ps []string) string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, EscapePath(p))
	}
	return strings.Join(out, " ")
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
