// Package config loads and saves foundry.yaml build descriptions.
package config

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/dosanma1/foundry/pkg/xos"
)

// DefaultFile is the build description looked up when no path is given.
const DefaultFile = "foundry.yaml"

// namePattern matches component names usable as ninja targets and file names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Document is a parsed build description. It is the persisted surface that
// state capture writes pinned revisions into.
type Document struct {
	path string
	root yaml.Node
}

// Component is one entry of the components map.
type Component struct {
	Name     string
	BuildDir string // relative to the build root
	Sources  Value  // may be absent
	Builder  Value
	Mark     Mark
}

// Load reads and parses a build description.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseDocument(data, path)
}

// ParseDocument parses a build description held in memory.
func ParseDocument(data []byte, path string) (*Document, error) {
	d := &Document{path: path}
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, Errorf(Mark{File: path}, "failed to parse config: %v", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the file the document was loaded from.
func (d *Document) Path() string { return d.path }

// Root returns a view of the document root.
func (d *Document) Root() Value { return NewValue(&d.root, d.path) }

// Desc returns the optional description line.
func (d *Document) Desc() string {
	s, _ := d.Root().GetString("desc", "")
	return s
}

// Validate checks the document structure that is shared by every
// technology. Builder specific fields are checked by the builders.
func (d *Document) Validate() error {
	root := d.Root()
	if !root.IsMap() {
		return Errorf(root.Mark(), "expected a mapping at the document root")
	}
	_, err := d.Components()
	return err
}

// Components returns the components in declaration order.
func (d *Document) Components() ([]Component, error) {
	comps, err := d.Root().Required("components")
	if err != nil {
		return nil, err
	}
	if !comps.IsMap() {
		return nil, Errorf(comps.Mark(), "expected a mapping at %q", comps.describe())
	}

	var out []Component
	for _, name := range comps.Keys() {
		c, _ := comps.Get(name)
		if !namePattern.MatchString(name) {
			return nil, Errorf(c.Mark(), "invalid component name %q", name)
		}
		if !c.IsMap() {
			return nil, Errorf(c.Mark(), "expected a mapping at %q", c.describe())
		}
		b, err := c.Required("builder")
		if err != nil {
			return nil, err
		}
		if !b.IsMap() {
			return nil, Errorf(b.Mark(), "expected a mapping at %q", b.describe())
		}
		dir, err := c.GetString("build-dir", name)
		if err != nil {
			return nil, err
		}
		src, _ := c.Get("sources")
		out = append(out, Component{
			Name:     name,
			BuildDir: dir,
			Sources:  src,
			Builder:  b,
			Mark:     c.Mark(),
		})
	}
	return out, nil
}

// Component returns the named component.
func (d *Document) Component(name string) (Component, error) {
	comps, err := d.Components()
	if err != nil {
		return Component{}, err
	}
	for _, c := range comps {
		if c.Name == name {
			return c, nil
		}
	}
	return Component{}, fmt.Errorf("component not found: %s", name)
}

// Bytes encodes the document back into YAML.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&d.root); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path atomically. An existing file is kept
// with a .bak suffix.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := xos.WriteFileWithBackup(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
