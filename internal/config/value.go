package config

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Value is a read-only view over a node of a parsed configuration file.
// The zero Value represents an absent node.
type Value struct {
	node *yaml.Node
	file string
	path string
}

// NewValue wraps a yaml node. file is only used for error marks.
func NewValue(node *yaml.Node, file string) Value {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	return Value{node: resolve(node), file: file}
}

// Parse parses a YAML document into a Value.
func Parse(data []byte, file string) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Value{}, Errorf(Mark{File: file}, "parse: %v", err)
	}
	return NewValue(&doc, file), nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// Exists reports whether the node is present.
func (v Value) Exists() bool { return v.node != nil }

// Path returns the dotted path of the node from the document root.
func (v Value) Path() string { return v.path }

// Mark returns the source location of the node.
func (v Value) Mark() Mark {
	if v.node == nil {
		return Mark{File: v.file}
	}
	return Mark{File: v.file, Line: v.node.Line, Column: v.node.Column}
}

// IsList reports whether the node is a sequence.
func (v Value) IsList() bool { return v.node != nil && v.node.Kind == yaml.SequenceNode }

// IsMap reports whether the node is a mapping.
func (v Value) IsMap() bool { return v.node != nil && v.node.Kind == yaml.MappingNode }

// IsScalar reports whether the node is a scalar.
func (v Value) IsScalar() bool { return v.node != nil && v.node.Kind == yaml.ScalarNode }

func (v Value) child(n *yaml.Node, name string) Value {
	p := name
	if v.path != "" {
		if strings.HasPrefix(name, "[") {
			p = v.path + name
		} else {
			p = v.path + "." + name
		}
	}
	return Value{node: resolve(n), file: v.file, path: p}
}

// Get returns the child node with the given key. The second result is false
// when v is not a mapping or the key is absent. An explicit null counts as
// absent.
func (v Value) Get(key string) (Value, bool) {
	if !v.IsMap() {
		return Value{}, false
	}
	c := v.node.Content
	for i := 0; i+1 < len(c); i += 2 {
		if c[i].Value == key {
			ch := v.child(c[i+1], key)
			if ch.isNull() {
				return Value{}, false
			}
			return ch, true
		}
	}
	return Value{}, false
}

// Required returns the child node with the given key, or an error located
// at v when it is absent.
func (v Value) Required(key string) (Value, error) {
	if !v.IsMap() {
		return Value{}, Errorf(v.Mark(), "expected a mapping at %q", v.describe())
	}
	c, ok := v.Get(key)
	if !ok {
		return Value{}, Errorf(v.Mark(), "missing required field %q in %q", key, v.describe())
	}
	return c, nil
}

// AsString returns the scalar value of the node.
func (v Value) AsString() (string, error) {
	if !v.IsScalar() {
		return "", Errorf(v.Mark(), "expected a string at %q", v.describe())
	}
	return v.node.Value, nil
}

// GetString returns the string under key, or def when the key is absent.
func (v Value) GetString(key, def string) (string, error) {
	c, ok := v.Get(key)
	if !ok {
		return def, nil
	}
	return c.AsString()
}

// RequiredString returns the string under key, failing when it is absent.
func (v Value) RequiredString(key string) (string, error) {
	c, err := v.Required(key)
	if err != nil {
		return "", err
	}
	return c.AsString()
}

// Len returns the number of elements of a list or pairs of a mapping.
func (v Value) Len() int {
	switch {
	case v.IsList():
		return len(v.node.Content)
	case v.IsMap():
		return len(v.node.Content) / 2
	}
	return 0
}

// Index returns the i-th element of a list.
func (v Value) Index(i int) Value {
	if !v.IsList() || i < 0 || i >= len(v.node.Content) {
		return Value{}
	}
	return v.child(v.node.Content[i], "["+strconv.Itoa(i)+"]")
}

// Items returns the elements of a list, or an error when v is not a list.
func (v Value) Items() ([]Value, error) {
	if !v.IsList() {
		return nil, Errorf(v.Mark(), "expected an array at %q", v.describe())
	}
	items := make([]Value, 0, len(v.node.Content))
	for i := range v.node.Content {
		items = append(items, v.Index(i))
	}
	return items, nil
}

// Keys returns mapping keys in declaration order.
func (v Value) Keys() []string {
	if !v.IsMap() {
		return nil
	}
	var keys []string
	c := v.node.Content
	for i := 0; i+1 < len(c); i += 2 {
		keys = append(keys, c[i].Value)
	}
	return keys
}

// StringList returns a list of scalars as strings.
func (v Value) StringList() ([]string, error) {
	items, err := v.Items()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := item.AsString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// OptionalStringList returns the string list under key, or nil when the key
// is absent or null.
func (v Value) OptionalStringList(key string) ([]string, error) {
	c, ok := v.Get(key)
	if !ok {
		return nil, nil
	}
	return c.StringList()
}

func (v Value) isNull() bool {
	return v.IsScalar() && v.node.Tag == "!!null"
}

func (v Value) describe() string {
	if v.path == "" {
		return "<root>"
	}
	return v.path
}
