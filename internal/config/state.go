package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SetOverrides records pairs in the override list stored under key in the
// builder of the named component. A pair whose key already has a plain
// entry in the list replaces that entry's value; other pairs are appended,
// so they shadow anything pulled in through aliases.
func (d *Document) SetOverrides(component, key string, pairs []Pair) error {
	c, err := d.Component(component)
	if err != nil {
		return err
	}
	builder := c.Builder.node

	list := mappingValue(builder, key)
	switch {
	case list == nil:
		list = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		builder.Content = append(builder.Content, strNode(key), list)
	case list.Kind == yaml.ScalarNode && list.Tag == "!!null":
		empty := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		d.setMappingValue(builder, key, empty)
		list = empty
	case list.Kind == yaml.AliasNode:
		// conf: *common becomes conf: [*common, ...] so the shared
		// anchor is left untouched.
		wrapped := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{list}}
		d.setMappingValue(builder, key, wrapped)
		list = wrapped
	}
	if list.Kind != yaml.SequenceNode {
		m := c.Builder.child(list, key).Mark()
		return Errorf(m, "expected array on %q node", key)
	}

	for _, p := range pairs {
		if e := findPair(list, p.Key); e != nil {
			d.replace(e, 1, strNode(p.Value))
			continue
		}
		list.Content = append(list.Content, &yaml.Node{
			Kind:    yaml.SequenceNode,
			Tag:     "!!seq",
			Style:   yaml.FlowStyle,
			Content: []*yaml.Node{strNode(p.Key), strNode(p.Value)},
		})
	}
	return nil
}

// SetSourceRevision pins the revision of the index-th source of a component.
func (d *Document) SetSourceRevision(component string, index int, rev string) error {
	c, err := d.Component(component)
	if err != nil {
		return err
	}
	src := c.Sources.Index(index)
	if !src.IsMap() {
		return fmt.Errorf("component %s has no source #%d", component, index)
	}
	if mappingValue(src.node, "rev") != nil {
		d.setMappingValue(src.node, "rev", strNode(rev))
		return nil
	}
	src.node.Content = append(src.node.Content, strNode("rev"), strNode(rev))
	return nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func (d *Document) setMappingValue(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			d.replace(m, i+1, v)
			return
		}
	}
}

// replace swaps the i-th child of parent for v. Aliases of a replaced
// anchored node get a copy of its value so the document stays loadable
// and keeps its meaning.
func (d *Document) replace(parent *yaml.Node, i int, v *yaml.Node) {
	old := parent.Content[i]
	parent.Content[i] = v
	if old.Anchor != "" {
		inlineAliases(&d.root, old)
	}
}

func inlineAliases(n, target *yaml.Node) {
	for i, c := range n.Content {
		if c.Kind == yaml.AliasNode && c.Alias == target {
			cp := *target
			cp.Anchor = ""
			n.Content[i] = &cp
			continue
		}
		inlineAliases(c, target)
	}
}

// findPair returns a plain [key, value] entry of list. Aliased and
// anchored entries are shared with other parts of the document and never
// edited.
func findPair(list *yaml.Node, key string) *yaml.Node {
	for _, e := range list.Content {
		if e.Kind != yaml.SequenceNode || e.Anchor != "" || len(e.Content) != 2 {
			continue
		}
		if e.Content[0].Kind == yaml.ScalarNode && e.Content[0].Value == key {
			return e
		}
	}
	return nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}
