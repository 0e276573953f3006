package service

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Yamlize writes the indexed services (last-wins on duplicate names) to
// w as YAML, one `name: {command: ...}` entry per service, sorted by
// name for deterministic output.
func Yamlize(services []Service, w io.Writer) error {
	index := Index(services)

	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	sort.Strings(names)

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range names {
		root.Content = append(root.Content,
			scalarNode(name),
			&yaml.Node{
				Kind:    yaml.MappingNode,
				Content: []*yaml.Node{scalarNode("command"), scalarNode(index[name].Command)},
			},
		)
	}

	out, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("cannot convert index to YAML: %w", err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("cannot write YAML: %w", err)
	}
	return nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
