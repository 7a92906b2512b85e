package harness

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/marcshift/internal/ir"
)

// nodeRecord converts a YAML mapping into a record, keeping mapping
// order. Keys repeated in the mapping stay repeated occurrences.
func nodeRecord(n *yaml.Node) (*ir.Record, error) {
	v, err := nodeValue(n)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*ir.Record)
	if !ok {
		return nil, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	return rec, nil
}

// nodeValue converts a YAML node onto the Value union. Every scalar
// becomes a Scalar holding its literal text; null becomes absent.
func nodeValue(n *yaml.Node) (ir.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		rec := ir.NewRecord()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			val, err := nodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k.Value, err)
			}
			rec.Add(k.Value, val)
		}
		return rec, nil
	case yaml.SequenceNode:
		list := ir.List{}
		for i, item := range n.Content {
			val, err := nodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list = append(list, val)
		}
		return list, nil
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, nil
		}
		return ir.Scalar(n.Value), nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}
