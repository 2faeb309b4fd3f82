package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// node is a decoded JSON or YAML document with object key order preserved,
// so catalog order follows document order.
type node struct {
	kind   nodeKind
	str    string // string value, or the literal text of a number
	num    float64
	flag   bool
	fields []field
	items  []*node
}

type nodeKind int

const (
	nullNode nodeKind = iota
	boolNode
	numberNode
	stringNode
	objectNode
	arrayNode
)

type field struct {
	key string
	val *node
}

// get returns the first field whose snake_case key is one of names.
func (n *node) get(names ...string) (*node, string, bool) {
	if n == nil || n.kind != objectNode {
		return nil, "", false
	}
	for _, f := range n.fields {
		k := SnakeCase(f.key)
		for _, name := range names {
			if k == name {
				return f.val, f.key, true
			}
		}
	}
	return nil, "", false
}

// text returns a scalar as a string; arrays of scalars are joined.
func (n *node) text() (string, bool) {
	switch n.kind {
	case stringNode, numberNode:
		return n.str, true
	case boolNode:
		return strconv.FormatBool(n.flag), true
	case arrayNode:
		var parts []string
		for _, it := range n.items {
			s, ok := it.text()
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), len(parts) > 0
	}
	return "", false
}

func decodeJSON(data []byte) (*node, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidDocument)
	}
	return fromGJSON(gjson.ParseBytes(data)), nil
}

func fromGJSON(r gjson.Result) *node {
	switch {
	case r.IsObject():
		n := &node{kind: objectNode}
		r.ForEach(func(k, v gjson.Result) bool {
			n.fields = append(n.fields, field{key: k.String(), val: fromGJSON(v)})
			return true
		})
		return n
	case r.IsArray():
		n := &node{kind: arrayNode}
		r.ForEach(func(_, v gjson.Result) bool {
			n.items = append(n.items, fromGJSON(v))
			return true
		})
		return n
	}
	switch r.Type {
	case gjson.String:
		return &node{kind: stringNode, str: r.Str}
	case gjson.Number:
		return &node{kind: numberNode, str: r.Raw, num: r.Num}
	case gjson.True:
		return &node{kind: boolNode, flag: true}
	case gjson.False:
		return &node{kind: boolNode}
	}
	return &node{kind: nullNode}
}

func decodeYAML(data []byte) (*node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty YAML document", ErrInvalidDocument)
	}
	return fromYAML(doc.Content[0], 0)
}

const maxYAMLDepth = 256

func fromYAML(y *yaml.Node, depth int) (*node, error) {
	if depth > maxYAMLDepth {
		return nil, fmt.Errorf("%w: YAML nesting too deep", ErrInvalidDocument)
	}
	switch y.Kind {
	case yaml.AliasNode:
		return fromYAML(y.Alias, depth+1)
	case yaml.MappingNode:
		n := &node{kind: objectNode}
		for i := 0; i+1 < len(y.Content); i += 2 {
			v, err := fromYAML(y.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			n.fields = append(n.fields, field{key: y.Content[i].Value, val: v})
		}
		return n, nil
	case yaml.SequenceNode:
		n := &node{kind: arrayNode}
		for _, c := range y.Content {
			v, err := fromYAML(c, depth+1)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, v)
		}
		return n, nil
	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!null":
			return &node{kind: nullNode}, nil
		case "!!bool":
			var b bool
			if err := y.Decode(&b); err != nil {
				return &node{kind: stringNode, str: y.Value}, nil
			}
			return &node{kind: boolNode, flag: b}, nil
		case "!!int", "!!float":
			f, err := strconv.ParseFloat(y.Value, 64)
			if err != nil {
				var v float64
				if y.Decode(&v) != nil {
					return &node{kind: stringNode, str: y.Value}, nil
				}
				f = v
			}
			return &node{kind: numberNode, str: y.Value, num: f}, nil
		}
		return &node{kind: stringNode, str: y.Value}, nil
	}
	return &node{kind: nullNode}, nil
}
