package devicetree

import (
	"math"

	"gopkg.in/yaml.v3"

	"github.com/jimyag/sdfgen/pkg/sdferr"
)

// yamlNode is the fixture shape FromYAML expects — a convenient stand-in
// for a real FDT blob in tests and the demo CLI.
type yamlNode struct {
	Name       string                 `yaml:"name"`
	Properties map[string]any         `yaml:"properties"`
	Children   []yamlNode             `yaml:"children"`
}

// FromYAML builds a Node tree from a YAML fixture, for use in tests and
// the demo CLI where hand-authoring an FDT blob would be impractical.
// Each property value is one of: a list of strings, a list of integers
// (widened to u64 if any value exceeds uint32 range), a single string, or
// `true` for an empty/boolean flag property.
func FromYAML(data []byte) (*Node, error) {
	var yn yamlNode
	if err := yaml.Unmarshal(data, &yn); err != nil {
		return nil, sdferr.Wrap(sdferr.KindJsonParse, err, "devicetree yaml fixture")
	}
	return yn.toNode()
}

func (yn yamlNode) toNode() (*Node, error) {
	n := newNode(yn.Name)
	for name, v := range yn.Properties {
		p, err := toProperty(v)
		if err != nil {
			return nil, sdferr.Wrap(sdferr.KindInvalidConfig, err, "devicetree yaml fixture: property %q", name)
		}
		n.Properties[name] = p
	}
	for _, c := range yn.Children {
		child, err := c.toNode()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func toProperty(v any) (Property, error) {
	switch val := v.(type) {
	case bool:
		return Property{Flag: val}, nil
	case string:
		return Property{Strings: []string{val}}, nil
	case []any:
		return sliceToProperty(val)
	case nil:
		return Property{Flag: true}, nil
	default:
		return Property{}, sdferr.New(sdferr.KindInvalidConfig, "unsupported yaml property value %v (%T)", v, v)
	}
}

func sliceToProperty(items []any) (Property, error) {
	if len(items) == 0 {
		return Property{Flag: true}, nil
	}
	if _, ok := items[0].(string); ok {
		strs := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return Property{}, sdferr.New(sdferr.KindInvalidConfig, "mixed string/int list at index %d", i)
			}
			strs[i] = s
		}
		return Property{Strings: strs}, nil
	}

	needsU64 := false
	u64s := make([]uint64, len(items))
	for i, it := range items {
		n, ok := asUint64(it)
		if !ok {
			return Property{}, sdferr.New(sdferr.KindInvalidConfig, "non-integer cell at index %d", i)
		}
		u64s[i] = n
		if n > math.MaxUint32 {
			needsU64 = true
		}
	}
	if needsU64 {
		return Property{U64: u64s}, nil
	}
	u32s := make([]uint32, len(u64s))
	for i, n := range u64s {
		u32s[i] = uint32(n)
	}
	return Property{U32: u32s}, nil
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case uint64:
		return n, true
	default:
		return 0, false
	}
}
