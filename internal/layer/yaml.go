package layer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// yamlDoc is the YAML layer source:
//
//	symbols:
//	  - name: HW_I2C0_SCL
//	    value: 9
//	  - name: HW_UART_TX
//	    ref: HW_DEFAULT_TX
//	    fixed: true
type yamlDoc struct {
	Symbols []yaml.Node `yaml:"symbols"`
}

type yamlSymbol struct {
	Name   string    `yaml:"name"`
	Value  yaml.Node `yaml:"value"`
	Ref    string    `yaml:"ref"`
	Fixed  bool      `yaml:"fixed"`
	Shared bool      `yaml:"shared"`
}

func parseYAML(data []byte, opts Options) ([]types.Symbol, error) {
	pol := opts.policy()

	var doc yamlDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, parseError(opts, yamlErrorLine(err), "", err)
	}

	defs := make([]types.Symbol, 0, len(doc.Symbols))
	for i := range doc.Symbols {
		node := &doc.Symbols[i]
		var ys yamlSymbol
		if err := node.Decode(&ys); err != nil {
			return nil, parseError(opts, node.Line, "", err)
		}
		if ys.Name == "" {
			return nil, parseError(opts, node.Line, "", fmt.Errorf("symbol %d has no name", i+1))
		}

		mods := modifiers{fixed: ys.Fixed, shared: ys.Shared}
		hasValue := ys.Value.Kind != 0
		switch {
		case hasValue && ys.Ref != "":
			return nil, parseError(opts, node.Line, ys.Name, fmt.Errorf("%s sets both value and ref", ys.Name))
		case ys.Ref != "":
			sym, err := buildSymbol(pol, ys.Name, ys.Ref, node.Line, mods)
			if err != nil {
				return nil, parseError(opts, node.Line, pol.Normalize(ys.Name), err)
			}
			if sym.Ref == "" {
				return nil, parseError(opts, node.Line, sym.Name, fmt.Errorf("ref %q is not a recognised key", ys.Ref))
			}
			defs = append(defs, sym)
		case hasValue:
			raw, err := yamlScalar(&ys.Value)
			if err != nil {
				return nil, parseError(opts, ys.Value.Line, pol.Normalize(ys.Name), err)
			}
			sym, err := buildSymbol(pol, ys.Name, raw, node.Line, mods)
			if err != nil {
				return nil, parseError(opts, node.Line, pol.Normalize(ys.Name), err)
			}
			defs = append(defs, sym)
		default:
			return nil, parseError(opts, node.Line, ys.Name, fmt.Errorf("%s has no value", ys.Name))
		}
	}
	return defs, nil
}

// yamlScalar converts a YAML scalar to the raw text ParseValue expects.
// YAML strings stay strings even when they look like keys or numbers.
func yamlScalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: value must be a scalar", n.Line)
	}
	switch n.ShortTag() {
	case "!!int", "!!bool":
		return n.Value, nil
	case "!!str":
		return strconv.Quote(n.Value), nil
	default:
		return "", fmt.Errorf("line %d: unsupported value type %s", n.Line, n.ShortTag())
	}
}

// yamlErrorLine extracts the first line number from a yaml.TypeError, or 0.
func yamlErrorLine(err error) int {
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		var line int
		if _, scanErr := fmt.Sscanf(te.Errors[0], "line %d:", &line); scanErr == nil {
			return line
		}
	}
	return 0
}
