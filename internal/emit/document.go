package emit

import (
	"encoding/json"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// document is the structured artifact shared by the JSON and CBOR formats.
type document struct {
	Board   string  `json:"board" cbor:"board"`
	Chip    string  `json:"chip" cbor:"chip"`
	Symbols []entry `json:"symbols" cbor:"symbols"`
}

type entry struct {
	Name     string `json:"name" cbor:"name"`
	Kind     string `json:"kind" cbor:"kind"`
	Value    any    `json:"value" cbor:"value"`
	Instance string `json:"instance,omitempty" cbor:"instance,omitempty"`
	Layer    string `json:"layer" cbor:"layer"`
}

func newDocument(cfg *types.ResolvedConfig) document {
	syms := cfg.Table().Symbols()
	doc := document{Board: cfg.Board(), Chip: cfg.Chip(), Symbols: make([]entry, 0, len(syms))}
	for _, s := range syms {
		doc.Symbols = append(doc.Symbols, entry{
			Name:     s.Name,
			Kind:     s.Kind.String(),
			Value:    literal(s),
			Instance: s.Instance,
			Layer:    s.Layer,
		})
	}
	return doc
}

// literal returns the emitted value of s, with 0/1 feature flags as bools.
func literal(s types.Symbol) any {
	if s.Kind == types.KindBoolean {
		if b, ok := s.Bool(); ok {
			return b
		}
	}
	return s.Value
}

func renderJSON(cfg *types.ResolvedConfig) ([]byte, error) {
	data, err := json.MarshalIndent(newDocument(cfg), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
