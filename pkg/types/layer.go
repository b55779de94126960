package types

import (
	"fmt"
	"strings"
)

// Tier is the precedence tier of a layer. Higher tiers override lower ones.
type Tier int

// Precedence tiers, lowest first.
const (
	TierChip Tier = iota + 1
	TierPort
	TierBoard
	TierOverride
)

var tierNames = map[Tier]string{
	TierChip:     "chip",
	TierPort:     "port",
	TierBoard:    "board",
	TierOverride: "override",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// ParseTier returns the tier named by s (case-insensitive).
func ParseTier(s string) (Tier, error) {
	lower := strings.ToLower(s)
	for t, name := range tierNames {
		if name == lower {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// Layer is one named set of symbol definitions at a single precedence tier.
// A Layer is immutable once built; accessors return copies.
type Layer struct {
	name   string
	tier   Tier
	source string
	defs   []Symbol
}

// NewLayer builds a layer from definitions in declaration order. Each
// definition is stamped with the layer's name, tier and source.
func NewLayer(name string, tier Tier, source string, defs []Symbol) *Layer {
	cp := make([]Symbol, len(defs))
	for i, d := range defs {
		d.Layer = name
		d.Tier = tier
		if d.Source == "" {
			d.Source = source
		}
		cp[i] = d
	}
	return &Layer{name: name, tier: tier, source: source, defs: cp}
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Tier returns the layer tier.
func (l *Layer) Tier() Tier { return l.tier }

// Source returns the path or label the layer was loaded from.
func (l *Layer) Source() string { return l.source }

// Len returns the number of definitions, duplicates included.
func (l *Layer) Len() int { return len(l.defs) }

// Definitions returns a copy of the definitions in declaration order.
func (l *Layer) Definitions() []Symbol {
	cp := make([]Symbol, len(l.defs))
	copy(cp, l.defs)
	return cp
}

// LayerStack is an ordered sequence of layers, lowest precedence first.
type LayerStack struct {
	layers []*Layer
}

// NewLayerStack fixes the precedence order of layers. Later layers override
// earlier ones. The stack must be non-empty, layer names must be unique and
// tiers must not decrease.
func NewLayerStack(layers ...*Layer) (*LayerStack, error) {
	if len(layers) == 0 {
		return nil, ErrEmptyStack
	}
	seen := make(map[string]bool, len(layers))
	for i, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("layer %d: %w", i, ErrEmptyStack)
		}
		if seen[l.name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, l.name)
		}
		seen[l.name] = true
		if i > 0 && l.tier < layers[i-1].tier {
			return nil, fmt.Errorf("%w: %s layer %q after %s layer %q",
				ErrLayerOrder, l.tier, l.name, layers[i-1].tier, layers[i-1].name)
		}
	}
	cp := make([]*Layer, len(layers))
	copy(cp, layers)
	return &LayerStack{layers: cp}, nil
}

// Layers returns the layers lowest precedence first.
func (s *LayerStack) Layers() []*Layer {
	cp := make([]*Layer, len(s.layers))
	copy(cp, s.layers)
	return cp
}

// Len returns the number of layers.
func (s *LayerStack) Len() int { return len(s.layers) }

// Names returns the layer names lowest precedence first.
func (s *LayerStack) Names() []string {
	names := make([]string, len(s.layers))
	for i, l := range s.layers {
		names[i] = l.name
	}
	return names
}
