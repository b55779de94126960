package pipeline

import (
	"fmt"

	"github.com/mesh-intelligence/boardcfg/internal/chip"
	"github.com/mesh-intelligence/boardcfg/internal/layer"
	"github.com/mesh-intelligence/boardcfg/internal/policy"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Source yields one layer of the stack, typically by parsing a file.
type Source interface {
	Load() (*types.Layer, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*types.Layer, error)

// Load calls f.
func (f SourceFunc) Load() (*types.Layer, error) { return f() }

// Static returns a Source for a layer that is already loaded.
func Static(l *types.Layer) Source {
	return SourceFunc(func() (*types.Layer, error) { return l, nil })
}

// File returns a Source that parses the file at path.
func File(path string, opts layer.Options) Source {
	return SourceFunc(func() (*types.Layer, error) { return layer.LoadFile(path, opts) })
}

// Assignments returns a Source building an override layer from KEY to raw
// value text read from source.
func Assignments(name, source string, values map[string]string, pol *policy.Policy) Source {
	return SourceFunc(func() (*types.Layer, error) {
		return layer.FromMap(values, layer.Options{
			Name:   name,
			Tier:   types.TierOverride,
			Policy: pol,
			Source: source,
		})
	})
}

// Defines returns a Source building an override layer from KEY=VALUE
// assignments in command-line order.
func Defines(name string, assigns []string, pol *policy.Policy) Source {
	return SourceFunc(func() (*types.Layer, error) {
		return layer.FromAssignments(assigns, layer.Options{
			Name:   name,
			Tier:   types.TierOverride,
			Policy: pol,
			Source: "command line",
		})
	})
}

// ChipLayer returns a Source for the chip tier: the descriptor's fixed MCU
// identity and its default symbols.
func ChipLayer(d *chip.Descriptor, pol *policy.Policy) Source {
	return SourceFunc(func() (*types.Layer, error) {
		src := d.Source
		if src == "" {
			src = fmt.Sprintf("builtin chip %s", d.Name)
		}
		return layer.FromMap(d.Symbols(), layer.Options{
			Name:   "chip",
			Tier:   types.TierChip,
			Policy: pol,
			Source: src,
		})
	})
}
