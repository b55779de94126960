// Package layer loads configuration sources into immutable layers and
// stacks them into precedence order. Loading never looks across layers;
// cross-layer checks belong to the resolver and validator.
package layer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/boardcfg/internal/policy"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Format selects the source syntax.
type Format int

// Source formats.
const (
	FormatAuto Format = iota
	FormatText        // #define KEY VALUE and KEY = VALUE lines
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatText:
		return "text"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Options configures loading of one layer.
type Options struct {
	// Name identifies the layer in provenance and diagnostics.
	Name string
	Tier types.Tier

	// Policy classifies keys. Nil selects policy.Default().
	Policy *policy.Policy

	Format Format

	// Source labels the input in diagnostics. LoadFile sets it to the path.
	Source string
}

func (o Options) policy() *policy.Policy {
	if o.Policy == nil {
		return policy.Default()
	}
	return o.Policy
}

// Load parses one configuration source into a Layer. Malformed syntax or a
// key outside the recognised namespaces aborts with a ParseError diagnostic
// on the first offending line.
func Load(r io.Reader, opts Options) (*types.Layer, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("load layer: name must not be empty")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read layer %s: %w", opts.Name, err)
	}

	format := opts.Format
	if format == FormatAuto {
		format = detectFormat(opts.Source, data)
	}

	var defs []types.Symbol
	switch format {
	case FormatYAML:
		defs, err = parseYAML(data, opts)
	default:
		defs, err = parseText(data, opts)
	}
	if err != nil {
		return nil, err
	}
	return types.NewLayer(opts.Name, opts.Tier, opts.Source, defs), nil
}

// LoadFile parses the file at path into a Layer.
func LoadFile(path string, opts Options) (*types.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layer source: %w", err)
	}
	defer f.Close()
	opts.Source = path
	return Load(f, opts)
}

// FromMap builds a layer from key to raw value text, e.g. overrides read
// from a config file. Keys are processed in sorted order.
func FromMap(values map[string]string, opts Options) (*types.Layer, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("load layer: name must not be empty")
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pol := opts.policy()
	defs := make([]types.Symbol, 0, len(keys))
	for _, k := range keys {
		sym, err := buildSymbol(pol, k, values[k], 0, modifiers{})
		if err != nil {
			return nil, parseError(opts, 0, k, err)
		}
		defs = append(defs, sym)
	}
	return types.NewLayer(opts.Name, opts.Tier, opts.Source, defs), nil
}

// FromAssignments builds a layer from KEY=VALUE assignments in the order
// given. A key assigned twice stays in the layer twice so resolution reports
// it as a duplicate.
func FromAssignments(assigns []string, opts Options) (*types.Layer, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("load layer: name must not be empty")
	}
	pol := opts.policy()
	defs := make([]types.Symbol, 0, len(assigns))
	for _, a := range assigns {
		k, v, err := ParseAssignment(a)
		if err != nil {
			return nil, parseError(opts, 0, "", err)
		}
		sym, err := buildSymbol(pol, k, v, 0, modifiers{})
		if err != nil {
			return nil, parseError(opts, 0, k, err)
		}
		defs = append(defs, sym)
	}
	return types.NewLayer(opts.Name, opts.Tier, opts.Source, defs), nil
}

// Stack fixes the precedence order of layers, lowest priority first.
func Stack(layers ...*types.Layer) (*types.LayerStack, error) {
	return types.NewLayerStack(layers...)
}

// detectFormat picks YAML for .yaml/.yml sources or content whose first
// significant line opens a symbols list; everything else is text.
func detectFormat(source string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || bytes.HasPrefix(trimmed, []byte("# ")) || bytes.Equal(trimmed, []byte("#")) {
			continue
		}
		if bytes.HasPrefix(trimmed, []byte("symbols:")) || bytes.Equal(trimmed, []byte("---")) {
			return FormatYAML
		}
		return FormatText
	}
	return FormatText
}

// modifiers are the per-definition policy markers.
type modifiers struct {
	fixed  bool
	shared bool
}

// buildSymbol classifies key and parses raw into a symbol definition.
func buildSymbol(pol *policy.Policy, key, raw string, line int, mods modifiers) (types.Symbol, error) {
	k, err := pol.Classify(key)
	if err != nil {
		return types.Symbol{}, err
	}
	val, ref, err := ParseValue(raw, pol)
	if err != nil {
		return types.Symbol{}, err
	}
	return types.Symbol{
		Name:     k.Name,
		Kind:     k.Kind,
		Value:    val,
		Ref:      ref,
		Instance: k.Instance,
		Line:     line,
		Fixed:    mods.fixed || k.Fixed,
		Shared:   mods.shared,
	}, nil
}

func parseError(opts Options, line int, symbol string, err error) *types.Diagnostic {
	return &types.Diagnostic{
		Kind:    types.ParseError,
		Symbol:  symbol,
		Layers:  []string{opts.Name},
		Message: err.Error(),
		Source:  opts.Source,
		Line:    line,
	}
}
