package types

import (
	"bytes"
	"fmt"
	"sort"
)

// SymbolTable maps each symbol name to exactly one resolved Symbol. It is
// immutable and ordered by name so every traversal is deterministic.
type SymbolTable struct {
	symbols []Symbol
	index   map[string]int
	history map[string][]Symbol
}

// NewSymbolTable builds a table from resolved symbols. history holds, per
// name, every definition from the layer stack lowest precedence first; it
// may be nil. NewSymbolTable panics on duplicate names since the resolver
// guarantees uniqueness.
func NewSymbolTable(symbols []Symbol, history map[string][]Symbol) *SymbolTable {
	sorted := make([]Symbol, len(symbols))
	copy(sorted, symbols)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	index := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if _, dup := index[s.Name]; dup {
			panic(fmt.Sprintf("types: duplicate symbol %q in resolved table", s.Name))
		}
		index[s.Name] = i
	}

	hist := make(map[string][]Symbol, len(history))
	for name, defs := range history {
		cp := make([]Symbol, len(defs))
		copy(cp, defs)
		hist[name] = cp
	}

	return &SymbolTable{symbols: sorted, index: index, history: hist}
}

// Get returns the symbol with the given name.
func (t *SymbolTable) Get(name string) (Symbol, bool) {
	i, ok := t.index[name]
	if !ok {
		return Symbol{}, false
	}
	return t.symbols[i], true
}

// Has reports whether name is defined.
func (t *SymbolTable) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int { return len(t.symbols) }

// Symbols returns a copy of all symbols ordered by name.
func (t *SymbolTable) Symbols() []Symbol {
	cp := make([]Symbol, len(t.symbols))
	copy(cp, t.symbols)
	return cp
}

// Names returns all symbol names in order.
func (t *SymbolTable) Names() []string {
	names := make([]string, len(t.symbols))
	for i, s := range t.symbols {
		names[i] = s.Name
	}
	return names
}

// Provenance returns every definition of name across the stack, lowest
// precedence first. The winning definition is the last one unless a lower
// layer fixed the symbol and higher layers restated the same value.
func (t *SymbolTable) Provenance(name string) []Symbol {
	defs := t.history[name]
	cp := make([]Symbol, len(defs))
	copy(cp, defs)
	return cp
}

// PinBindings returns the bindings of all PIN_REF symbols with integer values.
func (t *SymbolTable) PinBindings() []PinBinding {
	var out []PinBinding
	for _, s := range t.symbols {
		if b, ok := s.PinBinding(); ok {
			out = append(out, b)
		}
	}
	return out
}

// FeatureFlags returns every valid feature flag, enabled or not.
func (t *SymbolTable) FeatureFlags() []FeatureFlag {
	var out []FeatureFlag
	for _, s := range t.symbols {
		if f, ok := s.FeatureFlag(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Dump renders the table one symbol per line:
//
//	NAME KIND VALUE LAYER [fixed] [shared]
//
// The output is byte-identical for identical tables.
func (t *SymbolTable) Dump() []byte {
	var buf bytes.Buffer
	for _, s := range t.symbols {
		fmt.Fprintf(&buf, "%s %s %s %s", s.Name, s.Kind, s.Canonical(), s.Layer)
		if s.Ref != "" {
			fmt.Fprintf(&buf, " ref=%s", s.Ref)
		}
		if s.Fixed {
			buf.WriteString(" fixed")
		}
		if s.Shared {
			buf.WriteString(" shared")
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
