// Package resolve merges a layer stack into one symbol table. For every
// name the definition of the highest-precedence layer wins unless a lower
// layer fixed the symbol, in which case only an identical redefinition is
// accepted. A fixed reference also pins the value it resolves to: a later
// layer that changes any key along the chain is a conflict.
package resolve

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Resolve merges stack into a SymbolTable. Resolution failures are
// accumulated across the whole stack and returned together as a
// *types.Report. References to keys no layer defines, and reference cycles,
// leave the symbol's value nil for the validator to report.
func Resolve(stack *types.LayerStack) (*types.SymbolTable, error) {
	if stack == nil || stack.Len() == 0 {
		return nil, types.ErrEmptyStack
	}

	report := &types.Report{}
	winners := make(map[string]types.Symbol)
	history := make(map[string][]types.Symbol)
	pinned := make(map[string]pin)

	for _, l := range stack.Layers() {
		for _, def := range uniqueDefinitions(l, report) {
			history[def.Name] = append(history[def.Name], def)

			prev, defined := winners[def.Name]
			if !defined || !prev.Fixed {
				winners[def.Name] = def
				continue
			}
			if prev.Canonical() != def.Canonical() {
				report.Add(types.Diagnostic{
					Kind:   types.OverrideConflict,
					Symbol: def.Name,
					Layers: []string{prev.Layer, def.Layer},
					Message: fmt.Sprintf("%s is fixed to %s by layer %s; layer %s sets %s",
						def.Name, prev.Canonical(), prev.Layer, def.Layer, def.Canonical()),
					Source: def.Source,
					Line:   def.Line,
				})
			}
		}
		checkPins(l, winners, pinned, report)
	}

	if report.Failed() {
		return nil, report
	}

	names := make([]string, 0, len(winners))
	for name := range winners {
		names = append(names, name)
	}
	sort.Strings(names)

	symbols := make([]types.Symbol, 0, len(names))
	for _, name := range names {
		sym := winners[name]
		if sym.Ref != "" {
			sym.Value = follow(winners, sym)
		}
		symbols = append(symbols, sym)
	}
	return types.NewSymbolTable(symbols, history), nil
}

// pin is the value a fixed reference resolved to when it was first
// resolvable.
type pin struct {
	layer string
	value string
}

// checkPins runs after layer l is merged. Fixed references that resolve for
// the first time are pinned; pinned ones whose chain now ends elsewhere are
// reported against l and unpinned.
func checkPins(l *types.Layer, winners map[string]types.Symbol, pinned map[string]pin, report *types.Report) {
	names := make([]string, 0, len(winners))
	for name, sym := range winners {
		if sym.Fixed && sym.Ref != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sym := winners[name]
		end, ok := terminal(winners, sym)
		p, isPinned := pinned[name]
		if !isPinned {
			if ok {
				pinned[name] = pin{layer: sym.Layer, value: end.Canonical()}
			}
			continue
		}
		now := "an unresolved value"
		if ok {
			now = end.Canonical()
			if now == p.value {
				continue
			}
		}
		d := types.Diagnostic{
			Kind:   types.OverrideConflict,
			Symbol: name,
			Layers: []string{p.layer, l.Name()},
			Message: fmt.Sprintf("%s is fixed to %s through %s by layer %s; layer %s changes it to %s",
				name, p.value, sym.Ref, p.layer, l.Name(), now),
		}
		if changed, found := chainDefinition(winners, sym, l.Name()); found {
			d.Source, d.Line = changed.Source, changed.Line
		}
		report.Add(d)
		delete(pinned, name)
	}
}

// chainDefinition returns the first symbol along sym's chain that layer
// defines.
func chainDefinition(winners map[string]types.Symbol, sym types.Symbol, layer string) (types.Symbol, bool) {
	visited := map[string]bool{sym.Name: true}
	cur := sym
	for cur.Ref != "" && !visited[cur.Ref] {
		next, ok := winners[cur.Ref]
		if !ok {
			break
		}
		if next.Layer == layer {
			return next, true
		}
		visited[cur.Ref] = true
		cur = next
	}
	return types.Symbol{}, false
}

// uniqueDefinitions returns the layer's definitions in declaration order
// with repeated names dropped. Each repeat is recorded as DuplicateSymbol.
func uniqueDefinitions(l *types.Layer, report *types.Report) []types.Symbol {
	defs := l.Definitions()
	first := make(map[string]types.Symbol, len(defs))
	out := make([]types.Symbol, 0, len(defs))
	for _, def := range defs {
		if prev, dup := first[def.Name]; dup {
			report.Add(types.Diagnostic{
				Kind:    types.DuplicateSymbol,
				Symbol:  def.Name,
				Layers:  []string{l.Name()},
				Message: fmt.Sprintf("%s is defined more than once in layer %s (%s)", def.Name, l.Name(), lines(prev, def)),
				Source:  def.Source,
				Line:    def.Line,
			})
			continue
		}
		first[def.Name] = def
		out = append(out, def)
	}
	return out
}

func lines(a, b types.Symbol) string {
	if a.Line > 0 && b.Line > 0 {
		return fmt.Sprintf("lines %d and %d", a.Line, b.Line)
	}
	return "same layer"
}

// follow walks the reference chain starting at sym through the merged
// table and returns the literal value it ends at, or nil when the chain
// reaches an undefined key or loops.
func follow(winners map[string]types.Symbol, sym types.Symbol) any {
	end, ok := terminal(winners, sym)
	if !ok {
		return nil
	}
	return end.Value
}

// terminal returns the literal symbol sym's chain ends at.
func terminal(winners map[string]types.Symbol, sym types.Symbol) (types.Symbol, bool) {
	visited := map[string]bool{sym.Name: true}
	cur := sym
	for cur.Ref != "" {
		if visited[cur.Ref] {
			return types.Symbol{}, false
		}
		next, ok := winners[cur.Ref]
		if !ok {
			return types.Symbol{}, false
		}
		visited[cur.Ref] = true
		cur = next
	}
	return cur, true
}

// Chain returns the names a reference chain passes through, starting with
// name. The last element is the key holding the literal value, or the first
// key that is undefined or repeats.
func Chain(table *types.SymbolTable, name string) []string {
	chain := []string{name}
	visited := map[string]bool{name: true}
	cur, ok := table.Get(name)
	for ok && cur.Ref != "" {
		chain = append(chain, cur.Ref)
		if visited[cur.Ref] {
			break
		}
		visited[cur.Ref] = true
		cur, ok = table.Get(cur.Ref)
	}
	return chain
}
