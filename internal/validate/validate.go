// Package validate checks a resolved symbol table against hardware
// constraints. Checks run in a fixed order (exclusivity, dependency, type)
// and every failure is accumulated into one report.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/boardcfg/internal/chip"
	"github.com/mesh-intelligence/boardcfg/internal/policy"
	"github.com/mesh-intelligence/boardcfg/internal/resolve"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Validator checks tables for one chip under one key policy.
type Validator struct {
	chip   *chip.Descriptor
	policy *policy.Policy
}

// New returns a validator for the given chip. The chip's feature
// dependency sets are merged into pol. A nil pol selects policy.Default();
// a nil chip disables pin range and instance catalog checks.
func New(c *chip.Descriptor, pol *policy.Policy) *Validator {
	if pol == nil {
		pol = policy.Default()
	}
	if c != nil && len(c.Features) > 0 {
		pol = pol.WithFeatures(c.Features)
	}
	return &Validator{chip: c, policy: pol}
}

// Validate runs all checks on table and returns the report. The report has
// failed when it holds any diagnostic.
func (v *Validator) Validate(table *types.SymbolTable) *types.Report {
	report := &types.Report{}
	v.checkExclusivity(table, report)
	reported := v.checkDependencies(table, report)
	v.checkTypes(table, report, reported)
	return report
}

// checkExclusivity reports each pin claimed by two or more bindings unless
// every binding on it is shared.
func (v *Validator) checkExclusivity(table *types.SymbolTable, report *types.Report) {
	byPin := make(map[int][]types.PinBinding)
	for _, b := range table.PinBindings() {
		byPin[b.Pin] = append(byPin[b.Pin], b)
	}

	pins := make([]int, 0, len(byPin))
	for pin, bindings := range byPin {
		if len(bindings) > 1 {
			pins = append(pins, pin)
		}
	}
	sort.Ints(pins)

	for _, pin := range pins {
		bindings := byPin[pin]
		allShared := true
		roles := make([]string, 0, len(bindings))
		var exclusive []string
		for _, b := range bindings {
			roles = append(roles, b.Role)
			if !b.Shared {
				allShared = false
				exclusive = append(exclusive, b.Role)
			}
		}
		if allShared {
			continue
		}
		sort.Strings(roles)

		msg := fmt.Sprintf("pin %d is claimed by %s", pin, strings.Join(roles, ", "))
		if len(exclusive) < len(roles) {
			sort.Strings(exclusive)
			msg += fmt.Sprintf("; not shareable: %s", strings.Join(exclusive, ", "))
		}
		first, _ := table.Get(roles[0])
		report.Add(types.Diagnostic{
			Kind:    types.PinConflict,
			Symbol:  roles[0],
			Layers:  bindingLayers(bindings),
			Message: msg,
			Source:  first.Source,
			Line:    first.Line,
		})
	}
}

func bindingLayers(bindings []types.PinBinding) []string {
	seen := make(map[string]bool)
	var layers []string
	for _, b := range bindings {
		if !seen[b.Layer] {
			seen[b.Layer] = true
			layers = append(layers, b.Layer)
		}
	}
	sort.Strings(layers)
	return layers
}

// checkDependencies verifies every enabled feature's dependency set. It
// returns the symbols it already reported so the type check skips them. A
// dependency needed by several features is reported once, naming each of
// them.
func (v *Validator) checkDependencies(table *types.SymbolTable, report *types.Report) map[string]bool {
	reported := make(map[string]int)
	for _, flag := range table.FeatureFlags() {
		if !flag.Enabled {
			continue
		}
		deps, ok := v.policy.Dependencies(flag.Feature)
		if !ok {
			report.Warn(types.Diagnostic{
				Kind:    types.MissingDependency,
				Symbol:  flag.Name,
				Layers:  []string{flag.Layer},
				Message: fmt.Sprintf("feature %s has no declared dependency set", flag.Feature),
			})
			continue
		}
		for _, dep := range deps {
			if i, done := reported[dep]; done {
				d := &report.Diagnostics[i]
				d.Message = fmt.Sprintf("%s; also required by %s", d.Message, flag.Name)
				if !containsLayer(d.Layers, flag.Layer) {
					d.Layers = append(d.Layers, flag.Layer)
				}
				continue
			}
			sym, ok := table.Get(dep)
			if !ok {
				reported[dep] = len(report.Diagnostics)
				report.Add(types.Diagnostic{
					Kind:    types.MissingDependency,
					Symbol:  dep,
					Layers:  []string{flag.Layer},
					Message: fmt.Sprintf("%s is enabled but requires %s, which no layer defines", flag.Name, dep),
				})
				continue
			}
			if d := v.checkValue(table, sym); d != nil {
				d.Message = fmt.Sprintf("required by %s: %s", flag.Name, d.Message)
				if !containsLayer(d.Layers, flag.Layer) {
					d.Layers = append(d.Layers, flag.Layer)
				}
				reported[dep] = len(report.Diagnostics)
				report.Add(*d)
			}
		}
	}
	done := make(map[string]bool, len(reported))
	for dep := range reported {
		done[dep] = true
	}
	return done
}

func containsLayer(layers []string, name string) bool {
	for _, l := range layers {
		if l == name {
			return true
		}
	}
	return false
}

// checkTypes verifies every symbol's value against its kind.
func (v *Validator) checkTypes(table *types.SymbolTable, report *types.Report, reported map[string]bool) {
	for _, sym := range table.Symbols() {
		if reported[sym.Name] {
			continue
		}
		if d := v.checkValue(table, sym); d != nil {
			report.Add(*d)
		}
	}
}

// checkValue returns the diagnostic for an invalid symbol value, or nil.
func (v *Validator) checkValue(table *types.SymbolTable, sym types.Symbol) *types.Diagnostic {
	fail := func(kind types.ErrorKind, format string, args ...any) *types.Diagnostic {
		return &types.Diagnostic{
			Kind:    kind,
			Symbol:  sym.Name,
			Layers:  []string{sym.Layer},
			Message: fmt.Sprintf(format, args...),
			Source:  sym.Source,
			Line:    sym.Line,
		}
	}

	if sym.Value == nil {
		if sym.Ref == "" {
			return fail(types.TypeMismatch, "%s has no value", sym.Name)
		}
		chain := resolve.Chain(table, sym.Name)
		last := chain[len(chain)-1]
		if table.Has(last) {
			return fail(types.MissingDependency, "reference cycle %s", strings.Join(chain, " -> "))
		}
		return fail(types.MissingDependency, "%s references %s, which no layer defines", sym.Name, last)
	}

	switch sym.Kind {
	case types.KindString:
		if _, ok := sym.Text(); !ok {
			return fail(types.TypeMismatch, "%s must be a STRING, got %s", sym.Name, sym.Canonical())
		}
	case types.KindInteger:
		if _, ok := sym.Int(); !ok {
			return fail(types.TypeMismatch, "%s must be an INTEGER, got %s", sym.Name, sym.Canonical())
		}
	case types.KindBoolean:
		if _, ok := sym.Bool(); !ok {
			return fail(types.TypeMismatch, "%s must be a BOOLEAN (true, false, 0 or 1), got %s", sym.Name, sym.Canonical())
		}
	case types.KindPinRef:
		pin, ok := sym.Int()
		if !ok {
			return fail(types.TypeMismatch, "%s must be a pin number, got %s", sym.Name, sym.Canonical())
		}
		if v.chip == nil {
			return nil
		}
		if !v.chip.InRange(pin) {
			return fail(types.OutOfRangeValue, "pin %d is outside the %s range %d-%d",
				pin, v.chip.Name, v.chip.PinMin, v.chip.PinMax)
		}
		if sym.Instance != "" && !v.chip.HasInstance(sym.Instance) {
			return fail(types.OutOfRangeValue, "peripheral instance %s is not present on %s", sym.Instance, v.chip.Name)
		}
	default:
		return fail(types.TypeMismatch, "%s has unknown kind %s", sym.Name, sym.Kind)
	}
	return nil
}
