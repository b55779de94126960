package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/boardcfg/internal/pipeline"
	"github.com/mesh-intelligence/boardcfg/internal/resolve"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// definition is the JSON form of one declaration of an explained symbol.
type definition struct {
	Layer  string `json:"layer"`
	Tier   string `json:"tier"`
	Source string `json:"source,omitempty"`
	Line   int    `json:"line,omitempty"`
	Value  string `json:"value"`
	Fixed  bool   `json:"fixed,omitempty"`
	Shared bool   `json:"shared,omitempty"`
	Winner bool   `json:"winner,omitempty"`
}

// explanation is the JSON form of explain output.
type explanation struct {
	Board       string             `json:"board"`
	Symbol      string             `json:"symbol"`
	Kind        string             `json:"kind,omitempty"`
	Instance    string             `json:"instance,omitempty"`
	Value       string             `json:"value,omitempty"`
	Chain       []string           `json:"chain,omitempty"`
	Definitions []definition       `json:"definitions"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
}

func newExplainCmd(a *app) *cobra.Command {
	var f targetFlags
	cmd := &cobra.Command{
		Use:   "explain KEY",
		Short: "Show every layer that declares a symbol and which one wins",
		Example: "  boardcfg explain HW_I2C0_SCL --board STRIPALERTS\n" +
			"  boardcfg explain MICROPY_HW_BOARD_NAME -b STRIPALERTS --json",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExplain(cmd, &f, args[0])
		},
	}
	f.register(cmd, false)
	return cmd
}

func (a *app) runExplain(cmd *cobra.Command, f *targetFlags, key string) error {
	targets, err := a.targets(f)
	if err != nil {
		return err
	}
	reg, err := a.registry(f)
	if err != nil {
		return err
	}
	t := targets[0]
	pl, err := a.plan(f, reg, t)
	if err != nil {
		return err
	}
	name := pl.policy.Normalize(strings.ToUpper(key))

	p := pipeline.New(pipeline.Config{Board: t.name, Chip: pl.chip, Policy: pl.policy, Logger: a.logger})
	if err := p.Load(pl.sources...); err != nil {
		if p.Report().Failed() {
			printReport(cmd.ErrOrStderr(), t.name, p.Report())
			return errReported
		}
		return userError(err)
	}

	ex := explanation{Board: t.name, Symbol: name, Definitions: []definition{}}
	var defs []types.Symbol
	for _, l := range p.Stack().Layers() {
		for _, d := range l.Definitions() {
			if d.Name == name {
				defs = append(defs, d)
			}
		}
	}
	if len(defs) == 0 {
		return userError(fmt.Errorf("%s is not declared by any layer of %s", name, t.name))
	}
	ex.Kind = defs[0].Kind.String()
	ex.Instance = defs[0].Instance

	// A resolution failure still leaves the declarations worth showing.
	var winner types.Symbol
	var resolved bool
	if err := p.Resolve(); err == nil {
		winner, resolved = p.Table().Get(name)
		if resolved {
			ex.Value = winner.Canonical()
			if winner.Ref != "" {
				ex.Chain = resolve.Chain(p.Table(), name)
			}
			if winner.Value == nil {
				ex.Value = "<unresolved>"
			}
		}
	} else {
		ex.Diagnostics = p.Report().Diagnostics
	}

	for _, d := range defs {
		ex.Definitions = append(ex.Definitions, definition{
			Layer:  d.Layer,
			Tier:   d.Tier.String(),
			Source: d.Source,
			Line:   d.Line,
			Value:  d.Canonical(),
			Fixed:  d.Fixed,
			Shared: d.Shared,
			Winner: resolved && d.Layer == winner.Layer && d.Line == winner.Line,
		})
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		return writeJSON(out, ex)
	}

	if ex.Instance != "" {
		fmt.Fprintf(out, "%s (%s, %s)\n", ex.Symbol, ex.Kind, ex.Instance)
	} else {
		fmt.Fprintf(out, "%s (%s)\n", ex.Symbol, ex.Kind)
	}
	for _, d := range ex.Definitions {
		mark := " "
		if d.Winner {
			mark = "*"
		}
		loc := d.Source
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", d.Source, d.Line)
		}
		var mods []string
		if d.Fixed {
			mods = append(mods, "fixed")
		}
		if d.Shared {
			mods = append(mods, "shared")
		}
		fmt.Fprintf(out, "%s %-10s %-8s %s  %s", mark, d.Layer, d.Tier, d.Value, loc)
		if len(mods) > 0 {
			fmt.Fprintf(out, "  [%s]", strings.Join(mods, " "))
		}
		fmt.Fprintln(out)
	}
	if len(ex.Chain) > 0 {
		fmt.Fprintf(out, "chain: %s\n", strings.Join(ex.Chain, " -> "))
	}
	if ex.Value != "" {
		fmt.Fprintf(out, "value: %s\n", ex.Value)
	}
	for _, d := range ex.Diagnostics {
		fmt.Fprintf(out, "unresolved: %s\n", d.Error())
	}
	return nil
}
