package types

import "fmt"

// ResolvedConfig is a symbol table that passed validation, together with
// its report and the board and chip it was built for. It can only be
// created from a report without failures and is never mutated.
type ResolvedConfig struct {
	table  *SymbolTable
	report *Report
	board  string
	chip   string
}

// NewResolvedConfig seals a validated table. It returns ErrNotSealed when
// the table is missing or the report recorded any failure.
func NewResolvedConfig(table *SymbolTable, report *Report, board, chip string) (*ResolvedConfig, error) {
	if table == nil || report == nil {
		return nil, ErrNotSealed
	}
	if report.Failed() {
		return nil, fmt.Errorf("%w: %d failures", ErrNotSealed, len(report.Diagnostics))
	}
	return &ResolvedConfig{table: table, report: report, board: board, chip: chip}, nil
}

// Table returns the resolved symbol table.
func (c *ResolvedConfig) Table() *SymbolTable { return c.table }

// Report returns the validation report; it carries warnings only.
func (c *ResolvedConfig) Report() *Report { return c.report }

// Board returns the board name the configuration was built for.
func (c *ResolvedConfig) Board() string { return c.board }

// Chip returns the chip name the configuration was built for.
func (c *ResolvedConfig) Chip() string { return c.chip }
