package types

import (
	"fmt"
	"strings"
)

// ErrorKind is a stable identifier for a class of configuration failure.
// It implements error so diagnostics can be matched with errors.Is.
type ErrorKind string

func (k ErrorKind) Error() string { return string(k) }

// Failure taxonomy.
const (
	ParseError        ErrorKind = "ParseError"
	DuplicateSymbol   ErrorKind = "DuplicateSymbol"
	OverrideConflict  ErrorKind = "OverrideConflict"
	PinConflict       ErrorKind = "PinConflict"
	MissingDependency ErrorKind = "MissingDependency"
	OutOfRangeValue   ErrorKind = "OutOfRangeValue"
	TypeMismatch      ErrorKind = "TypeMismatch"
)

// Diagnostic describes one failure: its kind, the offending symbol, the
// layers involved and a human-readable message.
type Diagnostic struct {
	Kind    ErrorKind `json:"kind"`
	Symbol  string    `json:"symbol,omitempty"`
	Layers  []string  `json:"layers,omitempty"`
	Message string    `json:"message"`
	Source  string    `json:"source,omitempty"`
	Line    int       `json:"line,omitempty"`
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	sb.WriteString(string(d.Kind))
	if d.Source != "" {
		sb.WriteString(" ")
		sb.WriteString(d.Source)
		if d.Line > 0 {
			fmt.Fprintf(&sb, ":%d", d.Line)
		}
	}
	if d.Symbol != "" {
		sb.WriteString(" ")
		sb.WriteString(d.Symbol)
	}
	if len(d.Layers) > 0 {
		fmt.Fprintf(&sb, " [%s]", strings.Join(d.Layers, ", "))
	}
	sb.WriteString(": ")
	sb.WriteString(d.Message)
	return sb.String()
}

// Unwrap returns the diagnostic's kind.
func (d *Diagnostic) Unwrap() error { return d.Kind }

// Report accumulates the diagnostics of one or more stages. A report with
// any diagnostic has failed; warnings never fail a report.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
	Warnings    []Diagnostic `json:"warnings,omitempty"`
}

// Add records a failure.
func (r *Report) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// Addf records a failure with a formatted message.
func (r *Report) Addf(kind ErrorKind, symbol string, layers []string, format string, args ...any) {
	r.Add(Diagnostic{Kind: kind, Symbol: symbol, Layers: layers, Message: fmt.Sprintf(format, args...)})
}

// Warn records a non-fatal finding.
func (r *Report) Warn(d Diagnostic) {
	r.Warnings = append(r.Warnings, d)
}

// Merge appends other's diagnostics and warnings to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Failed reports whether any failure was recorded.
func (r *Report) Failed() bool {
	return r != nil && len(r.Diagnostics) > 0
}

// Count returns the number of failures of the given kind.
func (r *Report) Count(kind ErrorKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Err returns r as an error when it has failed, nil otherwise.
func (r *Report) Err() error {
	if !r.Failed() {
		return nil
	}
	return r
}

func (r *Report) Error() string {
	if len(r.Diagnostics) == 1 {
		return r.Diagnostics[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d configuration errors:", len(r.Diagnostics))
	for i := range r.Diagnostics {
		sb.WriteString("\n  ")
		sb.WriteString(r.Diagnostics[i].Error())
	}
	return sb.String()
}

// Unwrap exposes each diagnostic so errors.Is and errors.As see them.
func (r *Report) Unwrap() []error {
	errs := make([]error, len(r.Diagnostics))
	for i := range r.Diagnostics {
		errs[i] = &r.Diagnostics[i]
	}
	return errs
}
