package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// writeJSON prints v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal output: %w", err))
	}
	out = append(out, '\n')
	if _, err := w.Write(out); err != nil {
		return sysError(err)
	}
	return nil
}

// printReport lists a board's failures and warnings, one per line.
func printReport(w io.Writer, board string, r *types.Report) {
	if r == nil {
		return
	}
	for i := range r.Diagnostics {
		fmt.Fprintf(w, "%s: error: %s\n", board, r.Diagnostics[i].Error())
	}
	for i := range r.Warnings {
		fmt.Fprintf(w, "%s: warning: %s\n", board, r.Warnings[i].Message)
	}
}

// shortDigest abbreviates a hex digest for text output.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
