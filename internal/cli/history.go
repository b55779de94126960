package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/boardcfg/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		filter history.Filter
		export bool
	)
	cmd := &cobra.Command{
		Use:   "history [RUN]",
		Short: "Show recorded builds",
		Long: "With no argument, list recorded builds, most recent first. With a run\n" +
			"id or unique id prefix, show that build and its diagnostics.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.dataDir()
			if err != nil {
				return sysError(fmt.Errorf("resolve data dir: %w", err))
			}
			store, err := history.Open(dir)
			if err != nil {
				return sysError(fmt.Errorf("open build ledger: %w", err))
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case export:
				if err := store.Export(out); err != nil {
					return sysError(err)
				}
				return nil
			case len(args) == 1:
				run, err := store.Get(args[0])
				if err != nil {
					return userError(err)
				}
				if a.flags.jsonMode {
					return writeJSON(out, run)
				}
				printRun(out, run)
				return nil
			}

			runs, err := store.List(filter)
			if err != nil {
				return sysError(err)
			}
			if a.flags.jsonMode {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(out, runs)
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %-16s %-8s %-9s %d error(s)\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Board, r.Chip, r.State, r.Failures)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.Board, "board", "b", "", "only runs of this board")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum runs to list, 0 for all")
	cmd.Flags().BoolVar(&export, "export", false, "write every run as JSON lines, oldest first")
	return cmd
}

func printRun(w io.Writer, r history.Run) {
	fmt.Fprintf(w, "run:      %s\n", r.ID)
	fmt.Fprintf(w, "board:    %s\n", r.Board)
	fmt.Fprintf(w, "chip:     %s\n", r.Chip)
	fmt.Fprintf(w, "state:    %s\n", r.State)
	fmt.Fprintf(w, "layers:   %v\n", r.Layers)
	fmt.Fprintf(w, "started:  %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Microsecond))
	if r.Digest != "" {
		fmt.Fprintf(w, "artifact: %s sha256 %s\n", r.Format, r.Digest)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "error:    %s\n", r.Error)
	}
	for i := range r.Diagnostics {
		fmt.Fprintf(w, "  error: %s\n", r.Diagnostics[i].Error())
	}
	for i := range r.Warned {
		fmt.Fprintf(w, "  warning: %s\n", r.Warned[i].Message)
	}
}
