package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/boardcfg/internal/emit"
	"github.com/mesh-intelligence/boardcfg/internal/history"
	"github.com/mesh-intelligence/boardcfg/internal/paths"
	"github.com/mesh-intelligence/boardcfg/internal/pipeline"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// stdoutDir selects standard output instead of an output directory.
const stdoutDir = "-"

// buildFlags configure artifact emission.
type buildFlags struct {
	targetFlags
	format       string
	outputDir    string
	headerPrefix string
	goPackage    string
	noHistory    bool
}

// boardResult is the JSON form of one board's run.
type boardResult struct {
	Board       string             `json:"board"`
	Chip        string             `json:"chip"`
	Run         string             `json:"run"`
	State       string             `json:"state"`
	Layers      []string           `json:"layers"`
	Symbols     int                `json:"symbols,omitempty"`
	Artifact    string             `json:"artifact,omitempty"`
	Format      string             `json:"format,omitempty"`
	Digest      string             `json:"digest,omitempty"`
	Diagnostics []types.Diagnostic `json:"diagnostics"`
	Warnings    []types.Diagnostic `json:"warnings,omitempty"`
	Error       string             `json:"error,omitempty"`
}

func newBuildCmd(a *app) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve, validate and emit a board configuration",
		Long: "Build stacks the chip, port, board and override layers for the\n" +
			"selected boards, validates the merged configuration and writes one\n" +
			"artifact per board to <output-dir>/<BOARD>/. A board that fails\n" +
			"validation produces no artifact.",
		Example: "  boardcfg build --board STRIPALERTS\n" +
			"  boardcfg build --all --format json\n" +
			"  boardcfg build -b STRIPALERTS -D HW_I2C0_SCL=10 -o -",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBuild(cmd, &f)
		},
	}
	f.register(cmd, true)
	fl := cmd.Flags()
	fl.StringVarP(&f.format, "format", "f", "", "artifact format: header, go, json or cbor (default from config)")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "output directory, or - for standard output")
	fl.StringVar(&f.headerPrefix, "header-prefix", "", "prefix for header macro names, e.g. MICROPY_")
	fl.StringVar(&f.goPackage, "go-package", "", "package name of Go output")
	fl.BoolVar(&f.noHistory, "no-history", false, "do not record the run in the build ledger")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var f targetFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Resolve and validate a board configuration without emitting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd, &f)
		},
	}
	f.register(cmd, true)
	return cmd
}

// emitter builds the artifact emitter from flags, then config.yaml.
func (a *app) emitter(f *buildFlags) (*emit.Emitter, error) {
	format := f.format
	if format == "" {
		format = a.cfg.GetString(cfgKeyFormat)
	}
	ff, err := emit.ParseFormat(format)
	if err != nil {
		return nil, userError(err)
	}
	opts := emit.Options{
		Format:       ff,
		HeaderPrefix: firstNonEmpty(f.headerPrefix, a.cfg.GetString(cfgKeyHeaderPrefix)),
		GoPackage:    firstNonEmpty(f.goPackage, a.cfg.GetString(cfgKeyGoPackage)),
	}
	e, err := emit.New(opts)
	if err != nil {
		return nil, userError(err)
	}
	return e, nil
}

// recorder opens the build ledger unless history is disabled. The
// returned close function is never nil.
func (a *app) recorder(disabled bool) (pipeline.Recorder, func(), error) {
	if disabled || !a.cfg.GetBool(cfgKeyHistory) {
		return nil, func() {}, nil
	}
	dir, err := a.dataDir()
	if err != nil {
		return nil, nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	store, err := history.Open(dir)
	if err != nil {
		return nil, nil, sysError(fmt.Errorf("open build ledger: %w", err))
	}
	return store, func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("closing build ledger", "err", err)
		}
	}, nil
}

func (a *app) runBuild(cmd *cobra.Command, f *buildFlags) error {
	targets, err := a.targets(&f.targetFlags)
	if err != nil {
		return err
	}
	reg, err := a.registry(&f.targetFlags)
	if err != nil {
		return err
	}
	e, err := a.emitter(f)
	if err != nil {
		return err
	}

	outDir := f.outputDir
	if outDir == "" {
		outDir = paths.ProjectPath(a.configDir, a.cfg.GetString(cfgKeyOutputDir))
	}
	toStdout := outDir == stdoutDir
	if toStdout && (len(targets) > 1 || a.flags.jsonMode) {
		return userError(errors.New("--output-dir - needs a single board and text output"))
	}

	rec, closeRec, err := a.recorder(f.noHistory)
	if err != nil {
		return err
	}
	defer closeRec()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var results []boardResult
	failed := false
	for _, t := range targets {
		pl, err := a.plan(&f.targetFlags, reg, t)
		if err != nil {
			return err
		}
		p := pipeline.New(pipeline.Config{
			Board:    t.name,
			Chip:     pl.chip,
			Policy:   pl.policy,
			Emitter:  e,
			Logger:   a.logger,
			Recorder: rec,
		})
		art, runErr := p.Run(pl.sources...)
		res := newBoardResult(p, t.name, pl.chip.Name)

		if runErr == nil {
			switch {
			case toStdout:
				if _, err := out.Write(art.Data); err != nil {
					return sysError(err)
				}
			default:
				path := filepath.Join(outDir, t.name, e.Format().FileName())
				if err := emit.WriteFile(path, art); err != nil {
					return sysError(err)
				}
				res.Artifact = path
			}
		} else {
			failed = true
			if !p.Report().Failed() {
				res.Error = runErr.Error()
			}
			if !toStdout {
				// A failed board keeps no artifact from an earlier run.
				stale := filepath.Join(outDir, t.name, e.Format().FileName())
				if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return sysError(fmt.Errorf("remove stale artifact: %w", err))
				}
			}
		}
		results = append(results, res)

		if a.flags.jsonMode {
			continue
		}
		printReport(errOut, t.name, p.Report())
		switch {
		case res.Error != "":
			fmt.Fprintf(errOut, "%s: error: %s\n", t.name, res.Error)
		case runErr != nil:
			fmt.Fprintf(errOut, "%s: FAILED with %d error(s)\n", t.name, len(res.Diagnostics))
		case !toStdout:
			fmt.Fprintf(out, "%s: %s, %d symbols -> %s (sha256 %s)\n",
				t.name, res.Chip, res.Symbols, res.Artifact, shortDigest(res.Digest))
		}
	}

	if a.flags.jsonMode {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	}
	if failed {
		return errReported
	}
	return nil
}

func (a *app) runCheck(cmd *cobra.Command, f *targetFlags) error {
	targets, err := a.targets(f)
	if err != nil {
		return err
	}
	reg, err := a.registry(f)
	if err != nil {
		return err
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var results []boardResult
	failed := false
	for _, t := range targets {
		pl, err := a.plan(f, reg, t)
		if err != nil {
			return err
		}
		p := pipeline.New(pipeline.Config{
			Board:  t.name,
			Chip:   pl.chip,
			Policy: pl.policy,
			Logger: a.logger,
		})
		checkErr := p.Check(pl.sources...)
		res := newBoardResult(p, t.name, pl.chip.Name)
		if checkErr != nil {
			failed = true
			if !p.Report().Failed() {
				res.Error = checkErr.Error()
			}
		}
		results = append(results, res)

		if a.flags.jsonMode {
			continue
		}
		printReport(errOut, t.name, p.Report())
		switch {
		case res.Error != "":
			fmt.Fprintf(errOut, "%s: error: %s\n", t.name, res.Error)
		case checkErr != nil:
			fmt.Fprintf(errOut, "%s: FAILED with %d error(s)\n", t.name, len(res.Diagnostics))
		default:
			fmt.Fprintf(out, "%s: ok, %s, %d symbols, %d warning(s)\n",
				t.name, res.Chip, res.Symbols, len(res.Warnings))
		}
	}

	if a.flags.jsonMode {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	}
	if failed {
		return errReported
	}
	return nil
}

func newBoardResult(p *pipeline.Pipeline, board, chipName string) boardResult {
	r := p.Report()
	res := boardResult{
		Board:       board,
		Chip:        chipName,
		Run:         p.ID(),
		State:       p.State().String(),
		Diagnostics: r.Diagnostics,
		Warnings:    r.Warnings,
	}
	if res.Diagnostics == nil {
		res.Diagnostics = []types.Diagnostic{}
	}
	if s := p.Stack(); s != nil {
		res.Layers = s.Names()
	}
	if t := p.Table(); t != nil {
		res.Symbols = t.Len()
	}
	if art := p.Artifact(); art != nil {
		res.Format = string(art.Format)
		res.Digest = art.Digest
	}
	return res
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
