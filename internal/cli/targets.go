package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/boardcfg/internal/chip"
	"github.com/mesh-intelligence/boardcfg/internal/layer"
	"github.com/mesh-intelligence/boardcfg/internal/paths"
	"github.com/mesh-intelligence/boardcfg/internal/pipeline"
	"github.com/mesh-intelligence/boardcfg/internal/policy"
	"github.com/mesh-intelligence/boardcfg/pkg/types"
)

// Board descriptor file names looked up in a board directory, in order.
const (
	boardHeaderFile = "mpconfigboard.h"
	boardYAMLFile   = "board.yaml"
)

var boardFiles = []string{boardHeaderFile, boardYAMLFile}

// targetFlags select the board and the layers stacked around it.
type targetFlags struct {
	board     string
	boardFile string
	all       bool
	chip      string
	chipFiles []string
	ports     []string
	overrides []string
	defines   []string
}

func (f *targetFlags) register(cmd *cobra.Command, allowAll bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.board, "board", "b", "", "board name under the boards directory")
	fl.StringVar(&f.boardFile, "board-file", "", "board descriptor file outside the boards directory")
	fl.StringVar(&f.chip, "chip", "", "chip name (default: config chip, else inferred from the board name)")
	fl.StringSliceVar(&f.chipFiles, "chip-file", nil, "additional chip descriptor YAML (repeatable)")
	fl.StringArrayVar(&f.ports, "port", nil, "port layer file, lowest precedence first (repeatable)")
	fl.StringArrayVar(&f.overrides, "override", nil, "override layer file (repeatable)")
	fl.StringArrayVarP(&f.defines, "define", "D", nil, "override a symbol, KEY=VALUE (repeatable)")
	if allowAll {
		fl.BoolVar(&f.all, "all", false, "select every board under the boards directory")
	}
}

// target is one board descriptor selected for a run.
type target struct {
	name string
	path string
}

// targets lists the boards selected by f.
func (a *app) targets(f *targetFlags) ([]target, error) {
	boardsDir := paths.ProjectPath(a.configDir, a.cfg.GetString(cfgKeyBoardsDir))
	switch {
	case f.boardFile != "":
		name := f.board
		if name == "" {
			name = boardNameFromPath(f.boardFile)
		}
		if _, err := os.Stat(f.boardFile); err != nil {
			return nil, userError(fmt.Errorf("%w: %s", types.ErrBoardNotFound, f.boardFile))
		}
		return []target{{name: name, path: f.boardFile}}, nil
	case f.all:
		return scanBoards(boardsDir)
	case f.board != "":
		t, err := findBoard(boardsDir, f.board)
		if err != nil {
			return nil, userError(err)
		}
		return []target{t}, nil
	default:
		return nil, userError(errors.New("select a board with --board, --board-file or --all"))
	}
}

// findBoard locates the descriptor of the board directory dir/name.
func findBoard(dir, name string) (target, error) {
	for _, file := range boardFiles {
		p := filepath.Join(dir, name, file)
		if _, err := os.Stat(p); err == nil {
			return target{name: name, path: p}, nil
		}
	}
	return target{}, fmt.Errorf("%w: %s in %s", types.ErrBoardNotFound, name, dir)
}

// scanBoards returns every board directory under dir that holds a
// descriptor, sorted by name.
func scanBoards(dir string) ([]target, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, userError(fmt.Errorf("%w: boards directory %s does not exist", types.ErrBoardNotFound, dir))
		}
		return nil, sysError(fmt.Errorf("read boards directory: %w", err))
	}
	var out []target
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if t, err := findBoard(dir, e.Name()); err == nil {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, userError(fmt.Errorf("%w: no boards in %s", types.ErrBoardNotFound, dir))
	}
	return out, nil
}

// boardNameFromPath derives a board name from a descriptor path: the
// directory name for the conventional file names, else the file stem.
func boardNameFromPath(p string) string {
	base := filepath.Base(p)
	for _, file := range boardFiles {
		if base == file {
			return filepath.Base(filepath.Dir(p))
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// registry returns the built-in chips plus the per-user descriptors and
// every descriptor named in config.yaml and on the command line. Later
// descriptors replace earlier ones of the same name.
func (a *app) registry(f *targetFlags) (*chip.Registry, error) {
	reg := chip.Builtin()
	files, err := paths.UserChipFiles()
	if err != nil {
		a.logger.Debug("skipping per-user chip descriptors", "err", err)
		files = nil
	}
	for _, p := range a.cfg.GetStringSlice(cfgKeyChipFiles) {
		files = append(files, paths.ProjectPath(a.configDir, p))
	}
	files = append(files, f.chipFiles...)
	for _, p := range files {
		if _, err := reg.LoadFile(p); err != nil {
			return nil, userError(err)
		}
	}
	return reg, nil
}

// plan is the assembled inputs for one board.
type plan struct {
	target  target
	chip    *chip.Descriptor
	policy  *policy.Policy
	sources []pipeline.Source
}

// plan selects the chip for t and lists the layer sources lowest
// precedence first: chip, ports, board, config overrides, override files,
// command-line assignments.
func (a *app) plan(f *targetFlags, reg *chip.Registry, t target) (plan, error) {
	chipName := f.chip
	if chipName == "" {
		chipName = a.cfg.GetString(cfgKeyChip)
	}
	if chipName == "" {
		chipName = chip.InferFromBoard(t.name)
	}
	d, err := reg.Lookup(chipName)
	if err != nil {
		return plan{}, userError(err)
	}

	pol := policy.Default()
	sources := []pipeline.Source{pipeline.ChipLayer(d, pol)}

	ports := make([]string, 0, len(f.ports))
	for _, p := range a.cfg.GetStringSlice(cfgKeyPorts) {
		ports = append(ports, paths.ProjectPath(a.configDir, p))
	}
	ports = append(ports, f.ports...)
	for _, p := range ports {
		sources = append(sources, pipeline.File(p, layer.Options{
			Name: layerName("port", p, len(ports)), Tier: types.TierPort, Policy: pol,
		}))
	}

	sources = append(sources, pipeline.File(t.path, layer.Options{
		Name: "board", Tier: types.TierBoard, Policy: pol,
	}))

	if cfgOverrides := a.cfg.GetStringMapString(cfgKeyOverrides); len(cfgOverrides) > 0 {
		sources = append(sources, a.configOverrides(cfgOverrides, pol))
	}
	for _, p := range f.overrides {
		sources = append(sources, pipeline.File(p, layer.Options{
			Name: layerName("override", p, 0), Tier: types.TierOverride, Policy: pol,
		}))
	}

	if len(f.defines) > 0 {
		for _, d := range f.defines {
			if _, _, err := layer.ParseAssignment(d); err != nil {
				return plan{}, userError(fmt.Errorf("--define: %w", err))
			}
		}
		sources = append(sources, pipeline.Defines("cli", f.defines, pol))
	}

	return plan{target: t, chip: d, policy: pol, sources: sources}, nil
}

// configOverrides builds the override layer declared in config.yaml. Viper
// lower-cases map keys, so they are upper-cased again here.
func (a *app) configOverrides(values map[string]string, pol *policy.Policy) pipeline.Source {
	upper := make(map[string]string, len(values))
	for k, v := range values {
		upper[strings.ToUpper(k)] = v
	}
	source := a.cfg.ConfigFileUsed()
	if source == "" {
		source = "environment"
	}
	return pipeline.Assignments("config", source, upper, pol)
}

// layerName names a file layer. A single port layer is just "port";
// otherwise the file stem distinguishes layers of one tier.
func layerName(tier, p string, count int) string {
	if count == 1 {
		return tier
	}
	base := filepath.Base(p)
	return tier + ":" + strings.TrimSuffix(base, filepath.Ext(base))
}
