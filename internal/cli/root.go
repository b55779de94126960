// Package cli implements the boardcfg command-line interface: the build
// driver that selects a board, assembles its layer stack and runs the
// resolution pipeline.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/boardcfg/internal/paths"
	"github.com/mesh-intelligence/boardcfg/pkg/boardcfg"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1 // configuration failure or bad invocation
	exitSysError  = 2 // I/O or store failure
)

// exitError carries a process exit code out of a command. A nil err means
// the failure was already reported to the user.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// errReported marks a configuration failure whose diagnostics were printed.
var errReported = &exitError{code: exitUserError}

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags     rootFlags
	configDir string
	cfg       *viper.Viper
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "boardcfg" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "boardcfg",
		Short: "Resolve layered board descriptors into build-time hardware configuration",
		Long: "boardcfg merges chip, port, board and override layers into one\n" +
			"validated set of compile-time constants for firmware driver code.",
		Version: boardcfg.Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $(CWD)/.boardcfg)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory for the build ledger")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.flags.verbose, "verbose", "v", false, "log pipeline stages")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newBuildCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newExplainCmd(a))
	root.AddCommand(newChipsCmd(a))
	root.AddCommand(newHistoryCmd(a))

	return root
}

// setup resolves the config directory, reads config.yaml and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = dir

	cfg, err := loadConfig(dir)
	if err != nil {
		return userError(err)
	}
	a.cfg = cfg
	a.logger.Debug("configuration loaded", "config_dir", dir, "file", cfg.ConfigFileUsed())
	return nil
}

// dataDir resolves the ledger directory: --data-dir > config.yaml data_dir
// > BOARDCFG_DATA_DIR > platform default.
func (a *app) dataDir() (string, error) {
	return paths.ResolveDataDir(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir), a.configDir)
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

// run executes root with args and maps its error to an exit code.
func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitUserError
}
