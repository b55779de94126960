package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/boardcfg/internal/history"
	"github.com/mesh-intelligence/boardcfg/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a boardcfg project",
		Long: "Create the configuration directory with a default config.yaml, the\n" +
			"boards directory and the build ledger. Existing files are kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	configPath := filepath.Join(a.configDir, configFileExt)
	created, err := writeConfigIfMissing(configPath, defaultConfigFile())
	if err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}
	if created {
		// Pick up the file just written so boards_dir and data_dir agree.
		if a.cfg, err = loadConfig(a.configDir); err != nil {
			return userError(err)
		}
	}

	boardsDir := paths.ProjectPath(a.configDir, a.cfg.GetString(cfgKeyBoardsDir))
	if err := os.MkdirAll(boardsDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create boards directory: %w", err))
	}

	dataDir, err := a.dataDir()
	if err != nil {
		return sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	store, err := history.Open(dataDir)
	if err != nil {
		return sysError(fmt.Errorf("initialize build ledger: %w", err))
	}
	if err := store.Close(); err != nil {
		return sysError(fmt.Errorf("finalize build ledger: %w", err))
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "wrote %s\n", configPath)
	} else {
		fmt.Fprintf(out, "kept %s\n", configPath)
	}
	fmt.Fprintf(out, "boards: %s\nledger: %s\n", boardsDir, store.Path())
	return nil
}
