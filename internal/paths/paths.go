// Package paths resolves the configuration and data directories of
// boardcfg. The configuration directory is project-local by default; the
// data directory holding the build ledger is per-user.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// AppName names the per-user platform directories.
const AppName = "boardcfg"

// DefaultConfigDirName is the CWD-relative project configuration directory.
const DefaultConfigDirName = ".boardcfg"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "BOARDCFG_CONFIG_DIR"
	EnvDataDir   = "BOARDCFG_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// UserConfigDir returns the platform-specific per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/boardcfg (fallback ~/.config/boardcfg)
// macOS:   ~/Library/Application Support/boardcfg
// Windows: %APPDATA%/boardcfg
func UserConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// UserChipsDirName is the directory under UserConfigDir holding per-user
// chip descriptors.
const UserChipsDirName = "chips"

// UserChipFiles returns the YAML chip descriptors in the per-user chips
// directory, sorted. A missing directory yields no files.
func UserChipFiles() ([]string, error) {
	dir, err := UserConfigDir()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, UserChipsDirName, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	return files, nil
}

// DefaultDataDir returns the platform-specific default data directory.
//
// Linux:   $XDG_DATA_HOME/boardcfg (fallback ~/.local/share/boardcfg)
// macOS:   ~/Library/Application Support/boardcfg
// Windows: %APPDATA%/boardcfg
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", AppName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > BOARDCFG_CONFIG_DIR > $(CWD)/.boardcfg.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultConfigDirName), nil
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > config.yaml data_dir > BOARDCFG_DATA_DIR > DefaultDataDir().
// A relative config value is taken relative to configDir.
func ResolveDataDir(flag, configValue, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		if !filepath.IsAbs(configValue) && configDir != "" {
			return filepath.Join(configDir, configValue), nil
		}
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultDataDir()
}

// ProjectPath resolves a project-relative path from config.yaml. The
// project root is the parent of configDir; absolute paths are returned
// unchanged.
func ProjectPath(configDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configDir), p)
}
