package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/boardcfg/internal/emit"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	envPrefix = "BOARDCFG"
)

// Config keys of config.yaml.
const (
	cfgKeyBoardsDir    = "boards_dir"
	cfgKeyPorts        = "ports"
	cfgKeyChip         = "chip"
	cfgKeyChipFiles    = "chip_files"
	cfgKeyFormat       = "format"
	cfgKeyOutputDir    = "output_dir"
	cfgKeyHeaderPrefix = "header_prefix"
	cfgKeyGoPackage    = "go_package"
	cfgKeyHistory      = "history"
	cfgKeyDataDir      = "data_dir"
	cfgKeyOverrides    = "overrides"
)

// Defaults for config keys.
const (
	defaultBoardsDir = "boards"
	defaultOutputDir = "build"
)

// configFile is the structure written to config.yaml by init.
type configFile struct {
	BoardsDir    string            `yaml:"boards_dir"`
	Ports        []string          `yaml:"ports"`
	Chip         string            `yaml:"chip,omitempty"`
	ChipFiles    []string          `yaml:"chip_files"`
	Format       string            `yaml:"format"`
	OutputDir    string            `yaml:"output_dir"`
	HeaderPrefix string            `yaml:"header_prefix"`
	GoPackage    string            `yaml:"go_package"`
	History      bool              `yaml:"history"`
	DataDir      string            `yaml:"data_dir,omitempty"`
	Overrides    map[string]string `yaml:"overrides"`
}

func defaultConfigFile() configFile {
	return configFile{
		BoardsDir: defaultBoardsDir,
		Ports:     []string{},
		ChipFiles: []string{},
		Format:    string(emit.FormatHeader),
		OutputDir: defaultOutputDir,
		GoPackage: emit.DefaultGoPackage,
		History:   true,
		Overrides: map[string]string{},
	}
}

// loadConfig reads config.yaml from configDir using Viper. A missing file
// is not an error; defaults apply. Every key can be overridden from the
// environment with the BOARDCFG_ prefix, e.g. BOARDCFG_FORMAT=json.
func loadConfig(configDir string) (*viper.Viper, error) {
	def := defaultConfigFile()

	v := viper.New()
	v.SetDefault(cfgKeyBoardsDir, def.BoardsDir)
	v.SetDefault(cfgKeyPorts, def.Ports)
	v.SetDefault(cfgKeyChip, "")
	v.SetDefault(cfgKeyChipFiles, def.ChipFiles)
	v.SetDefault(cfgKeyFormat, def.Format)
	v.SetDefault(cfgKeyOutputDir, def.OutputDir)
	v.SetDefault(cfgKeyHeaderPrefix, def.HeaderPrefix)
	v.SetDefault(cfgKeyGoPackage, def.GoPackage)
	v.SetDefault(cfgKeyHistory, def.History)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns false.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# boardcfg project configuration\n")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
