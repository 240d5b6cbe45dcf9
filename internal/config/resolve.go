package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvConfig names the environment variable that points at the config file.
const EnvConfig = "PLADO_CONFIG"

// FlagConfig is the long name of the command-line flag that overrides EnvConfig.
const FlagConfig = "config"

const defaultFileName = ".plado_config.json"

// DefaultPath returns ${HOME}/.plado_config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, defaultFileName)
}

// ResolvePath picks the config file in priority order: the --config flag
// when it was given, then $PLADO_CONFIG, then DefaultPath. The chosen file
// must exist.
func ResolvePath(flags *pflag.FlagSet) (string, error) {
	v := viper.New()
	v.SetDefault(FlagConfig, DefaultPath())
	if err := v.BindEnv(FlagConfig, EnvConfig); err != nil {
		return "", err
	}
	if flags != nil {
		if f := flags.Lookup(FlagConfig); f != nil {
			if err := v.BindPFlag(FlagConfig, f); err != nil {
				return "", err
			}
		}
	}

	path := v.GetString(FlagConfig)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if path == DefaultPath() {
			return "", fmt.Errorf("could not find a config file at the default location: %s", path)
		}
		return "", fmt.Errorf("the given config path could not be found: %s", path)
	case err != nil:
		return "", fmt.Errorf("stat config %s: %w", path, err)
	case info.IsDir():
		return "", fmt.Errorf("config path %s is a directory", path)
	}
	return path, nil
}
