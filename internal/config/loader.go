package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the site file name looked up in the working and home directories.
const DefaultConfigFile = ".siteaudit"

// ErrConfigNotFound means the site file named by the user is missing.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads the organizations listed in a YAML site file.
// A missing file yields ErrConfigNotFound; a file without a sites section
// yields an empty, usable File.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// EmptyFile is the site file used when none is found: every audit target
// must then be a URL.
func EmptyFile() *File {
	return &File{Sites: make(map[string]SiteConfig)}
}

// FindConfigFile picks the site file for an audit. An explicit configPath
// wins and is returned only if it exists. Otherwise the first existing of
// ./.siteaudit, $XDG_CONFIG_HOME/siteaudit/config.yaml and ~/.siteaudit is
// used. "" means no site file.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
