package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir  = ".config/stackctl"
	configFileName = "config.yaml"

	// WorkDirName is the per-stack working directory created under the
	// stack root. Run configs and other generated artifacts live there.
	WorkDirName = ".stackctl"
)

// LoadGlobal loads the tool configuration by layering the built-in
// defaults and the user's config file.
func LoadGlobal() (GlobalConfig, error) {
	config := GetDefaultGlobalConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; fall back to defaults.
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
		return config, nil
	}

	if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
		userConfig, err := loadGlobalFromFile(userConfigPath)
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
		config = mergeGlobal(config, userConfig)
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

func loadGlobalFromFile(filePath string) (GlobalConfig, error) {
	var config GlobalConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return GlobalConfig{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return GlobalConfig{}, err
	}
	return config, nil
}

// mergeGlobal merges 'overlay' config into 'base' config.
func mergeGlobal(base, overlay GlobalConfig) GlobalConfig {
	merged := base

	if overlay.Engine != "" {
		merged.Engine = overlay.Engine
	}
	if overlay.Domain != "" {
		merged.Domain = overlay.Domain
	}
	if overlay.CacheDir != "" {
		merged.CacheDir = overlay.CacheDir
	}
	if overlay.LogLevel != "" {
		merged.LogLevel = overlay.LogLevel
	}
	if overlay.Account.URL != "" {
		merged.Account.URL = overlay.Account.URL
	}
	if overlay.Account.Timeout != 0 {
		merged.Account.Timeout = overlay.Account.Timeout
	}

	return merged
}

// CacheDir returns the directory holding the shared cache store,
// creating it if necessary. The GlobalConfig.CacheDir override wins;
// otherwise the user config directory is used.
func CacheDir(cfg GlobalConfig) (string, error) {
	dir := cfg.CacheDir
	if dir == "" {
		homeDir, err := osUserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(homeDir, userConfigDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
