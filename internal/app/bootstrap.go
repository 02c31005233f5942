package app

import (
	"fmt"
	"os"
	"path/filepath"

	"stackctl/internal/account"
	"stackctl/internal/cache"
	"stackctl/internal/config"
	"stackctl/internal/credential"
	"stackctl/internal/lifecycle"
	"stackctl/pkg/logging"
)

// CacheFileName is the SQLite database inside the cache directory. One
// file serves every stack on the machine.
const CacheFileName = "cache.db"

// For mocking in tests
var loadGlobal = config.LoadGlobal
var openStore = func(path string) (cache.Store, error) {
	return cache.OpenSQLite(path)
}

// Application wires the collaborators every stackctl command works
// with: the tool configuration, the shared cache store, the lifecycle
// sequencer, and the token cache.
type Application struct {
	Global config.GlobalConfig
	Store  cache.Store
	Stacks *lifecycle.Sequencer
	Tokens *credential.Cache
}

// NewApplication creates and initializes a new application instance.
// It loads the global configuration, configures logging, and opens the
// shared cache store. The caller owns Close.
func NewApplication(cfg *Config) (*Application, error) {
	global, err := loadGlobal()
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load stackctl configuration")
		return nil, fmt.Errorf("failed to load stackctl configuration: %w", err)
	}
	if cfg.LogLevel != "" {
		global.LogLevel = cfg.LogLevel
	}
	logging.Init(logging.ParseLevel(global.LogLevel), cfg.LogFormat, os.Stderr)

	cacheDir, err := config.CacheDir(global)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to prepare cache directory")
		return nil, fmt.Errorf("failed to prepare cache directory: %w", err)
	}
	store, err := openStore(filepath.Join(cacheDir, CacheFileName))
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to open cache store")
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	validator := account.NewClient(global.Account.URL, global.Account.Timeout)
	return &Application{
		Global: global,
		Store:  store,
		Stacks: lifecycle.New(global, store, nil),
		Tokens: credential.New(store, cache.DefaultComponent, validator),
	}, nil
}

// Close releases the shared cache store.
func (a *Application) Close() error {
	return a.Store.Close()
}
