// Package config holds kiln's runtime configuration: filesystem roots
// for SDK discovery, default serial settings, and build options. The
// resolved Config value is threaded explicitly into every component so
// nothing deeper in the call tree reads the process environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	DefaultBaudRate = 115200
	DefaultCPPStd   = "c++11"
)

// Config holds all kiln configuration.
type Config struct {
	// Home is the user home directory every default root hangs off.
	Home string `json:"-"`

	// SDKRoot, when set, short-circuits SDK discovery to one root
	// (KILN_SDK_ROOT).
	SDKRoot string `json:"sdk_root,omitempty"`

	// ModulesRoot is the kiln-managed SDK store (KILN_MODULES_ROOT,
	// default <home>/.kiln/modules).
	ModulesRoot string `json:"modules_root,omitempty"`

	// LibsRoot is where registry libraries install (KILN_LIBS_ROOT,
	// default <home>/.kiln/libraries).
	LibsRoot string `json:"libs_root,omitempty"`

	// XDGDataHome and LocalAppData feed the platform-specific
	// package-cache candidates in SDK discovery. Captured here so the
	// resolver never touches the environment itself.
	XDGDataHome  string `json:"-"`
	LocalAppData string `json:"-"`

	DefaultBoard   string `json:"default_board,omitempty"`
	SerialPort     string `json:"serial_port,omitempty"`
	SerialBaudRate int    `json:"serial_baud_rate,omitempty"`
	CPPStd         string `json:"cpp_std,omitempty"`

	// Jobs bounds parallel compilation and downloads; 0 means one
	// worker per CPU.
	Jobs int `json:"jobs,omitempty"`
}

// Defaults returns a Config with default values. Roots that depend on
// the home directory are filled in by Load/ApplyEnv.
func Defaults() Config {
	return Config{
		SerialBaudRate: DefaultBaudRate,
		CPPStd:         DefaultCPPStd,
	}
}

// Load builds the effective configuration: defaults, merged with the
// user config file (~/.config/kiln/config.json), then environment
// overrides. This is the only place kiln reads the environment.
func Load() Config {
	cfg := Defaults()

	if home, err := os.UserHomeDir(); err == nil {
		cfg.Home = home
		mergeFromFile(&cfg, filepath.Join(home, ".config", "kiln", "config.json"))
	}

	cfg.ApplyEnv()
	cfg.FillRootDefaults()
	return cfg
}

// ApplyEnv overlays the KILN_* override variables onto cfg.
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv("KILN_SDK_ROOT"); v != "" {
		cfg.SDKRoot = v
	}
	if v := os.Getenv("KILN_MODULES_ROOT"); v != "" {
		cfg.ModulesRoot = v
	}
	if v := os.Getenv("KILN_LIBS_ROOT"); v != "" {
		cfg.LibsRoot = v
	}
	cfg.XDGDataHome = os.Getenv("XDG_DATA_HOME")
	cfg.LocalAppData = os.Getenv("LOCALAPPDATA")
	if cfg.Home == "" {
		if v := os.Getenv("HOME"); v != "" {
			cfg.Home = v
		} else if v := os.Getenv("USERPROFILE"); v != "" {
			cfg.Home = v
		}
	}
}

// FillRootDefaults derives the module-store and library roots from the
// home directory when no override set them.
func (cfg *Config) FillRootDefaults() {
	if cfg.ModulesRoot == "" && cfg.Home != "" {
		cfg.ModulesRoot = filepath.Join(cfg.Home, ".kiln", "modules")
	}
	if cfg.LibsRoot == "" && cfg.Home != "" {
		cfg.LibsRoot = filepath.Join(cfg.Home, ".kiln", "libraries")
	}
}

// StateDir is the kiln state root holding history and session logs.
func (cfg Config) StateDir() string {
	if cfg.Home == "" {
		return ""
	}
	return filepath.Join(cfg.Home, ".kiln")
}

// HistoryDir is where build/flash records are kept.
func (cfg Config) HistoryDir() string {
	if cfg.Home == "" {
		return ""
	}
	return filepath.Join(cfg.StateDir(), "history")
}

// Save writes the config to ~/.config/kiln/config.json.
func Save(cfg Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".config", "kiln")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

func mergeFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return
	}

	if fileCfg.SDKRoot != "" {
		cfg.SDKRoot = fileCfg.SDKRoot
	}
	if fileCfg.ModulesRoot != "" {
		cfg.ModulesRoot = fileCfg.ModulesRoot
	}
	if fileCfg.LibsRoot != "" {
		cfg.LibsRoot = fileCfg.LibsRoot
	}
	if fileCfg.DefaultBoard != "" {
		cfg.DefaultBoard = fileCfg.DefaultBoard
	}
	if fileCfg.SerialPort != "" {
		cfg.SerialPort = fileCfg.SerialPort
	}
	if fileCfg.SerialBaudRate != 0 {
		cfg.SerialBaudRate = fileCfg.SerialBaudRate
	}
	if fileCfg.CPPStd != "" {
		cfg.CPPStd = fileCfg.CPPStd
	}
	if fileCfg.Jobs != 0 {
		cfg.Jobs = fileCfg.Jobs
	}
}
