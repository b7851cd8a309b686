// Package config loads the tool-level configuration for the parrot CLI.
// Settings come from a TOML file, overridable through PARROT_* environment
// variables; per-pipeline settings live in PipelineSpec instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General    GeneralConfig    `toml:"general"`
	Defaults   DefaultsConfig   `toml:"defaults"`
	Evaluation EvaluationConfig `toml:"evaluation"`
	Logging    LoggingConfig    `toml:"logging"`
}

type GeneralConfig struct {
	// ConfigDir is where generated pipeline configurations live, one
	// subdirectory per configuration name.
	ConfigDir string `toml:"config_dir"`
	// RepoRoot contains the components/ and backends/ directories.
	RepoRoot string `toml:"repo_root"`
	// TemplateDir overrides the embedded templates when non-empty. It
	// must contain docker/, traefik/, and dex/ subdirectories.
	TemplateDir string `toml:"template_dir"`
}

type DefaultsConfig struct {
	Domain   string `toml:"domain"`
	HTTPPort int    `toml:"http_port"`
	Theme    string `toml:"theme"`
}

type EvaluationConfig struct {
	// HistoryDB is the SQLite database recording evaluation runs.
	HistoryDB string `toml:"history_db"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".parrot")

	return &Config{
		General: GeneralConfig{
			ConfigDir:   filepath.Join(dataDir, "configs"),
			RepoRoot:    ".",
			TemplateDir: "",
		},
		Defaults: DefaultsConfig{
			Domain:   "parrot.localhost",
			HTTPPort: 8001,
			Theme:    "defaulttheme",
		},
		Evaluation: EvaluationConfig{
			HistoryDB: filepath.Join(dataDir, "parrot.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.General.ConfigDir, err = expandPath(c.General.ConfigDir); err != nil {
		return fmt.Errorf("expand general.config_dir: %w", err)
	}
	if c.General.RepoRoot, err = expandPath(c.General.RepoRoot); err != nil {
		return fmt.Errorf("expand general.repo_root: %w", err)
	}
	if c.General.TemplateDir, err = expandPath(c.General.TemplateDir); err != nil {
		return fmt.Errorf("expand general.template_dir: %w", err)
	}
	if c.Evaluation.HistoryDB, err = expandPath(c.Evaluation.HistoryDB); err != nil {
		return fmt.Errorf("expand evaluation.history_db: %w", err)
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Defaults.HTTPPort < 1 || c.Defaults.HTTPPort > 65535 {
		return fmt.Errorf("defaults.http_port out of range: %d", c.Defaults.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARROT_CONFIG_DIR"); v != "" {
		cfg.General.ConfigDir = v
	}
	if v := os.Getenv("PARROT_REPO_ROOT"); v != "" {
		cfg.General.RepoRoot = v
	}
	if v := os.Getenv("PARROT_TEMPLATE_DIR"); v != "" {
		cfg.General.TemplateDir = v
	}
	if v := os.Getenv("PARROT_EVAL_DB"); v != "" {
		cfg.Evaluation.HistoryDB = v
	}
	if v := os.Getenv("PARROT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PARROT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// ComponentsDir returns the directory holding component build contexts.
func (c *Config) ComponentsDir() string {
	return filepath.Join(c.General.RepoRoot, "components")
}

// BackendsDir returns the directory holding backend engine compose files.
func (c *Config) BackendsDir() string {
	return filepath.Join(c.General.RepoRoot, "backends")
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, path[2:]), nil
	}

	return path, nil
}

func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", configPath, err)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
