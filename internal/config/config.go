package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// WorkTree is the local path of the git working tree
	WorkTree string `mapstructure:"worktree" yaml:"worktree"`

	// File is the target file path, relative to the working tree
	File string `mapstructure:"file" yaml:"file"`

	// Identifiers is the set of tokens rotated through the template.
	// At least two distinct members.
	Identifiers []string `mapstructure:"identifiers" yaml:"identifiers"`

	// Template is the link format with one %s slot for the identifier
	Template string `mapstructure:"template" yaml:"template"`

	// IntervalMin and IntervalMax bound the random sleep, in minutes
	IntervalMin int `mapstructure:"interval_min" yaml:"interval_min"`
	IntervalMax int `mapstructure:"interval_max" yaml:"interval_max"`

	// Remote is the push target
	Remote string `mapstructure:"remote" yaml:"remote"`

	// Commit settings
	Commit CommitConfig `mapstructure:"commit" yaml:"commit"`

	// Log settings
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

type CommitConfig struct {
	// Prefix leads every commit message; a timestamp is appended
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	// Name and Email, when both set, are written into the tree's git
	// config before committing
	Name  string `mapstructure:"name" yaml:"name"`
	Email string `mapstructure:"email" yaml:"email"`
}

type LogConfig struct {
	// File is an optional log file path (empty = stderr only)
	File string `mapstructure:"file" yaml:"file"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		File:        "README.md",
		Identifiers: []string{"7202424896", "6294881820"},
		Template:    "https://t.me/jiso?start=a_%s",
		IntervalMin: 60,
		IntervalMax: 120,
		Remote:      "origin",
		Commit: CommitConfig{
			Prefix: "Update links",
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("file", cfg.File)
	v.SetDefault("identifiers", cfg.Identifiers)
	v.SetDefault("template", cfg.Template)
	v.SetDefault("interval_min", cfg.IntervalMin)
	v.SetDefault("interval_max", cfg.IntervalMax)
	v.SetDefault("remote", cfg.Remote)
	v.SetDefault("commit", cfg.Commit)
	v.SetDefault("log", cfg.Log)

	v.SetEnvPrefix("LINKROTD")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".linkrotd")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".linkrotd"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// TargetPath returns the absolute path of the target file.
func (c *Config) TargetPath() string {
	return filepath.Join(c.WorkTree, c.File)
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".linkrotd", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if tree := os.Getenv("LINKROTD_WORKTREE"); tree != "" {
		cfg.WorkTree = expandPath(tree)
	}
	if file := os.Getenv("LINKROTD_FILE"); file != "" {
		cfg.File = file
	}
	if ids := os.Getenv("LINKROTD_IDENTIFIERS"); ids != "" {
		cfg.Identifiers = splitList(ids)
	}
	if tmpl := os.Getenv("LINKROTD_TEMPLATE"); tmpl != "" {
		cfg.Template = tmpl
	}
	if min := os.Getenv("LINKROTD_INTERVAL_MIN"); min != "" {
		if minutes, err := strconv.Atoi(min); err == nil {
			cfg.IntervalMin = minutes
		}
	}
	if max := os.Getenv("LINKROTD_INTERVAL_MAX"); max != "" {
		if minutes, err := strconv.Atoi(max); err == nil {
			cfg.IntervalMax = minutes
		}
	}
	if remote := os.Getenv("LINKROTD_REMOTE"); remote != "" {
		cfg.Remote = remote
	}
	if prefix := os.Getenv("LINKROTD_COMMIT_PREFIX"); prefix != "" {
		cfg.Commit.Prefix = prefix
	}
	if name := os.Getenv("LINKROTD_COMMIT_NAME"); name != "" {
		cfg.Commit.Name = name
	}
	if email := os.Getenv("LINKROTD_COMMIT_EMAIL"); email != "" {
		cfg.Commit.Email = email
	}
	if logFile := os.Getenv("LINKROTD_LOG_FILE"); logFile != "" {
		cfg.Log.File = expandPath(logFile)
	}
}

// splitList parses a comma-separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("worktree", c.WorkTree)
	v.Set("file", c.File)
	v.Set("identifiers", c.Identifiers)
	v.Set("template", c.Template)
	v.Set("interval_min", c.IntervalMin)
	v.Set("interval_max", c.IntervalMax)
	v.Set("remote", c.Remote)
	v.Set("commit", c.Commit)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
