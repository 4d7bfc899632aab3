package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// CompilerConfig locates the external compiler and its output.
type CompilerConfig struct {
	Path         string   `toml:"path"`
	WorkDir      string   `toml:"work_dir"`
	ArtifactName string   `toml:"artifact_name"`
	Timeout      Duration `toml:"timeout"`
}

// EditorConfig controls how the song source is edited.
type EditorConfig struct {
	SourceFile string `toml:"source_file"`
	Command    string `toml:"command"`
	Watch      *bool  `toml:"watch"`
}

// HistoryConfig controls the compile history database.
type HistoryConfig struct {
	Enabled      *bool  `toml:"enabled"`
	DatabasePath string `toml:"database_path"`
	Limit        int    `toml:"limit"`
}

// Config holds all melodeck configuration.
type Config struct {
	Compiler CompilerConfig `toml:"compiler"`
	Editor   EditorConfig   `toml:"editor"`
	History  HistoryConfig  `toml:"history"`
	Debug    bool           `toml:"debug"`
}

// Duration is a time.Duration that decodes from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const (
	defaultArtifactName = "output.mid"
	defaultSourceName   = "song.music"
	defaultHistoryLimit = 20
	compilerBaseName    = "music"
)

// WorkDirOrDefault returns Compiler.WorkDir if set, otherwise the directory
// holding the running executable.
func (c Config) WorkDirOrDefault() string {
	if c.Compiler.WorkDir != "" {
		return c.Compiler.WorkDir
	}
	exe, err := os.Executable()
	if err != nil {
		wd, _ := os.Getwd()
		return wd
	}
	return filepath.Dir(exe)
}

// CompilerPathOrDefault returns Compiler.Path if set, otherwise the compiler
// binary inside the work directory. Relative paths are resolved against the
// work directory.
func (c Config) CompilerPathOrDefault() string {
	p := c.Compiler.Path
	if p == "" {
		p = compilerBaseName
		if runtime.GOOS == "windows" {
			p += ".exe"
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.WorkDirOrDefault(), p)
	}
	return p
}

// ArtifactNameOrDefault returns Compiler.ArtifactName if set, otherwise "output.mid".
func (c Config) ArtifactNameOrDefault() string {
	if c.Compiler.ArtifactName != "" {
		return c.Compiler.ArtifactName
	}
	return defaultArtifactName
}

// SourceFileOrDefault returns Editor.SourceFile if set, otherwise song.music in the work directory.
func (c Config) SourceFileOrDefault() string {
	if c.Editor.SourceFile != "" {
		return c.Editor.SourceFile
	}
	return filepath.Join(c.WorkDirOrDefault(), defaultSourceName)
}

// EditorCommandOrDefault returns Editor.Command if set, otherwise $VISUAL, $EDITOR, then vi
// (notepad on windows).
func (c Config) EditorCommandOrDefault() string {
	if c.Editor.Command != "" {
		return c.Editor.Command
	}
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "vi"
}

// WatchEnabled reports whether the source file is watched for external edits. Defaults to true.
func (c Config) WatchEnabled() bool {
	return c.Editor.Watch == nil || *c.Editor.Watch
}

// HistoryEnabled reports whether compiles are recorded. Defaults to true.
func (c Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// HistoryPathOrDefault returns History.DatabasePath if set, otherwise history.db
// next to the config file.
func (c Config) HistoryPathOrDefault() string {
	if c.History.DatabasePath != "" {
		return ExpandPath(c.History.DatabasePath)
	}
	return filepath.Join(DefaultConfigDir(), "history.db")
}

// HistoryLimitOrDefault returns History.Limit if set, otherwise 20.
func (c Config) HistoryLimitOrDefault() int {
	if c.History.Limit > 0 {
		return c.History.Limit
	}
	return defaultHistoryLimit
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values:
//   - MELODECK_COMPILER overrides compiler.path
//   - MELODECK_WORKDIR  overrides compiler.work_dir
//   - MELODECK_DEBUG    overrides debug ("1" or "true")
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	cfg.Compiler.Path = ExpandPath(cfg.Compiler.Path)
	cfg.Compiler.WorkDir = ExpandPath(cfg.Compiler.WorkDir)
	cfg.Editor.SourceFile = ExpandPath(cfg.Editor.SourceFile)
	return cfg, nil
}

// DefaultConfigDir returns the directory holding melodeck's config and state.
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "melodeck")
}

// DefaultConfigPath returns the default path for the melodeck config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.toml")
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MELODECK_COMPILER"); v != "" {
		cfg.Compiler.Path = v
	}
	if v := os.Getenv("MELODECK_WORKDIR"); v != "" {
		cfg.Compiler.WorkDir = v
	}
	switch strings.ToLower(os.Getenv("MELODECK_DEBUG")) {
	case "1", "true":
		cfg.Debug = true
	case "0", "false":
		cfg.Debug = false
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
