// Package config loads the ambient, optional settings that sit alongside
// n2kd's fixed five-flag CLI surface: logging destination/rotation, the
// diagnostic trace path, and a descriptor-cap override.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoggingConfig controls where n2kd logs and the level label on each line.
// Level is applied as a line prefix; messages are not filtered by level.
type LoggingConfig struct {
	Level         string `toml:"level"` // "debug" | "info" | "error"
	FilePath      string `toml:"filePath"`
	FileMaxSizeMB int    `toml:"fileMaxSizeMB"`
	// MaxGenerations bounds how many rotated log files are kept on disk.
	// Rotation cycles through path+".1" .. path+".<MaxGenerations>",
	// overwriting the oldest generation once all are in use — the same
	// reuse-the-oldest-slot discipline pkg/n2k applies to expired Message
	// slots, applied here to rotated log files instead of PGN entries.
	MaxGenerations int `toml:"maxGenerations"`
}

// DiagnosticsConfig controls the write-only SQLite trace journal.
type DiagnosticsConfig struct {
	Enabled   bool   `toml:"enabled"`
	TracePath string `toml:"tracePath"`
}

// ServerConfig controls descriptor accounting ambient to the event loop.
type ServerConfig struct {
	DescriptorCap int `toml:"descriptorCap"`
}

// MaxDescriptorCap is the FD_SETSIZE-equivalent hard cap spec §5 describes
// ("typically 1024"). pkg/netloop's fdset helpers index a fixed [16]int64
// unix.FdSet.Bits array sized for exactly this many descriptors, so a
// descriptorCap above it would index out of range rather than produce the
// spec's graceful "exceeding this closes the offending newcomer" behavior.
const MaxDescriptorCap = 1024

// Config aggregates the ambient settings for one n2kd process.
type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Server      ServerConfig      `toml:"server"`
}

// Default returns the built-in defaults used when no config file resolves.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:          "info",
			FileMaxSizeMB:  64,
			MaxGenerations: 3,
		},
		Diagnostics: DiagnosticsConfig{
			Enabled:   false,
			TracePath: "n2kd-trace.db",
		},
		Server: ServerConfig{
			DescriptorCap: 1024,
		},
	}
}

// envVar is the environment variable used to locate an explicit config
// file path, since §6 of the specification fixes the CLI flag surface and
// forbids adding a new flag for this.
const envVar = "N2KD_CONFIG"

// defaultPath is tried when envVar is unset.
const defaultPath = "n2kd.toml"

// Resolve loads the ambient config from N2KD_CONFIG if set, else
// ./n2kd.toml if present, else returns Default(). A positive descriptorCap
// replaces the default descriptor cap before any file is applied.
func Resolve(descriptorCap int) (Config, error) {
	cfg := Default()
	if descriptorCap > 0 {
		cfg.Server.DescriptorCap = descriptorCap
	}

	path := os.Getenv(envVar)
	if path == "" {
		if _, err := os.Stat(defaultPath); err != nil {
			return cfg, nil
		}
		path = defaultPath
	}
	return Load(path, cfg)
}

// Load reads a TOML file at path into a copy of base and validates it.
func Load(path string, base Config) (Config, error) {
	cfg := base
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.Logging.Level {
	case "debug", "info", "error", "":
	default:
		return fmt.Errorf("logging.level must be debug, info, or error, got %q", cfg.Logging.Level)
	}
	if cfg.Server.DescriptorCap <= 0 {
		return fmt.Errorf("server.descriptorCap must be positive")
	}
	if cfg.Server.DescriptorCap > MaxDescriptorCap {
		return fmt.Errorf("server.descriptorCap must be <= %d (FD_SETSIZE-equivalent)", MaxDescriptorCap)
	}
	if cfg.Logging.FilePath != "" && cfg.Logging.MaxGenerations <= 0 {
		return fmt.Errorf("logging.maxGenerations must be positive when logging.filePath is set")
	}
	return nil
}
