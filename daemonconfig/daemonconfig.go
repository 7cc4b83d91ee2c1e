// Package daemonconfig loads and saves the daemon's YAML configuration file,
// following ptp4u/server/config.go and cmd/c4u/main.go's load/save pattern:
// a plain struct, defaults applied before unmarshalling over them, flags
// overriding individual fields afterward.
package daemonconfig

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Config is the daemon's on-disk configuration.
type Config struct {
	// QmdlStorePath is the recording store directory.
	QmdlStorePath string `yaml:"qmdl_store_path"`
	// Port is unused by this repo's in-scope surface (the HTTP server is
	// out of scope) but is kept so an external collaborator's config file
	// loads without a schema break.
	Port int `yaml:"port"`
	// ReadonlyMode disables capture, serving only existing recordings.
	ReadonlyMode bool `yaml:"readonly_mode"`
	// UILevel selects the physical-display driver's verbosity; the driver
	// itself is out of scope, so this field is carried but unused.
	UILevel int `yaml:"ui_level"`
	// LogLevel is a logrus level name ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		QmdlStorePath: "./qmdl",
		Port:          8080,
		ReadonlyMode:  false,
		UILevel:       1,
		LogLevel:      "info",
	}
}

// Load reads and parses a YAML config file at path, applying defaults first
// so a partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("daemonconfig: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("daemonconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save serializes cfg to path, matching c4u's "-save" mode.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("daemonconfig: serializing config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("daemonconfig: writing %s: %w", path, err)
	}
	return nil
}
