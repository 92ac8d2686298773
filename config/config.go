// Package config loads shastity's configuration file and exposes the
// global options every command accepts. The file format is YAML
// (parsed with gopkg.in/yaml.v2, the same library
// configuration/parser.go uses for the registry's config file), and
// as in that package, environment variables may override individual
// fields - useful for CI and container deployments where editing a
// dotfile is awkward.
//
// This replaces options.py/config.py's Option/Configuration
// framework (a small generic option-and-default mechanism) with a single
// typed struct, since Go's type system already gives us the
// validation that framework existed to provide.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v2"
)

// DefaultBlockSize is used when neither the config file nor
// --block-size specifies one.
const DefaultBlockSize = 1 * 1024 * 1024

// DefaultPath is the config file location used when --config is not
// given.
const DefaultPath = "~/.shastity"

// Config holds the global options shared by every shastity command.
type Config struct {
	Verbosity int    `yaml:"verbosity"`
	BlockSize int    `yaml:"block-size"`
	CryptoKey string `yaml:"crypto-key,omitempty"`
}

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		Verbosity: 5, // INFO, in logging.ToVerbosity(logrus.InfoLevel) terms
		BlockSize: DefaultBlockSize,
	}
}

// Load reads path (applying "~" expansion) and merges it over the
// defaults. A missing file is not an error: shastity runs fine with
// defaults alone, the way the original ran with an absent
// ~/.shastity.
func Load(path string) (Config, error) {
	cfg := Default()

	expanded, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", expanded, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", expanded, err)
	}

	return applyEnv(cfg), nil
}

func expandHome(path string) (string, error) {
	if path == "~" {
		return os.UserHomeDir()
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// applyEnv overrides cfg's fields with SHASTITY_* environment
// variables when present, mirroring configuration.Parser's
// environment-override behavior.
func applyEnv(cfg Config) Config {
	if v, ok := os.LookupEnv("SHASTITY_VERBOSITY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Verbosity = n
		}
	}
	if v, ok := os.LookupEnv("SHASTITY_BLOCK_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BlockSize = n
		}
	}
	if v, ok := os.LookupEnv("SHASTITY_CRYPTO_KEY"); ok {
		cfg.CryptoKey = v
	}
	return cfg
}

// RequiredOptionMissingError reports that an option with no usable
// default was never supplied, the Go counterpart of the original
// options.py's RequiredOptionMissingError.
type RequiredOptionMissingError struct {
	OptionName string
	Comment    string
}

func (e RequiredOptionMissingError) Error() string {
	if e.Comment != "" {
		return fmt.Sprintf("config: required option %q missing: %s", e.OptionName, e.Comment)
	}
	return fmt.Sprintf("config: required option %q missing", e.OptionName)
}
