package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattjoyce/wxgate/internal/crypt"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, verifies and validates the configuration file at configPath.
// A directory is accepted and resolved to <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := ResolvePath(configPath)
	if err != nil {
		return nil, err
	}

	// Hash-verify before parsing so a tampered file is never interpreted
	if err := VerifyChecksums(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// ResolvePath returns the absolute path of the config file.
func ResolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// Parse interpolates, decodes, defaults and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	interpolated := interpolateEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolated)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyConfigDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Listen == "" {
		cfg.Listen = defaults.Listen
	}
	if cfg.Platform.APIBase == "" {
		cfg.Platform.APIBase = defaults.Platform.APIBase
	}
	if cfg.Platform.RefreshSkew == 0 {
		cfg.Platform.RefreshSkew = defaults.Platform.RefreshSkew
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = defaults.Platform.Timeout
	}

	// Receiver id falls back to the corp id
	for i := range cfg.Endpoints {
		if cfg.Endpoints[i].ReceiverID == "" {
			cfg.Endpoints[i].ReceiverID = cfg.Platform.CorpID
		}
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}

		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}

	if cfg.Platform.TokenEnabled() {
		if cfg.Platform.CorpID == "" {
			return fmt.Errorf("platform.corp_id is required when platform.corp_secret is set")
		}
		if err := checkUnresolved("platform.corp_secret", cfg.Platform.CorpSecret); err != nil {
			return err
		}
	}
	if cfg.Platform.RefreshSkew < 0 {
		return fmt.Errorf("platform.refresh_skew must not be negative")
	}

	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}

	seen := make(map[string]bool)
	for i, ep := range cfg.Endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)

		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("%s.path must start with '/' (got %q)", field, ep.Path)
		}
		if ep.Path == "/healthz" {
			return fmt.Errorf("%s.path %q is reserved", field, ep.Path)
		}
		if seen[ep.Path] {
			return fmt.Errorf("%s.path %q is duplicated", field, ep.Path)
		}
		seen[ep.Path] = true

		if ep.Token == "" {
			return fmt.Errorf("%s.token is required", field)
		}
		if err := checkUnresolved(field+".token", ep.Token); err != nil {
			return err
		}
		if err := checkUnresolved(field+".encoding_aes_key", ep.EncodingAESKey); err != nil {
			return err
		}
		if _, err := crypt.ParseKey(ep.EncodingAESKey); err != nil {
			return fmt.Errorf("%s.encoding_aes_key: %w", field, err)
		}
		if ep.ReceiverID == "" {
			return fmt.Errorf("%s.receiver_id is required (or set platform.corp_id)", field)
		}
	}

	return nil
}

// checkUnresolved rejects values that still hold a ${VAR} placeholder.
func checkUnresolved(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
