package webhook

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mattjoyce/wxgate/internal/config"
	"github.com/mattjoyce/wxgate/internal/responder"
)

// FromGlobalConfig builds the server configuration from the loaded config.
// Every endpoint gets its own Responder over the shared handler table, built
// with opts.
func FromGlobalConfig(cfg *config.Config, table *responder.Table, logger *slog.Logger, opts ...responder.Option) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	out := Config{
		Listen:    cfg.Listen,
		Endpoints: make([]EndpointConfig, len(cfg.Endpoints)),
	}

	for i, ep := range cfg.Endpoints {
		creds, err := responder.NewCredentials(ep.Token, ep.ReceiverID, ep.EncodingAESKey)
		if err != nil {
			return Config{}, fmt.Errorf("endpoint %q: %w", ep.Path, err)
		}

		// Parse max body size (e.g., "1MB", "2048576")
		maxBodySize, err := parseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}

		out.Endpoints[i] = EndpointConfig{
			Path:        ep.Path,
			Callback:    responder.New(creds, table, logger.With("endpoint", ep.Path), opts...),
			MaxBodySize: maxBodySize,
		}
	}

	return out, nil
}

// parseMaxBodySize parses size strings like "1MB", "2048576", "64KB" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(size)
	multiplier := int64(1)

	switch {
	case strings.HasSuffix(upper, "KB"):
		multiplier = 1024
		size = strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "MB"):
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "GB"):
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}
