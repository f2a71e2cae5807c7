package config

import "time"

// Config represents the complete wxgate configuration.
type Config struct {
	Service   ServiceConfig    `yaml:"service"`
	State     StateConfig      `yaml:"state"`
	Listen    string           `yaml:"listen"`
	Platform  PlatformConfig   `yaml:"platform"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// PlatformConfig identifies the application on the messaging platform and
// holds the credentials for its control API.
type PlatformConfig struct {
	APIBase    string `yaml:"api_base"`
	CorpID     string `yaml:"corp_id"`
	CorpSecret string `yaml:"corp_secret,omitempty"`
	AgentID    int64  `yaml:"agent_id,omitempty"`

	// RefreshSkew refreshes access tokens this long before they expire.
	RefreshSkew time.Duration `yaml:"refresh_skew,omitempty"`
	// Timeout bounds each control API call.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TokenEnabled reports whether access-token management is configured.
func (p PlatformConfig) TokenEnabled() bool {
	return p.CorpSecret != ""
}

// EndpointConfig defines one callback endpoint.
type EndpointConfig struct {
	// Path is the URL path for this endpoint (e.g., "/wecom/callback")
	Path string `yaml:"path"`

	// Token is the shared token used for signatures
	Token string `yaml:"token"`

	// EncodingAESKey is the 43-character base64 key material
	EncodingAESKey string `yaml:"encoding_aes_key"`

	// ReceiverID is bound into every envelope (default: platform.corp_id)
	ReceiverID string `yaml:"receiver_id,omitempty"`

	// MaxBodySize caps delivery bodies, e.g. "1MB" (default: 1MB)
	MaxBodySize string `yaml:"max_body_size,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "wxgate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		Listen: "127.0.0.1:8081",
		Platform: PlatformConfig{
			APIBase:     "https://qyapi.weixin.qq.com",
			RefreshSkew: 5 * time.Minute,
			Timeout:     10 * time.Second,
		},
	}
}
