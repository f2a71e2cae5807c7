package webhook

import (
	"context"

	"github.com/mattjoyce/wxgate/internal/responder"
)

// Callback handles the two request kinds of a callback endpoint.
// *responder.Responder satisfies it.
type Callback interface {
	Verify(q responder.Query) responder.Result
	Respond(ctx context.Context, q responder.Query, body []byte) responder.Result
	Log(ctx context.Context, op string, res responder.Result)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig defines a single callback endpoint.
type EndpointConfig struct {
	// Path is the URL path for this endpoint (e.g., "/wecom/callback")
	Path string

	// Callback verifies and answers requests on Path
	Callback Callback

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64
}

// HealthPath is served alongside the callback endpoints.
const HealthPath = "/healthz"

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Endpoints     int    `json:"endpoints"`
}

// Query parameter names used by the platform.
const (
	ParamTimestamp       = "timestamp"
	ParamNonce           = "nonce"
	ParamMsgSignature    = "msg_signature"
	ParamLegacySignature = "signature"
	ParamEchoStr         = "echostr"
)

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
)
