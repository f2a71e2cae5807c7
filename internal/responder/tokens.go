package responder

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_token_source.go -package=mocks github.com/mattjoyce/wxgate/internal/responder TokenSource

// ErrNoTokenSource is returned by Request.AccessToken when the responder was
// built without WithTokens.
var ErrNoTokenSource = errors.New("no access token source configured")

// TokenSource hands out a current access token for the platform API.
// *token.Cache satisfies it.
type TokenSource interface {
	Get(ctx context.Context) (string, error)
}

// WithTokens lets handlers call the platform API through Request.AccessToken.
func WithTokens(src TokenSource) Option {
	return func(r *Responder) { r.tokens = src }
}
