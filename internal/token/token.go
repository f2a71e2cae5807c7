package token

import (
	"context"
	"fmt"
	"time"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks github.com/mattjoyce/wxgate/internal/token Fetcher

// Token is an access token for the platform control API.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Fresh reports whether the token is usable at now with at least skew left.
func (t Token) Fresh(now time.Time, skew time.Duration) bool {
	return t.Value != "" && now.Add(skew).Before(t.ExpiresAt)
}

// Key identifies the application a token belongs to.
type Key struct {
	CorpID  string
	AgentID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.CorpID, k.AgentID)
}

// Fetcher obtains a new token from the platform.
type Fetcher interface {
	Fetch(ctx context.Context) (Token, error)
}

// Persister keeps tokens across restarts. *Store satisfies it.
type Persister interface {
	Load(ctx context.Context, key Key) (Token, bool, error)
	Save(ctx context.Context, key Key, tok Token) error
}
