package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is a non-zero errcode returned by the platform.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Message)
}

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HTTPFetcher calls the gettoken endpoint of the control API.
type HTTPFetcher struct {
	client *http.Client
	base   string
	corpID string
	secret string
	now    func() time.Time
}

// NewHTTPFetcher creates a fetcher for corpID. timeout bounds each call.
func NewHTTPFetcher(base, corpID, secret string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
		base:   strings.TrimRight(base, "/"),
		corpID: corpID,
		secret: secret,
		now:    time.Now,
	}
}

// Fetch requests a new token.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Token, error) {
	q := url.Values{}
	q.Set("corpid", f.corpID)
	q.Set("corpsecret", f.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.base+"/cgi-bin/gettoken?"+q.Encode(), nil)
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}

	requested := f.now()
	resp, err := f.client.Do(req)
	if err != nil {
		// url.Error carries the full URL, secret included
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return Token{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token request failed: status %d", resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if body.ErrCode != 0 {
		return Token{}, &APIError{Code: body.ErrCode, Message: body.ErrMsg}
	}
	if body.AccessToken == "" || body.ExpiresIn <= 0 {
		return Token{}, fmt.Errorf("token response missing access_token or expires_in")
	}

	return Token{
		Value:     body.AccessToken,
		ExpiresAt: requested.Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}
