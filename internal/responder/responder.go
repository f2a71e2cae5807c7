package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattjoyce/wxgate/internal/message"
	"github.com/mattjoyce/wxgate/internal/signature"
)

// Query carries the URL parameters of a callback request.
type Query struct {
	Timestamp string
	Nonce     string
	Signature string
	EchoStr   string // handshake only
}

// Responder authenticates, decrypts and dispatches callback requests for one
// set of credentials. It holds no per-request state and is safe for
// concurrent use.
type Responder struct {
	creds  Credentials
	table  *Table
	logger *slog.Logger
	now    func() time.Time
	nonce  func() string
	tokens TokenSource
}

// Option customizes a Responder.
type Option func(*Responder)

// WithClock overrides the time source used for reply timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Responder) { r.now = now }
}

// WithNonce overrides the generator for reply nonces.
func WithNonce(fn func() string) Option {
	return func(r *Responder) { r.nonce = fn }
}

// New creates a Responder. table may be nil, in which case every message is accepted without a reply.
func New(creds Credentials, table *Table, logger *slog.Logger, opts ...Option) *Responder {
	if table == nil {
		table = NewTableBuilder().Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Responder{
		creds:  creds,
		table:  table,
		logger: logger,
		now:    time.Now,
		nonce:  newNonce,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Verify answers the endpoint ownership handshake. On success the body is
// the decrypted challenge, unwrapped.
func (r *Responder) Verify(q Query) Result {
	if !signature.Verify(q.Signature, r.creds.Token, q.Timestamp, q.Nonce, q.EchoStr) {
		return rejected(fmt.Errorf("%w: handshake signature mismatch", ErrAuthentication))
	}

	payload, err := r.creds.Open(q.EchoStr)
	if err != nil {
		return rejected(fmt.Errorf("open handshake challenge: %w", err))
	}

	return Result{Outcome: OutcomeReplied, Body: payload}
}

// Respond handles one message delivery: authenticate, decrypt, route, invoke
// the handler and seal its reply.
func (r *Responder) Respond(ctx context.Context, q Query, body []byte) Result {
	req, err := message.ParseEncryptedRequest(body)
	if err != nil {
		return rejected(fmt.Errorf("parse delivery body: %w", err))
	}

	if !signature.Verify(q.Signature, r.creds.Token, q.Timestamp, q.Nonce, req.Encrypt) {
		return rejected(fmt.Errorf("%w: message signature mismatch", ErrAuthentication))
	}

	payload, err := r.creds.Open(req.Encrypt)
	if err != nil {
		return rejected(fmt.Errorf("open delivery: %w", err))
	}

	msg, err := message.Parse(payload)
	if err != nil {
		return rejected(fmt.Errorf("parse message: %w", err))
	}

	h, match, ok := r.table.resolve(msg)
	if !ok {
		return accepted(fmt.Errorf("%w: kind=%s event=%s", ErrUnroutable, msg.Kind, msg.Event))
	}

	reply, err := h(ctx, &Request{
		Message:    msg,
		Match:      match,
		ReceivedAt: r.now(),
		now:        r.now,
		tokens:     r.tokens,
	})
	if err != nil {
		return rejected(&HandlerError{Kind: string(msg.Kind), Err: err})
	}
	if reply == nil {
		return accepted(nil)
	}

	out, err := r.seal(reply)
	if err != nil {
		return rejected(err)
	}
	return Result{Outcome: OutcomeReplied, Body: out}
}

func (r *Responder) seal(reply *message.Reply) ([]byte, error) {
	plain, err := reply.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}

	timestamp := strconv.FormatInt(r.now().Unix(), 10)
	resp, err := r.creds.Seal(plain, timestamp, r.nonce())
	if err != nil {
		return nil, err
	}

	out, err := resp.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal encrypted response: %w", err)
	}
	return out, nil
}

// Log records a result at a level matching its outcome. Bodies are never logged.
func (r *Responder) Log(ctx context.Context, op string, res Result) {
	attrs := []any{"op", op, "outcome", res.Outcome.String()}
	switch {
	case res.Outcome == OutcomeRejected && errors.Is(res.Err, ErrAuthentication):
		r.logger.WarnContext(ctx, "callback rejected", append(attrs, "error", res.Err)...)
	case res.Outcome == OutcomeRejected:
		var he *HandlerError
		if errors.As(res.Err, &he) {
			r.logger.ErrorContext(ctx, "callback handler failed", append(attrs, "error", res.Err)...)
			return
		}
		r.logger.WarnContext(ctx, "callback processing failed", append(attrs, "error", res.Err)...)
	case res.Err != nil:
		r.logger.DebugContext(ctx, "callback accepted without reply", append(attrs, "reason", res.Err)...)
	default:
		r.logger.DebugContext(ctx, "callback handled", attrs...)
	}
}
