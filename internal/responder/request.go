package responder

import (
	"context"
	"time"

	"github.com/mattjoyce/wxgate/internal/message"
)

// Match holds the values a route extracted from the message.
type Match struct {
	Content    string   // text content
	Groups     []string // regexp submatches for OnTextMatch routes
	EventKey   string
	ScanType   string // from ScanCodeInfo, when present
	ScanResult string
}

// Request is the context passed to a handler.
type Request struct {
	Message    *message.Message
	Match      Match
	ReceivedAt time.Time

	now    func() time.Time
	tokens TokenSource
}

// Get returns a raw top-level field of the message, e.g. "FromUserName".
func (r *Request) Get(name string) string {
	return r.Message.Get(name)
}

// AccessToken returns a current platform API token. Concurrent handlers
// share one refresh when the token is stale.
func (r *Request) AccessToken(ctx context.Context) (string, error) {
	if r.tokens == nil {
		return "", ErrNoTokenSource
	}
	return r.tokens.Get(ctx)
}

// Reply starts a reply addressed back to the sender.
func (r *Request) Reply() *ReplyBuilder {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return &ReplyBuilder{
		to:   r.Message.FromUserName,
		from: r.Message.ToUserName,
		at:   now().Unix(),
	}
}

// ReplyBuilder creates replies with the sender and receiver swapped.
type ReplyBuilder struct {
	to, from string
	at       int64
}

func (b *ReplyBuilder) base(kind message.Kind) *message.Reply {
	return &message.Reply{
		ToUserName:   b.to,
		FromUserName: b.from,
		CreateTime:   b.at,
		Kind:         kind,
	}
}

// Text builds a text reply.
func (b *ReplyBuilder) Text(content string) *message.Reply {
	r := b.base(message.KindText)
	r.Content = content
	return r
}

// Image builds an image reply for an uploaded media id.
func (b *ReplyBuilder) Image(mediaID string) *message.Reply {
	r := b.base(message.KindImage)
	r.MediaID = mediaID
	return r
}

// Voice builds a voice reply.
func (b *ReplyBuilder) Voice(mediaID string) *message.Reply {
	r := b.base(message.KindVoice)
	r.MediaID = mediaID
	return r
}

// Video builds a video reply.
func (b *ReplyBuilder) Video(mediaID, title, description string) *message.Reply {
	r := b.base(message.KindVideo)
	r.MediaID = mediaID
	r.Title = title
	r.Description = description
	return r
}

// News builds a news reply.
func (b *ReplyBuilder) News(articles ...message.Article) *message.Reply {
	r := b.base(message.KindNews)
	r.Articles = articles
	return r
}
