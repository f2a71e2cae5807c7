package responder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wxgate/internal/crypt"
	"github.com/mattjoyce/wxgate/internal/message"
	"github.com/mattjoyce/wxgate/internal/responder/mocks"
	"github.com/mattjoyce/wxgate/internal/signature"
	"github.com/mattjoyce/wxgate/internal/token"
	tokenmocks "github.com/mattjoyce/wxgate/internal/token/mocks"
)

const (
	testToken     = "token"
	testReceiver  = "appid"
	testTimestamp = "1234567"
	testNonce     = "nonce"
)

var fixedNow = time.Unix(1700000000, 0)

func testCredentials(t *testing.T) Credentials {
	t.Helper()
	var k crypt.Key
	for i := range k {
		k[i] = byte(255 - i)
	}
	creds, err := NewCredentials(testToken, testReceiver, k.Encode())
	require.NoError(t, err)
	return creds
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testTable mirrors a typical application: echo text, greet subscribers,
// and answer click and scan events by key.
func testTable() *Table {
	return NewTableBuilder().
		OnText(func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text("echo: " + req.Match.Content), nil
		}).
		OnEvent("subscribe", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text("welcome!"), nil
		}).
		OnEvent("my_event", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text("echo: " + req.Match.EventKey), nil
		}).
		OnEvent("BINDING_QR_CODE", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text(fmt.Sprintf("User %s ScanType %s ScanResult %s",
				req.Get("FromUserName"), req.Match.ScanType, req.Match.ScanResult)), nil
		}).
		Build()
}

func newTestResponder(t *testing.T, table *Table) (*Responder, Credentials) {
	t.Helper()
	creds := testCredentials(t)
	r := New(creds, table, quietLogger(),
		WithClock(func() time.Time { return fixedNow }),
		WithNonce(func() string { return "replynonce" }),
	)
	return r, creds
}

// messageXML wraps fields in the common message header.
func messageXML(fields string) []byte {
	return []byte(`<xml><ToUserName>toUser</ToUserName><FromUserName>fromUser</FromUserName>` +
		`<CreateTime>1348831860</CreateTime><MsgId>1234567890123456</MsgId>` + fields + `</xml>`)
}

// deliver seals payload as the platform would and runs it through r.
func deliver(t *testing.T, r *Responder, creds Credentials, payload []byte) Result {
	t.Helper()
	sealed, err := creds.Seal(payload, testTimestamp, testNonce)
	require.NoError(t, err)
	body, err := (&message.EncryptedRequest{ToUserName: "corpid", AgentID: "1", Encrypt: sealed.Encrypt}).Marshal()
	require.NoError(t, err)
	return r.Respond(context.Background(), Query{
		Timestamp: testTimestamp,
		Nonce:     testNonce,
		Signature: sealed.MsgSignature,
	}, body)
}

// openReply checks the reply signature and decrypts it.
func openReply(t *testing.T, creds Credentials, body []byte) *message.Message {
	t.Helper()
	resp, err := message.ParseEncryptedResponse(body)
	require.NoError(t, err)
	require.True(t, signature.Verify(resp.MsgSignature, creds.Token, resp.TimeStamp, resp.Nonce, resp.Encrypt),
		"reply signature must verify")

	plain, err := creds.Open(resp.Encrypt)
	require.NoError(t, err)
	msg, err := message.Parse(plain)
	require.NoError(t, err)
	return msg
}

func TestNewCredentials(t *testing.T) {
	valid := testCredentials(t).Key.Encode()

	_, err := NewCredentials("", "appid", valid)
	assert.Error(t, err)
	_, err = NewCredentials("token", "", valid)
	assert.Error(t, err)
	_, err = NewCredentials("token", "appid", "short")
	assert.Error(t, err)
}

func TestVerifyHandshake(t *testing.T) {
	r, creds := newTestResponder(t, nil)

	sealed, err := creds.Seal([]byte("hello"), testTimestamp, testNonce)
	require.NoError(t, err)

	res := r.Verify(Query{Timestamp: testTimestamp, Nonce: testNonce, Signature: sealed.MsgSignature, EchoStr: sealed.Encrypt})
	assert.Equal(t, OutcomeReplied, res.Outcome)
	assert.Equal(t, "hello", string(res.Body))
	assert.NoError(t, res.Err)
}

func TestVerifyHandshakeRejections(t *testing.T) {
	r, creds := newTestResponder(t, nil)
	sealed, err := creds.Seal([]byte("hello"), testTimestamp, testNonce)
	require.NoError(t, err)

	other := creds
	other.ReceiverID = "other-app"
	foreign, err := other.Seal([]byte("hello"), testTimestamp, testNonce)
	require.NoError(t, err)

	tests := []struct {
		name    string
		q       Query
		wantErr error
	}{
		{
			name:    "bad signature",
			q:       Query{Timestamp: testTimestamp, Nonce: testNonce, Signature: "invalid", EchoStr: sealed.Encrypt},
			wantErr: ErrAuthentication,
		},
		{
			name:    "missing signature",
			q:       Query{Timestamp: testTimestamp, Nonce: testNonce, EchoStr: sealed.Encrypt},
			wantErr: ErrAuthentication,
		},
		{
			name: "signed garbage",
			q: Query{Timestamp: testTimestamp, Nonce: testNonce,
				Signature: signature.Sign(testToken, testTimestamp, testNonce, "bm90IGJsb2Nrcw=="), EchoStr: "bm90IGJsb2Nrcw=="},
			wantErr: crypt.ErrDecryption,
		},
		{
			name:    "foreign receiver",
			q:       Query{Timestamp: testTimestamp, Nonce: testNonce, Signature: foreign.MsgSignature, EchoStr: foreign.Encrypt},
			wantErr: ErrAuthentication,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Verify(tt.q)
			assert.Equal(t, OutcomeRejected, res.Outcome)
			assert.Empty(t, res.Body)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.Equal(t, 403, res.Outcome.Status())
		})
	}
}

func TestRespondText(t *testing.T) {
	r, creds := newTestResponder(t, testTable())

	res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>hello</Content>`))
	require.Equal(t, OutcomeReplied, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, 200, res.Outcome.Status())

	resp, err := message.ParseEncryptedResponse(res.Body)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", resp.TimeStamp)
	assert.Equal(t, "replynonce", resp.Nonce)

	reply := openReply(t, creds, res.Body)
	assert.Equal(t, message.KindText, reply.Kind)
	assert.Equal(t, "echo: hello", reply.Content)
	assert.Equal(t, "fromUser", reply.ToUserName)
	assert.Equal(t, "toUser", reply.FromUserName)
	assert.Equal(t, fixedNow.Unix(), reply.CreateTime)
}

func TestRespondEvents(t *testing.T) {
	r, creds := newTestResponder(t, testTable())

	tests := []struct {
		name   string
		fields string
		want   string
	}{
		{
			name:   "subscribe by event name",
			fields: `<MsgType>event</MsgType><Event>subscribe</Event>`,
			want:   "welcome!",
		},
		{
			name:   "event name is case-insensitive",
			fields: `<MsgType>event</MsgType><Event>SUBSCRIBE</Event>`,
			want:   "welcome!",
		},
		{
			name:   "click by event key",
			fields: `<MsgType>event</MsgType><Event>click</Event><EventKey>my_event</EventKey>`,
			want:   "echo: my_event",
		},
		{
			name: "scan event passes scan info",
			fields: `<MsgType>event</MsgType><Event>scancode_push</Event><EventKey>BINDING_QR_CODE</EventKey>` +
				`<ScanCodeInfo><ScanType>qrcode</ScanType><ScanResult>scan_result</ScanResult></ScanCodeInfo>`,
			want: "User fromUser ScanType qrcode ScanResult scan_result",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := deliver(t, r, creds, messageXML(tt.fields))
			require.Equal(t, OutcomeReplied, res.Outcome, "err: %v", res.Err)

			reply := openReply(t, creds, res.Body)
			assert.Equal(t, message.KindText, reply.Kind)
			assert.Equal(t, tt.want, reply.Content)
		})
	}
}

func TestRespondScanUsesSenderFromMessage(t *testing.T) {
	r, creds := newTestResponder(t, testTable())

	payload := []byte(`<xml><ToUserName>toUser</ToUserName><FromUserName>userid</FromUserName>` +
		`<CreateTime>1348831860</CreateTime><MsgType>event</MsgType><Event>scancode_push</Event>` +
		`<EventKey>BINDING_QR_CODE</EventKey><ScanCodeInfo><ScanType>qrcode</ScanType>` +
		`<ScanResult>scan_result</ScanResult></ScanCodeInfo></xml>`)

	res := deliver(t, r, creds, payload)
	require.Equal(t, OutcomeReplied, res.Outcome)
	assert.Equal(t, "User userid ScanType qrcode ScanResult scan_result", openReply(t, creds, res.Body).Content)
}

func TestRespondNoHandlerIsAccepted(t *testing.T) {
	r, creds := newTestResponder(t, testTable())

	tests := []struct {
		name   string
		fields string
	}{
		{name: "voice", fields: `<MsgType>voice</MsgType><MediaId>mediaID</MediaId>`},
		{name: "unknown event", fields: `<MsgType>event</MsgType><Event>unsubscribe</Event>`},
		{name: "unknown event key", fields: `<MsgType>event</MsgType><Event>click</Event><EventKey>nope</EventKey>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := deliver(t, r, creds, messageXML(tt.fields))
			assert.Equal(t, OutcomeAccepted, res.Outcome)
			assert.Equal(t, 200, res.Outcome.Status())
			assert.Empty(t, res.Body)
			assert.ErrorIs(t, res.Err, ErrUnroutable)
		})
	}
}

func TestRespondRejections(t *testing.T) {
	r, creds := newTestResponder(t, testTable())
	payload := messageXML(`<MsgType>text</MsgType><Content>hello</Content>`)
	sealed, err := creds.Seal(payload, testTimestamp, testNonce)
	require.NoError(t, err)
	body, err := (&message.EncryptedRequest{Encrypt: sealed.Encrypt}).Marshal()
	require.NoError(t, err)

	t.Run("bad signature", func(t *testing.T) {
		res := r.Respond(context.Background(), Query{Timestamp: testTimestamp, Nonce: testNonce, Signature: "invalid"}, body)
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.Empty(t, res.Body)
		assert.ErrorIs(t, res.Err, ErrAuthentication)
	})

	t.Run("signature over another timestamp", func(t *testing.T) {
		res := r.Respond(context.Background(), Query{Timestamp: "7654321", Nonce: testNonce, Signature: sealed.MsgSignature}, body)
		assert.ErrorIs(t, res.Err, ErrAuthentication)
	})

	t.Run("body without Encrypt", func(t *testing.T) {
		res := r.Respond(context.Background(), Query{Timestamp: testTimestamp, Nonce: testNonce, Signature: sealed.MsgSignature}, []byte("<xml></xml>"))
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, message.ErrUnrecognized)
	})

	t.Run("foreign receiver", func(t *testing.T) {
		other := creds
		other.ReceiverID = "someone-else"
		res := deliver(t, r, other, payload)
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrAuthentication)
	})

	t.Run("payload is not a message", func(t *testing.T) {
		res := deliver(t, r, creds, []byte("plain text"))
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, message.ErrUnrecognized)
	})
}

func TestRespondHandlerOutcomes(t *testing.T) {
	boom := errors.New("boom")
	table := NewTableBuilder().
		OnTextEquals("fail", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return nil, boom
		}).
		OnTextEquals("silent", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return nil, nil
		}).
		OnTextEquals("bad reply", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().News(), nil
		}).
		Build()
	r, creds := newTestResponder(t, table)

	res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>fail</Content>`))
	assert.Equal(t, OutcomeRejected, res.Outcome)
	var he *HandlerError
	require.True(t, errors.As(res.Err, &he))
	assert.Equal(t, "text", he.Kind)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, res.Body)

	res = deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>silent</Content>`))
	assert.Equal(t, OutcomeAccepted, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Body)

	res = deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>bad reply</Content>`))
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Empty(t, res.Body)
}

func TestTextRoutePrecedence(t *testing.T) {
	reply := func(s string) HandlerFunc {
		return func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text(s + fmt.Sprint(req.Match.Groups)), nil
		}
	}
	table := NewTableBuilder().
		OnText(reply("generic")).
		OnTextMatch(regexp.MustCompile(`^order (\d+)$`), reply("order")).
		OnTextEquals("help", reply("help")).
		Build()
	r, creds := newTestResponder(t, table)

	tests := []struct{ content, want string }{
		{"help", "help[]"},
		{"order 42", "order[42]"},
		{"anything", "generic[]"},
	}
	for _, tt := range tests {
		res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>`+tt.content+`</Content>`))
		require.Equal(t, OutcomeReplied, res.Outcome)
		assert.Equal(t, tt.want, openReply(t, creds, res.Body).Content, "content %q", tt.content)
	}
}

func TestEventRoutePrecedence(t *testing.T) {
	named := func(s string) HandlerFunc {
		return func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text(s), nil
		}
	}
	table := NewTableBuilder().
		OnAnyEvent(named("any")).
		OnEvent("menu_1", named("by key")).
		OnEvent("click", named("by name")).
		On(message.KindImage, named("image")).
		OnFallback(named("fallback")).
		Build()
	r, creds := newTestResponder(t, table)

	tests := []struct{ fields, want string }{
		{`<MsgType>event</MsgType><Event>click</Event><EventKey>menu_1</EventKey>`, "by name"},
		{`<MsgType>event</MsgType><Event>view</Event><EventKey>menu_1</EventKey>`, "by key"},
		{`<MsgType>event</MsgType><Event>location</Event>`, "any"},
		{`<MsgType>image</MsgType><MediaId>m</MediaId>`, "image"},
		{`<MsgType>link</MsgType>`, "fallback"},
		{`<MsgType>text</MsgType><Content>hi</Content>`, "fallback"},
	}
	for _, tt := range tests {
		res := deliver(t, r, creds, messageXML(tt.fields))
		require.Equal(t, OutcomeReplied, res.Outcome, "fields %s: %v", tt.fields, res.Err)
		assert.Equal(t, tt.want, openReply(t, creds, res.Body).Content, "fields %s", tt.fields)
	}
}

func TestEmptyEventNameIsGeneric(t *testing.T) {
	table := NewTableBuilder().
		OnEvent("", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text("any"), nil
		}).
		OnEvent("click", func(ctx context.Context, req *Request) (*message.Reply, error) {
			return req.Reply().Text("click"), nil
		}).
		Build()
	r, creds := newTestResponder(t, table)

	tests := []struct {
		fields string
		want   string
	}{
		{`<MsgType>event</MsgType><Event>click</Event>`, "click"},
		{`<MsgType>event</MsgType><Event>location</Event>`, "any"},
		{`<MsgType>event</MsgType>`, "any"},
	}
	for _, tt := range tests {
		res := deliver(t, r, creds, messageXML(tt.fields))
		require.Equal(t, OutcomeReplied, res.Outcome, "fields %s: %v", tt.fields, res.Err)
		assert.Equal(t, tt.want, openReply(t, creds, res.Body).Content, "fields %s", tt.fields)
	}
}

func TestTableIsFrozenAtBuild(t *testing.T) {
	b := NewTableBuilder().OnText(func(ctx context.Context, req *Request) (*message.Reply, error) { return nil, nil })
	table := b.Build()
	b.OnAnyEvent(func(ctx context.Context, req *Request) (*message.Reply, error) { return nil, nil })
	b.On(message.KindVoice, nil)

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, 2, b.Build().Len())
}

func TestRespondConcurrent(t *testing.T) {
	r, creds := newTestResponder(t, testTable())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := fmt.Sprintf("msg-%d", i)
			res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>`+content+`</Content>`))
			if assert.Equal(t, OutcomeReplied, res.Outcome) {
				assert.Equal(t, "echo: "+content, openReply(t, creds, res.Body).Content)
			}
		}()
	}
	wg.Wait()
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "rejected", OutcomeRejected.String())
	assert.Equal(t, "accepted", OutcomeAccepted.String())
	assert.Equal(t, "replied", OutcomeReplied.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func TestLogDoesNotPanicForAnyOutcome(t *testing.T) {
	var buf bytes.Buffer
	creds := testCredentials(t)
	r := New(creds, nil, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	r.Log(context.Background(), "message", rejected(ErrAuthentication))
	r.Log(context.Background(), "message", rejected(&HandlerError{Kind: "text", Err: errors.New("x")}))
	r.Log(context.Background(), "message", rejected(crypt.ErrDecryption))
	r.Log(context.Background(), "message", accepted(ErrUnroutable))
	r.Log(context.Background(), "message", Result{Outcome: OutcomeReplied})

	assert.Contains(t, buf.String(), `"outcome":"rejected"`)
	assert.Contains(t, buf.String(), "callback handler failed")
	assert.NotContains(t, buf.String(), "Encrypt")
}

// tokenTable replies with the access token the handler obtained.
func tokenTable() *Table {
	return NewTableBuilder().
		OnText(func(ctx context.Context, req *Request) (*message.Reply, error) {
			tok, err := req.AccessToken(ctx)
			if err != nil {
				return nil, err
			}
			return req.Reply().Text("token: " + tok), nil
		}).
		Build()
}

func TestHandlerReadsAccessToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockTokenSource(ctrl)
	src.EXPECT().Get(gomock.Any()).Return("ACCESS", nil).Times(1)

	creds := testCredentials(t)
	r := New(creds, tokenTable(), quietLogger(), WithTokens(src))

	res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>hi</Content>`))
	require.Equal(t, OutcomeReplied, res.Outcome, "%v", res.Err)
	assert.Equal(t, "token: ACCESS", openReply(t, creds, res.Body).Content)
}

func TestHandlerAccessTokenErrors(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		r, creds := newTestResponder(t, tokenTable())
		res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>hi</Content>`))
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, ErrNoTokenSource)
	})

	t.Run("source fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		src := mocks.NewMockTokenSource(ctrl)
		boom := errors.New("token endpoint down")
		src.EXPECT().Get(gomock.Any()).Return("", boom)

		creds := testCredentials(t)
		r := New(creds, tokenTable(), quietLogger(), WithTokens(src))
		res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>hi</Content>`))
		assert.Equal(t, OutcomeRejected, res.Outcome)
		assert.ErrorIs(t, res.Err, boom)
	})
}

func TestConcurrentHandlersShareOneTokenFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := tokenmocks.NewMockFetcher(ctrl)

	release := make(chan struct{})
	fetcher.EXPECT().Fetch(gomock.Any()).DoAndReturn(func(ctx context.Context) (token.Token, error) {
		<-release
		return token.Token{Value: "shared", ExpiresAt: fixedNow.Add(2 * time.Hour)}, nil
	}).Times(1)

	cache := token.NewCache(token.Key{CorpID: "corpid", AgentID: 1}, fetcher, quietLogger(),
		token.WithClock(func() time.Time { return fixedNow }))

	creds := testCredentials(t)
	r := New(creds, tokenTable(), quietLogger(), WithTokens(cache))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := deliver(t, r, creds, messageXML(`<MsgType>text</MsgType><Content>hi</Content>`))
			if assert.Equal(t, OutcomeReplied, res.Outcome, "%v", res.Err) {
				assert.Equal(t, "token: shared", openReply(t, creds, res.Body).Content)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
}
