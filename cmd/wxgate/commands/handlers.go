package commands

import (
	"context"
	"fmt"

	"github.com/mattjoyce/wxgate/internal/message"
	"github.com/mattjoyce/wxgate/internal/responder"
)

// defaultTable is the built-in behaviour of a bare gateway: echo text, greet
// new members and report scan results. Anything else is accepted silently.
func defaultTable() *responder.Table {
	return responder.NewTableBuilder().
		OnText(func(ctx context.Context, req *responder.Request) (*message.Reply, error) {
			return req.Reply().Text("echo: " + req.Match.Content), nil
		}).
		OnEvent("subscribe", func(ctx context.Context, req *responder.Request) (*message.Reply, error) {
			return req.Reply().Text("welcome!"), nil
		}).
		OnEvent("scancode_waitmsg", func(ctx context.Context, req *responder.Request) (*message.Reply, error) {
			return req.Reply().Text(fmt.Sprintf("User %s ScanType %s ScanResult %s",
				req.Message.FromUserName, req.Match.ScanType, req.Match.ScanResult)), nil
		}).
		OnEvent("click", func(ctx context.Context, req *responder.Request) (*message.Reply, error) {
			return req.Reply().Text("echo: " + req.Match.EventKey), nil
		}).
		Build()
}
