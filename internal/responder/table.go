package responder

import (
	"context"
	"regexp"
	"strings"

	"github.com/mattjoyce/wxgate/internal/message"
)

// HandlerFunc handles one routed message. A nil reply means "do not reply".
type HandlerFunc func(ctx context.Context, req *Request) (*message.Reply, error)

type matcher int

const (
	matchAny matcher = iota
	matchExact
	matchRegexp
)

type route struct {
	kind    message.Kind
	matcher matcher
	with    string
	re      *regexp.Regexp
	handler HandlerFunc
}

// Table is an immutable routing table. It is safe for concurrent use.
type Table struct {
	routes   []route
	fallback HandlerFunc
}

// TableBuilder collects routes in registration order.
type TableBuilder struct {
	routes   []route
	fallback HandlerFunc
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{}
}

// OnText registers the generic text handler. Match.Content carries the text.
func (b *TableBuilder) OnText(h HandlerFunc) *TableBuilder {
	return b.add(route{kind: message.KindText, matcher: matchAny, handler: h})
}

// OnTextEquals registers a handler for text exactly equal to s.
func (b *TableBuilder) OnTextEquals(s string, h HandlerFunc) *TableBuilder {
	return b.add(route{kind: message.KindText, matcher: matchExact, with: s, handler: h})
}

// OnTextMatch registers a handler for text matching re. Submatches are in Match.Groups.
func (b *TableBuilder) OnTextMatch(re *regexp.Regexp, h HandlerFunc) *TableBuilder {
	return b.add(route{kind: message.KindText, matcher: matchRegexp, re: re, handler: h})
}

// OnEvent registers a handler for events whose name equals with
// (case-insensitive), or failing that whose EventKey equals with. An empty
// with registers the generic event handler, as OnAnyEvent does.
func (b *TableBuilder) OnEvent(with string, h HandlerFunc) *TableBuilder {
	if strings.TrimSpace(with) == "" {
		return b.OnAnyEvent(h)
	}
	return b.add(route{kind: message.KindEvent, matcher: matchExact, with: with, handler: h})
}

// OnAnyEvent registers the generic event handler.
func (b *TableBuilder) OnAnyEvent(h HandlerFunc) *TableBuilder {
	return b.add(route{kind: message.KindEvent, matcher: matchAny, handler: h})
}

// On registers a handler for every message of kind.
func (b *TableBuilder) On(kind message.Kind, h HandlerFunc) *TableBuilder {
	return b.add(route{kind: kind, matcher: matchAny, handler: h})
}

// OnFallback registers the handler used when nothing else matched.
func (b *TableBuilder) OnFallback(h HandlerFunc) *TableBuilder {
	b.fallback = h
	return b
}

func (b *TableBuilder) add(r route) *TableBuilder {
	if r.handler != nil {
		b.routes = append(b.routes, r)
	}
	return b
}

// Build freezes the registered routes. Later changes to the builder do not
// affect the returned table.
func (b *TableBuilder) Build() *Table {
	routes := make([]route, len(b.routes))
	copy(routes, b.routes)
	return &Table{routes: routes, fallback: b.fallback}
}

// Len returns the number of routes, excluding the fallback.
func (t *Table) Len() int {
	return len(t.routes)
}

// resolve picks the handler for msg and the match values passed to it.
func (t *Table) resolve(msg *message.Message) (HandlerFunc, Match, bool) {
	m := Match{
		Content:  msg.Content,
		EventKey: msg.EventKey,
	}
	if msg.ScanCodeInfo != nil {
		m.ScanType = msg.ScanCodeInfo.ScanType
		m.ScanResult = msg.ScanCodeInfo.ScanResult
	}

	var h HandlerFunc
	switch msg.Kind {
	case message.KindText:
		h = t.resolveText(msg.Content, &m)
	case message.KindEvent:
		h = t.resolveEvent(msg)
	default:
		h = t.first(msg.Kind, func(r route) bool { return r.matcher == matchAny })
	}

	if h == nil {
		h = t.fallback
	}
	return h, m, h != nil
}

func (t *Table) resolveText(content string, m *Match) HandlerFunc {
	for _, r := range t.routes {
		if r.kind != message.KindText {
			continue
		}
		switch r.matcher {
		case matchExact:
			if content == r.with {
				return r.handler
			}
		case matchRegexp:
			if groups := r.re.FindStringSubmatch(content); groups != nil {
				m.Groups = groups[1:]
				return r.handler
			}
		}
	}
	return t.first(message.KindText, func(r route) bool { return r.matcher == matchAny })
}

func (t *Table) resolveEvent(msg *message.Message) HandlerFunc {
	byName := t.first(message.KindEvent, func(r route) bool {
		return r.matcher == matchExact && strings.EqualFold(r.with, msg.Event)
	})
	if byName != nil {
		return byName
	}
	if msg.EventKey != "" {
		byKey := t.first(message.KindEvent, func(r route) bool {
			return r.matcher == matchExact && r.with == msg.EventKey
		})
		if byKey != nil {
			return byKey
		}
	}
	return t.first(message.KindEvent, func(r route) bool { return r.matcher == matchAny })
}

func (t *Table) first(kind message.Kind, ok func(route) bool) HandlerFunc {
	for _, r := range t.routes {
		if r.kind == kind && ok(r) {
			return r.handler
		}
	}
	return nil
}
