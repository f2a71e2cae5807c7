// Package message decodes platform callback messages and encodes replies.
//
// Both directions use the platform's flat XML form rooted at <xml>. Inbound
// messages are decoded into Message, keeping every top-level field so
// handlers can read values the typed fields do not cover. Replies are written
// with CDATA sections for string values, as the platform does.
package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Kind discriminates message and reply types (the MsgType field).
type Kind string

const (
	KindText       Kind = "text"
	KindEvent      Kind = "event"
	KindImage      Kind = "image"
	KindVoice      Kind = "voice"
	KindVideo      Kind = "video"
	KindShortVideo Kind = "shortvideo"
	KindLocation   Kind = "location"
	KindLink       Kind = "link"
	KindNews       Kind = "news"
)

// ErrUnrecognized is returned when a payload is not a platform message.
var ErrUnrecognized = errors.New("unrecognized message")

// ScanCodeInfo is attached to scancode_push / scancode_waitmsg events.
type ScanCodeInfo struct {
	ScanType   string
	ScanResult string
}

// Message is a decrypted inbound message.
type Message struct {
	ToUserName   string
	FromUserName string
	CreateTime   int64
	MsgID        string
	AgentID      string
	Kind         Kind

	// text
	Content string

	// event
	Event        string
	EventKey     string
	ScanCodeInfo *ScanCodeInfo

	// image, voice, video, shortvideo
	MediaID string

	// Fields holds the text of every top-level element by tag.
	Fields map[string]string
}

// Get returns the raw value of a top-level field, or "".
func (m *Message) Get(name string) string {
	return m.Fields[name]
}

// Parse decodes an XML message.
func Parse(data []byte) (*Message, error) {
	root, err := readRoot(data)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	for _, el := range root.ChildElements() {
		if len(el.ChildElements()) > 0 {
			continue
		}
		fields[el.Tag] = el.Text()
	}

	kind := strings.TrimSpace(fields["MsgType"])
	if kind == "" {
		return nil, fmt.Errorf("%w: MsgType is missing", ErrUnrecognized)
	}

	msg := &Message{
		ToUserName:   strings.TrimSpace(fields["ToUserName"]),
		FromUserName: strings.TrimSpace(fields["FromUserName"]),
		MsgID:        strings.TrimSpace(fields["MsgId"]),
		AgentID:      strings.TrimSpace(fields["AgentID"]),
		Kind:         Kind(kind),
		Content:      fields["Content"],
		Event:        strings.TrimSpace(fields["Event"]),
		EventKey:     strings.TrimSpace(fields["EventKey"]),
		MediaID:      strings.TrimSpace(fields["MediaId"]),
		Fields:       fields,
	}

	if raw := strings.TrimSpace(fields["CreateTime"]); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: CreateTime %q is not a unix timestamp", ErrUnrecognized, raw)
		}
		msg.CreateTime = ts
	}

	if info := root.SelectElement("ScanCodeInfo"); info != nil {
		msg.ScanCodeInfo = &ScanCodeInfo{
			ScanType:   childText(info, "ScanType"),
			ScanResult: childText(info, "ScanResult"),
		}
	}

	return msg, nil
}

func readRoot(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	root := doc.SelectElement("xml")
	if root == nil {
		return nil, fmt.Errorf("%w: no <xml> root element", ErrUnrecognized)
	}
	return root, nil
}

func childText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

// addCData appends <tag><![CDATA[value]]></tag>. Values that would terminate
// the section early are written as escaped text instead.
func addCData(parent *etree.Element, tag, value string) *etree.Element {
	value = xmlSafe(value)
	el := parent.CreateElement(tag)
	if strings.Contains(value, "]]>") {
		el.SetText(value)
	} else {
		el.CreateCData(value)
	}
	return el
}

func addText(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(xmlSafe(value))
	return el
}

// xmlSafe replaces invalid UTF-8 with U+FFFD and drops runes outside the
// XML 1.0 Char production, which no parser accepts even when escaped.
func xmlSafe(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}
