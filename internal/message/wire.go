package message

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// EncryptedRequest is the body of a message delivery.
type EncryptedRequest struct {
	ToUserName string
	AgentID    string
	Encrypt    string
}

// ParseEncryptedRequest decodes a delivery body. Encrypt is required.
func ParseEncryptedRequest(data []byte) (*EncryptedRequest, error) {
	root, err := readRoot(data)
	if err != nil {
		return nil, err
	}
	req := &EncryptedRequest{
		ToUserName: childText(root, "ToUserName"),
		AgentID:    childText(root, "AgentID"),
		Encrypt:    childText(root, "Encrypt"),
	}
	if req.Encrypt == "" {
		return nil, fmt.Errorf("%w: Encrypt is missing", ErrUnrecognized)
	}
	return req, nil
}

// Marshal serializes the request body.
func (r *EncryptedRequest) Marshal() ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("xml")
	if r.ToUserName != "" {
		addCData(root, "ToUserName", r.ToUserName)
	}
	if r.AgentID != "" {
		addCData(root, "AgentID", r.AgentID)
	}
	addCData(root, "Encrypt", r.Encrypt)
	return doc.WriteToBytes()
}

// EncryptedResponse is the body returned for a replied message.
type EncryptedResponse struct {
	Encrypt      string
	MsgSignature string
	TimeStamp    string
	Nonce        string
}

// Marshal serializes the response body.
func (r *EncryptedResponse) Marshal() ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("xml")
	addCData(root, "Encrypt", r.Encrypt)
	addCData(root, "MsgSignature", r.MsgSignature)
	addText(root, "TimeStamp", r.TimeStamp)
	addCData(root, "Nonce", r.Nonce)
	return doc.WriteToBytes()
}

// ParseEncryptedResponse decodes a response body.
func ParseEncryptedResponse(data []byte) (*EncryptedResponse, error) {
	root, err := readRoot(data)
	if err != nil {
		return nil, err
	}
	resp := &EncryptedResponse{
		Encrypt:      childText(root, "Encrypt"),
		MsgSignature: childText(root, "MsgSignature"),
		TimeStamp:    childText(root, "TimeStamp"),
		Nonce:        childText(root, "Nonce"),
	}
	if resp.Encrypt == "" || strings.TrimSpace(resp.MsgSignature) == "" {
		return nil, fmt.Errorf("%w: Encrypt and MsgSignature are required", ErrUnrecognized)
	}
	return resp, nil
}
