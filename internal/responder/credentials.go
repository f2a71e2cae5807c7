package responder

import (
	"encoding/base64"
	"fmt"

	"github.com/mattjoyce/wxgate/internal/crypt"
	"github.com/mattjoyce/wxgate/internal/envelope"
	"github.com/mattjoyce/wxgate/internal/message"
	"github.com/mattjoyce/wxgate/internal/signature"
)

// Credentials are the per-endpoint secrets. They are fixed at startup and
// shared read-only by all requests.
type Credentials struct {
	Token      string
	ReceiverID string
	Key        crypt.Key
}

// NewCredentials validates and builds Credentials from configured values.
func NewCredentials(token, receiverID, encodingAESKey string) (Credentials, error) {
	if token == "" {
		return Credentials{}, fmt.Errorf("token is required")
	}
	if receiverID == "" {
		return Credentials{}, fmt.Errorf("receiver id is required")
	}
	key, err := crypt.ParseKey(encodingAESKey)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Token: token, ReceiverID: receiverID, Key: key}, nil
}

// Open decrypts a base64 ciphertext, unpacks the envelope and checks the
// receiver id. It does not check signatures; callers verify those first.
func (c Credentials) Open(encrypted string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not base64", crypt.ErrDecryption)
	}
	blob, err := crypt.Decrypt(raw, c.Key)
	if err != nil {
		return nil, err
	}
	payload, receiverID, err := envelope.Unpack(blob)
	if err != nil {
		return nil, err
	}
	if receiverID != c.ReceiverID {
		return nil, fmt.Errorf("%w: receiver id mismatch", ErrAuthentication)
	}
	return payload, nil
}

// Seal packs, encrypts and signs payload under the given timestamp and nonce.
func (c Credentials) Seal(payload []byte, timestamp, nonce string) (*message.EncryptedResponse, error) {
	blob, err := envelope.Pack(payload, c.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("pack envelope: %w", err)
	}
	ct, err := crypt.Encrypt(blob, c.Key)
	if err != nil {
		return nil, fmt.Errorf("encrypt envelope: %w", err)
	}
	encrypted := base64.StdEncoding.EncodeToString(ct)
	return &message.EncryptedResponse{
		Encrypt:      encrypted,
		MsgSignature: signature.Sign(c.Token, timestamp, nonce, encrypted),
		TimeStamp:    timestamp,
		Nonce:        nonce,
	}, nil
}
