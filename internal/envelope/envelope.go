// Package envelope builds and parses the plaintext blob that is encrypted for
// the callback protocol:
//
//	nonce (16 random bytes) | length (uint32, big-endian) | payload | receiver id
//
// The receiver id is not length-prefixed; it is the remainder of the buffer.
// The nonce only varies the ciphertext and is never checked on receipt.
package envelope

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// NonceSize is the length of the random prefix.
	NonceSize = 16

	headerSize = NonceSize + 4
)

// ErrMalformed is returned when a decrypted blob is too short for its declared payload.
var ErrMalformed = errors.New("malformed envelope")

// Pack builds the blob for payload bound to receiverID using crypto/rand for the nonce.
func Pack(payload []byte, receiverID string) ([]byte, error) {
	return PackWithNonce(rand.Reader, payload, receiverID)
}

// PackWithNonce is Pack with an explicit nonce source.
func PackWithNonce(r io.Reader, payload []byte, receiverID string) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload too large: %d bytes", len(payload))
	}

	blob := make([]byte, headerSize, headerSize+len(payload)+len(receiverID))
	if _, err := io.ReadFull(r, blob[:NonceSize]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	binary.BigEndian.PutUint32(blob[NonceSize:headerSize], uint32(len(payload)))
	blob = append(blob, payload...)
	blob = append(blob, receiverID...)
	return blob, nil
}

// Unpack splits a blob into its payload and receiver id.
func Unpack(blob []byte) (payload []byte, receiverID string, err error) {
	if len(blob) < headerSize {
		return nil, "", fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformed, len(blob))
	}

	n := uint64(binary.BigEndian.Uint32(blob[NonceSize:headerSize]))
	if n > uint64(len(blob)-headerSize) {
		return nil, "", fmt.Errorf("%w: declared payload length %d exceeds %d available bytes", ErrMalformed, n, len(blob)-headerSize)
	}

	end := headerSize + int(n)
	return blob[headerSize:end], string(blob[end:]), nil
}
