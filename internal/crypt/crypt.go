// Package crypt implements the symmetric cipher used by the callback protocol.
//
// Messages are encrypted with AES-256-CBC. The IV is the first 16 bytes of
// the key, so it repeats for every message under that key; the random nonce
// the envelope codec prepends is what varies the ciphertext.
//
// Plaintext is padded PKCS#7-style to a 32-byte width (not the 16-byte AES
// block), always adding at least one byte of padding.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// EncodedKeyLen is the length of the configured key string (base64 without its trailing '=').
	EncodedKeyLen = 43

	// PadWidth is the padding width mandated by the platform.
	PadWidth = 32
)

// ErrDecryption is returned for ciphertext that cannot be decrypted to a
// well-padded plaintext. Callers must not expose its detail externally.
var ErrDecryption = errors.New("decryption failed")

// Key is a 32-byte AES-256 key.
type Key [KeySize]byte

// ParseKey decodes the 43-character EncodingAESKey into a Key.
func ParseKey(encoded string) (Key, error) {
	var k Key
	if len(encoded) != EncodedKeyLen {
		return k, fmt.Errorf("encoding_aes_key must be %d characters, got %d", EncodedKeyLen, len(encoded))
	}
	raw, err := base64.StdEncoding.DecodeString(encoded + "=")
	if err != nil {
		return k, fmt.Errorf("encoding_aes_key is not valid base64: %w", err)
	}
	if len(raw) != KeySize {
		return k, fmt.Errorf("encoding_aes_key decodes to %d bytes, want %d", len(raw), KeySize)
	}
	copy(k[:], raw)
	return k, nil
}

// Encode returns the 43-character form of the key.
func (k Key) Encode() string {
	return base64.StdEncoding.EncodeToString(k[:])[:EncodedKeyLen]
}

// iv returns the protocol's fixed IV.
func (k Key) iv() []byte {
	return k[:aes.BlockSize]
}

// Encrypt pads and encrypts plaintext.
func Encrypt(plaintext []byte, key Key) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := Pad(plaintext)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, key.iv()).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt decrypts ciphertext and strips its padding.
func Decrypt(ciphertext []byte, key Key) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d", ErrDecryption, len(ciphertext), aes.BlockSize)
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, key.iv()).CryptBlocks(out, ciphertext)
	return Unpad(out)
}

// Pad appends 1..PadWidth bytes, each holding the pad length.
func Pad(data []byte) []byte {
	n := PadWidth - len(data)%PadWidth
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

// Unpad removes padding written by Pad. The pad value must lie in [1, PadWidth]
// and fit inside data.
func Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}
	n := int(data[len(data)-1])
	if n < 1 || n > PadWidth || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
	}
	return data[:len(data)-n], nil
}
