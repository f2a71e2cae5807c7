// Package signature computes and verifies callback message signatures.
//
// A signature is the lowercase hex SHA-1 digest of token, timestamp, nonce and
// the base64 ciphertext, sorted byte-wise ascending and concatenated with no
// separator. The same scheme signs inbound requests and outbound replies.
package signature

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign returns the signature over the four values.
func Sign(token, timestamp, nonce, ciphertext string) string {
	parts := []string{token, timestamp, nonce, ciphertext}
	sort.Strings(parts)

	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether candidate is the signature Sign would produce.
// Comparison is constant-time; an empty candidate never verifies.
func Verify(candidate, token, timestamp, nonce, ciphertext string) bool {
	if candidate == "" {
		return false
	}
	expected := Sign(token, timestamp, nonce, ciphertext)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
