package rpcmanager

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// newNonce returns a fresh base64-encoded 32-byte nonce for one connection's
// challenge. The key itself is never transmitted; only the HMAC of the nonce
// crosses the wire.
func newNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func signNonce(key []byte, nonce string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyNonce(key []byte, nonce, candidate string) bool {
	want, err := hex.DecodeString(signNonce(key, nonce))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(candidate)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(want, got) == 1
}
