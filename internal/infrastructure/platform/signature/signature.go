// Package signature provides the HMAC-SHA256 primitives used to authenticate
// inbound platform webhooks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Sum computes the raw HMAC-SHA256 of body keyed by secret
func Sum(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// Base64 returns the base64-encoded HMAC-SHA256 of body
func Base64(body []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(Sum(body, secret))
}

// Hex returns the lowercase hex HMAC-SHA256 of body
func Hex(body []byte, secret string) string {
	return hex.EncodeToString(Sum(body, secret))
}

// VerifyBase64 checks a base64 signature header in constant time
func VerifyBase64(body []byte, secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}
	return hmac.Equal(Sum(body, secret), got)
}

// VerifyHex checks a hex signature header in constant time. An optional
// "sha256=" prefix is accepted.
func VerifyHex(body []byte, secret, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	if len(header) > 7 && header[:7] == "sha256=" {
		header = header[7:]
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	return hmac.Equal(Sum(body, secret), got)
}

// Equal compares a shared secret in constant time
func Equal(secret, presented string) bool {
	if secret == "" || presented == "" {
		return false
	}
	return hmac.Equal([]byte(secret), []byte(presented))
}

// BodyID derives a stable event id from a body when the platform sends none
func BodyID(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
