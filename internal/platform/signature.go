package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// VerifyHMACSHA256 checks a hex encoded HMAC-SHA256 of body in constant time.
// An empty secret disables verification.
func VerifyHMACSHA256(secret string, body []byte, signature string) bool {
	if secret == "" {
		return true
	}
	expected := SignHMACSHA256(secret, body)
	got := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(got)))
}

// SignHMACSHA256 returns the hex encoded HMAC-SHA256 of body.
func SignHMACSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyToken compares a shared token in constant time. An empty secret disables verification.
func VerifyToken(secret, token string) bool {
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}
