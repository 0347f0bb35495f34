package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// VerifyHMAC checks an HMAC-SHA256 signature over the raw body using the
// shared secret. The "sha256=" prefix is optional.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(strings.TrimPrefix(provided, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), b)
}

// SignHMAC returns the X-Signature header value for body.
func SignHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
