package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// SignHMAC returns the X-Signature value for body: "sha256=" followed by the
// lowercase hex HMAC-SHA256 under secret.
func SignHMAC(secret string, body []byte) string {
	return signaturePrefix + hex.EncodeToString(sum(secret, body))
}

// VerifyHMAC lets callback receivers check X-Signature against the run's
// callback secret. The "sha256=" prefix is optional.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(strings.TrimPrefix(provided, signaturePrefix))
	if err != nil {
		return false
	}
	return hmac.Equal(sum(secret, body), b)
}

func sum(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
