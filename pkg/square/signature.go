package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// VerifySignature checks that body was produced by the platform sharing
// secret. The HMAC-SHA256 is computed over the exact bytes received; callers
// must hand in the raw request body, never a re-serialized object, because
// re-serialization changes whitespace and field order. The header value is
// base64, optionally prefixed "sha256=", and is compared in constant time.
// Any malformed input verifies false rather than erroring.
func VerifySignature(body []byte, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// SignBody produces the signature header value for body, used by tests and
// local replay tooling.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
