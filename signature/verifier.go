package signature

import "crypto/hmac"

// Verify reports whether sig matches the expected HMAC-SHA256 signature for
// the raw body under the given secret. The comparison is constant-time.
func Verify(body []byte, secret string, sig string) bool {
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}
