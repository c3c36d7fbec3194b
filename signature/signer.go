// Package signature provides HMAC-SHA256 signing and verification for
// inbound webhook payloads, plus credential generation.
//
// The signature covers the raw request body bytes exactly as received, never
// a re-serialized form, so senders and verifiers cannot disagree on JSON
// canonicalization. There is no timestamp or nonce in the signed content;
// replay protection is an accepted limitation of the scheme.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign generates the HMAC-SHA256 signature for the given raw body.
// Returns a versioned signature in the format "v1=<hex>".
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}
