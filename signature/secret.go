package signature

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret creates a cryptographically random HMAC shared secret.
// Format: "whsec_" + 32 bytes hex = 70 characters total.
func GenerateSecret() string {
	return "whsec_" + randomHex(32)
}

// GenerateAPIKey creates a cryptographically random bearer API key.
// Format: "whk_" + 32 bytes hex = 68 characters total.
func GenerateAPIKey() string {
	return "whk_" + randomHex(32)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("intake: failed to generate random credential: " + err.Error())
	}
	return hex.EncodeToString(b)
}
