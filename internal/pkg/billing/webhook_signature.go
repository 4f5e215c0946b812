package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// VerifyWebhookSignature checks a standard-webhooks style signature: the
// secret (optionally prefixed "whsec_") keys an HMAC-SHA256 over
// "id.timestamp.body", and the header carries one or more space-separated
// "v1,<base64>" entries.
func VerifyWebhookSignature(payload []byte, webhookID, timestamp, signatureHeader, webhookSecret string) bool {
	sigHeader := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sigHeader == "" || secret == "" || webhookID == "" || timestamp == "" {
		return false
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		// Secrets configured as raw strings instead of base64.
		key = []byte(secret)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(webhookID + "." + timestamp + "."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(sigHeader) {
		sig := entry
		if idx := strings.Index(entry, ","); idx >= 0 {
			if entry[:idx] != "v1" {
				continue
			}
			sig = entry[idx+1:]
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}
