package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signPayload(secret []byte, id, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"order.paid"}`)
	rawKey := []byte("top-secret-key-material")
	secret := "whsec_" + base64.StdEncoding.EncodeToString(rawKey)

	sig := signPayload(rawKey, "evt_1", "1714000000", payload)

	if !VerifyWebhookSignature(payload, "evt_1", "1714000000", "v1,"+sig, secret) {
		t.Fatalf("expected signature to validate")
	}
	// Multiple space-separated entries, ours not first.
	if !VerifyWebhookSignature(payload, "evt_1", "1714000000", "v1,AAAA v1,"+sig, secret) {
		t.Fatalf("expected signature list to validate")
	}
	if VerifyWebhookSignature(payload, "evt_2", "1714000000", "v1,"+sig, secret) {
		t.Fatalf("expected mismatched id to fail")
	}
	if VerifyWebhookSignature([]byte(`{}`), "evt_1", "1714000000", "v1,"+sig, secret) {
		t.Fatalf("expected tampered payload to fail")
	}
	if VerifyWebhookSignature(payload, "evt_1", "1714000000", "", secret) {
		t.Fatalf("expected missing signature to fail")
	}
	if VerifyWebhookSignature(payload, "evt_1", "1714000000", "v1,"+sig, "") {
		t.Fatalf("expected missing secret to fail")
	}
}

func TestVerifyWebhookSignatureRawSecret(t *testing.T) {
	// Secrets configured as plain strings (no whsec_ base64 envelope) must
	// still verify.
	payload := []byte(`{"type":"order.paid"}`)
	secret := "not base64 at all!!"

	sig := signPayload([]byte(secret), "evt_9", "1714000001", payload)
	if !VerifyWebhookSignature(payload, "evt_9", "1714000001", "v1,"+sig, secret) {
		t.Fatalf("expected raw-string secret to validate")
	}
}
