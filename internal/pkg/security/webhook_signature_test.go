package security

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyProcessorWebhookSignature(t *testing.T) {
	payload := []byte(`{"event_id":"evt_1"}`)
	secret := "top-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyProcessorWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyProcessorWebhookSignature(payload, "sha256="+validSig, secret) {
		t.Fatalf("expected prefixed signature to validate")
	}

	macSHA1 := hmac.New(sha1.New, []byte(secret))
	macSHA1.Write(payload)
	validSHA1 := hex.EncodeToString(macSHA1.Sum(nil))
	if !VerifyProcessorWebhookSignature(payload, "sha1="+validSHA1, secret) {
		t.Fatalf("expected sha1 fallback signature to validate")
	}

	if VerifyProcessorWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyProcessorWebhookSignature(payload, validSig, "") {
		t.Fatalf("expected empty secret to fail")
	}
	if VerifyProcessorWebhookSignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifyProcessorWebhookSignature(payload, "not-hex!", secret) {
		t.Fatalf("expected non-hex signature to fail")
	}
}
