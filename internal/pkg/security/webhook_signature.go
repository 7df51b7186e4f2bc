package security

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// VerifyProcessorWebhookSignature checks the hex HMAC signature the payment
// processor sends with every webhook delivery. Headers of the form
// "sha256=<hex>" are accepted alongside a bare hex digest.
func VerifyProcessorWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}
	sig = strings.TrimPrefix(sig, "sha256=")
	sig = strings.TrimPrefix(sig, "sha1=")

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	if verifyHMAC(payload, decodedSig, []byte(secret), sha256.New) {
		return true
	}
	// Fallback for providers still signing with SHA1.
	return verifyHMAC(payload, decodedSig, []byte(secret), sha1.New)
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
