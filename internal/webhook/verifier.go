package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"
)

// Verifier checks Mailgun webhook signatures. Mailgun signs each event with
// HMAC-SHA256 over the concatenated timestamp and token using the account
// signing key.
type Verifier struct {
	signingKey string
	logger     *zap.Logger
}

// NewVerifier creates a new webhook verifier
func NewVerifier(signingKey string, logger *zap.Logger) *Verifier {
	return &Verifier{
		signingKey: signingKey,
		logger:     logger,
	}
}

// VerifySignature verifies the webhook signature fields
func (v *Verifier) VerifySignature(timestamp, token, signature string) bool {
	if v.signingKey == "" {
		// Signature verification disabled when no signing key configured
		return true
	}

	mac := hmac.New(sha256.New, []byte(v.signingKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(token))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
