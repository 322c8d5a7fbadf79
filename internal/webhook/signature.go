package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
)

// SignatureHeader is the header Paystack sends the body HMAC in.
const SignatureHeader = "x-paystack-signature"

var (
	ErrNoSignature      = errors.New("no signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ComputeSignature returns the hex-encoded HMAC-SHA512 of body under secret.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the header-supplied signature against the HMAC of
// the raw body bytes. body must be the exact bytes received, prior to any
// JSON parsing: re-serialization is not guaranteed byte-identical.
func VerifySignature(secret string, body []byte, signature string) error {
	if signature == "" {
		return ErrNoSignature
	}
	expected := ComputeSignature(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
