package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw notification body.
const SignatureHeader = "x-paystack-signature"

// Sign returns the lowercase hex HMAC-SHA512 of body keyed by secret.
func Sign(body, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether provided is the signature Paystack would
// compute over rawBody. It must be given the exact bytes received; a parsed
// and re-encoded body will not match. Comparison is constant time.
func VerifySignature(rawBody []byte, provided string, secret []byte) bool {
	provided = strings.TrimSpace(provided)
	if provided == "" || len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, secret)
	mac.Write(rawBody)
	return hmac.Equal(got, mac.Sum(nil))
}
