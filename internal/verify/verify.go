package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

// Verifier authenticates a webhook delivery from its raw body bytes and
// headers. Implementations must operate on the unparsed bytes: re-serializing
// a parsed payload can change its byte content and invalidate the signature.
type Verifier interface {
	Verify(rawBody []byte, headers http.Header) bool
}

// HMACSHA256 verifies a hex-encoded HMAC-SHA256 digest supplied in a header.
type HMACSHA256 struct {
	header string
	secret []byte
}

// NewHMACSHA256 creates a verifier for the given signature header. A missing
// secret makes the verifier fail closed: every delivery is rejected.
func NewHMACSHA256(header string, secret []byte) *HMACSHA256 {
	return &HMACSHA256{
		header: header,
		secret: secret,
	}
}

func (v *HMACSHA256) Verify(rawBody []byte, headers http.Header) bool {
	if len(v.secret) == 0 {
		return false
	}

	supplied, err := hex.DecodeString(headers.Get(v.header))
	if err != nil || len(supplied) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)

	return hmac.Equal(mac.Sum(nil), supplied)
}

// SharedToken verifies an opaque shared secret supplied in a header.
type SharedToken struct {
	header string
	token  string
}

// NewSharedToken creates a verifier for the given auth header. A missing
// configured token makes the verifier fail closed.
func NewSharedToken(header string, token string) *SharedToken {
	return &SharedToken{
		header: header,
		token:  token,
	}
}

func (v *SharedToken) Verify(_ []byte, headers http.Header) bool {
	if v.token == "" {
		return false
	}

	supplied := headers.Get(v.header)

	return subtle.ConstantTimeCompare([]byte(supplied), []byte(v.token)) == 1
}

// Sign computes the hex HMAC-SHA256 digest of body with secret. Used by the
// simulation endpoints and tests to produce valid deliveries.
func Sign(body []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}
