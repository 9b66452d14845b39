package security

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/crc32"
)

// ErrSignature: the webhook transmission failed verification. Fail closed.
var ErrSignature = errors.New("webhook signature verification failed")

// Transmission carries the provider's signature headers for one webhook
// delivery.
type Transmission struct {
	ID        string // paypal-transmission-id
	Timestamp string // paypal-transmission-time
	Signature string // paypal-transmission-sig, base64
	AuthAlgo  string // paypal-auth-algo
}

type WebhookVerifier interface {
	Verify(t Transmission, body []byte) error
}

// ---- Implementation ----

// rsaVerifier checks the provider's RSA-SHA256 signature over
// transmissionID|timestamp|webhookID|crc32(body).
type rsaVerifier struct {
	webhookID string
	rsaPub    *rsa.PublicKey
}

func NewWebhookVerifier(sm *SigningMaterial) (WebhookVerifier, error) {
	if sm.RSAPub == nil {
		return nil, errors.New("rsa public key required")
	}
	if sm.WebhookID == "" {
		return nil, errors.New("webhook id required")
	}
	return &rsaVerifier{webhookID: sm.WebhookID, rsaPub: sm.RSAPub}, nil
}

func (v *rsaVerifier) Verify(t Transmission, body []byte) error {
	if t.ID == "" || t.Timestamp == "" || t.Signature == "" {
		return fmt.Errorf("%w: missing transmission headers", ErrSignature)
	}
	if t.AuthAlgo != "" && t.AuthAlgo != "SHA256withRSA" {
		return fmt.Errorf("%w: unsupported auth algo %q", ErrSignature, t.AuthAlgo)
	}

	sig, err := base64.StdEncoding.DecodeString(t.Signature)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrSignature)
	}

	signed := SignedPayload(t.ID, t.Timestamp, v.webhookID, body)
	sum := sha256.Sum256(signed)
	if err := rsa.VerifyPKCS1v15(v.rsaPub, crypto.SHA256, sum[:], sig); err != nil {
		return fmt.Errorf("%w: rsa verify: %v", ErrSignature, err)
	}
	return nil
}

// SignedPayload builds the exact byte string the provider signs.
func SignedPayload(transmissionID, timestamp, webhookID string, body []byte) []byte {
	crc := crc32.ChecksumIEEE(body)
	return []byte(fmt.Sprintf("%s|%s|%s|%d", transmissionID, timestamp, webhookID, crc))
}
