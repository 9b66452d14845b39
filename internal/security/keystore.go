package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"checkout-api/configs"
)

// SigningMaterial pins the provider's webhook signing key. Operators extract
// the public key from the provider's signing cert and configure it as PEM.
type SigningMaterial struct {
	WebhookID string
	RSAPub    *rsa.PublicKey
}

func NewSigningMaterial(c configs.Config) (*SigningMaterial, error) {
	sm, err := LoadSigningMaterial(c)
	return &sm, err
}

func LoadSigningMaterial(c configs.Config) (SigningMaterial, error) {
	if c.Webhook.ID == "" || c.Webhook.RSAPubPEM == "" {
		return SigningMaterial{}, errors.New("missing webhook.id or webhook.rsa_pub_pem")
	}

	pub, err := parseRSAPublicKeyFromPEM([]byte(c.Webhook.RSAPubPEM))
	if err != nil {
		return SigningMaterial{}, fmt.Errorf("parse webhook rsa_pub_pem: %w", err)
	}

	return SigningMaterial{
		WebhookID: c.Webhook.ID,
		RSAPub:    pub,
	}, nil
}

func parseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not rsa public key")
	}
	return pub, nil
}
