package security

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyAndVerifier(t *testing.T) (*rsa.PrivateKey, WebhookVerifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v, err := NewWebhookVerifier(&SigningMaterial{WebhookID: "WH-TEST-1", RSAPub: &key.PublicKey})
	require.NoError(t, err)
	return key, v
}

func sign(t *testing.T, key *rsa.PrivateKey, transmissionID, timestamp, webhookID string, body []byte) string {
	t.Helper()
	sum := sha256.Sum256(SignedPayload(transmissionID, timestamp, webhookID, body))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestVerify_ValidSignature(t *testing.T) {
	key, v := testKeyAndVerifier(t)
	body := []byte(`{"id":"WH-EVT-1","event_type":"CHECKOUT.ORDER.APPROVED"}`)
	tr := Transmission{
		ID:        "trans-1",
		Timestamp: "2026-01-02T03:04:05Z",
		Signature: sign(t, key, "trans-1", "2026-01-02T03:04:05Z", "WH-TEST-1", body),
		AuthAlgo:  "SHA256withRSA",
	}
	assert.NoError(t, v.Verify(tr, body))
}

func TestVerify_TamperedBodyRejected(t *testing.T) {
	key, v := testKeyAndVerifier(t)
	body := []byte(`{"id":"WH-EVT-1"}`)
	tr := Transmission{
		ID:        "trans-1",
		Timestamp: "2026-01-02T03:04:05Z",
		Signature: sign(t, key, "trans-1", "2026-01-02T03:04:05Z", "WH-TEST-1", body),
	}
	err := v.Verify(tr, []byte(`{"id":"WH-EVT-1","status":"COMPLETED"}`))
	assert.ErrorIs(t, err, ErrSignature)
}

func TestVerify_WrongWebhookIDRejected(t *testing.T) {
	key, v := testKeyAndVerifier(t)
	body := []byte(`{}`)
	tr := Transmission{
		ID:        "trans-1",
		Timestamp: "2026-01-02T03:04:05Z",
		Signature: sign(t, key, "trans-1", "2026-01-02T03:04:05Z", "WH-OTHER", body),
	}
	assert.ErrorIs(t, v.Verify(tr, body), ErrSignature)
}

func TestVerify_MissingHeadersRejected(t *testing.T) {
	_, v := testKeyAndVerifier(t)
	cases := []Transmission{
		{},
		{ID: "trans-1"},
		{ID: "trans-1", Timestamp: "2026-01-02T03:04:05Z"},
		{Timestamp: "2026-01-02T03:04:05Z", Signature: "c2ln"},
	}
	for _, tr := range cases {
		assert.ErrorIs(t, v.Verify(tr, []byte(`{}`)), ErrSignature)
	}
}

func TestVerify_UnsupportedAlgoRejected(t *testing.T) {
	key, v := testKeyAndVerifier(t)
	body := []byte(`{}`)
	tr := Transmission{
		ID:        "trans-1",
		Timestamp: "2026-01-02T03:04:05Z",
		Signature: sign(t, key, "trans-1", "2026-01-02T03:04:05Z", "WH-TEST-1", body),
		AuthAlgo:  "SHA1withRSA",
	}
	assert.ErrorIs(t, v.Verify(tr, body), ErrSignature)
}

func TestVerify_GarbageSignatureEncoding(t *testing.T) {
	_, v := testKeyAndVerifier(t)
	tr := Transmission{
		ID:        "trans-1",
		Timestamp: "2026-01-02T03:04:05Z",
		Signature: "not base64!!",
	}
	assert.ErrorIs(t, v.Verify(tr, []byte(`{}`)), ErrSignature)
}
