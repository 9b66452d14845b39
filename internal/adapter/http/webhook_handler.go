package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"checkout-api/internal/security"
	"checkout-api/internal/usecase"
)

// WebhookHandler receives provider notifications. Verification happens
// before the payload is parsed; an unverified body is never acted on.
type WebhookHandler struct {
	verifier  security.WebhookVerifier
	reconcile *usecase.Reconcile
}

func NewWebhookHandler(verifier security.WebhookVerifier, reconcile *usecase.Reconcile) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, reconcile: reconcile}
}

type webhookEnvelope struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type webhookResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	t := security.Transmission{
		ID:        c.GetHeader("Paypal-Transmission-Id"),
		Timestamp: c.GetHeader("Paypal-Transmission-Time"),
		Signature: c.GetHeader("Paypal-Transmission-Sig"),
		AuthAlgo:  c.GetHeader("Paypal-Auth-Algo"),
	}
	if err := h.verifier.Verify(t, body); err != nil {
		if errors.Is(err, security.ErrSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature_verification_failed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.ID == "" || env.EventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_event"})
		return
	}

	if err := h.reconcile.Execute(c.Request.Context(), usecase.WebhookEvent{
		EventID:         env.ID,
		EventType:       env.EventType,
		ProviderOrderID: providerOrderID(env),
		Payload:         env.Resource,
		ReceivedAt:      time.Now().UTC(),
	}); err != nil {
		// 500 makes the provider redeliver; the event reservation was
		// released so the retry can take effect.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// providerOrderID extracts the checkout order id the event refers to.
// Order-level events carry it as the resource id; capture-level events
// carry it under supplementary_data.related_ids.
func providerOrderID(env webhookEnvelope) string {
	var res webhookResource
	if err := json.Unmarshal(env.Resource, &res); err != nil {
		return ""
	}
	if id := res.SupplementaryData.RelatedIDs.OrderID; id != "" {
		return id
	}
	return res.ID
}
