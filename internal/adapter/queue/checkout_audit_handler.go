package queue

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"checkout-api/internal/logging"
	"checkout-api/internal/usecase"
)

var auditProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_audit_jobs_total",
		Help: "Deferred checkout audit jobs processed",
	},
	[]string{"action"},
)

// CheckoutAuditHandler drains the deferred audit queue and writes the
// durable processing trail for each checkout.
type CheckoutAuditHandler struct {
	log *slog.Logger
}

func NewCheckoutAuditHandler() *CheckoutAuditHandler {
	return &CheckoutAuditHandler{log: logging.New("checkout-audit")}
}

// HandleAudit is intended to be used with the JSON adapter
// (queue.JSONHandler[usecase.CheckoutAuditMsg]).
func (h *CheckoutAuditHandler) HandleAudit(ctx context.Context, msg usecase.CheckoutAuditMsg) error {
	h.log.InfoContext(ctx, "order processing",
		"order_id", msg.OrderID,
		"provider_order_id", msg.ProviderOrderID,
		"action", msg.Action,
		"at", msg.At,
	)
	auditProcessed.WithLabelValues(msg.Action).Inc()
	return nil
}
