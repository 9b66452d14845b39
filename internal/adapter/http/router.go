package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkout-api/internal/adapter/http/middleware"
)

func NewRouter(h *CheckoutHandler, wh *WebhookHandler, th *TokenHandler, authz *middleware.Authz, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())
	r.Use(middleware.Logging(log))

	r.GET("/checkout/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "checkout-api"})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	// Provider callbacks authenticate with their own signature scheme,
	// not bearer tokens. The paypal path is an alias kept for callers
	// configured against the provider-specific URL.
	r.POST("/checkout/webhook", wh.Handle)
	r.POST("/checkout/paypal/webhook", wh.Handle)

	co := r.Group("/checkout")
	{
		co.POST("/process-paypal", authz.Require("checkout.write"), h.ProcessCheckout)
		co.POST("/capture-payment", authz.Require("checkout.write"), h.CapturePayment)
		co.GET("/order/:id", authz.Require("checkout.read"), h.GetOrder)
	}

	return r
}
