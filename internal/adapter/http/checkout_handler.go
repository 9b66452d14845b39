package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "checkout-api/internal/entity"
	"checkout-api/internal/gateway/paypal"
	"checkout-api/internal/logging"
	"checkout-api/internal/usecase"
)

type CheckoutHandler struct {
	start   *usecase.StartCheckout
	capture *usecase.CapturePayment
	gw      usecase.PaymentGateway
}

func NewCheckoutHandler(start *usecase.StartCheckout, capture *usecase.CapturePayment, gw usecase.PaymentGateway) *CheckoutHandler {
	return &CheckoutHandler{start: start, capture: capture, gw: gw}
}

type customerReq struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

type addressReq struct {
	Line1       string `json:"line1" binding:"required"`
	Line2       string `json:"line2"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PostalCode  string `json:"postal_code" binding:"required"`
	CountryCode string `json:"country_code" binding:"required,len=2"`
}

type itemReq struct {
	ProductID      string `json:"product_id" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	Quantity       int    `json:"quantity" binding:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" binding:"min=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
}

type checkoutReq struct {
	OrderID         string      `json:"order_id" binding:"required"`
	Customer        customerReq `json:"customer" binding:"required"`
	Items           []itemReq   `json:"items" binding:"required,dive"`
	ShippingAddress addressReq  `json:"shipping_address" binding:"required"`
	SubtotalCents   int64       `json:"subtotal_cents" binding:"required,gt=0"`
	TaxCents        int64       `json:"tax_cents" binding:"min=0"`
	ShippingCents   int64       `json:"shipping_cents" binding:"min=0"`
	DiscountCents   int64       `json:"discount_cents" binding:"min=0"`
	TotalCents      int64       `json:"total_cents" binding:"required,gt=0"`
	Currency        string      `json:"currency" binding:"required,len=3"`
}

type checkoutResp struct {
	Success         bool      `json:"success"`
	OrderID         string    `json:"order_id"`
	ProviderOrderID string    `json:"paypal_order_id,omitempty"`
	Status          string    `json:"status"`
	RedirectURL     string    `json:"redirect_url,omitempty"`
	Message         string    `json:"message"`
	ErrorCode       string    `json:"error_code,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

type captureReq struct {
	OrderID         string `json:"order_id" binding:"required"`
	ProviderOrderID string `json:"paypal_order_id"`
}

type captureResp struct {
	Success         bool      `json:"success"`
	ProviderOrderID string    `json:"paypal_order_id"`
	CaptureID       string    `json:"capture_id,omitempty"`
	Status          string    `json:"status"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency,omitempty"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

// ProcessCheckout handler: translate to use case input
func (h *CheckoutHandler) ProcessCheckout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	out, err := h.start.Execute(ctx, toOrder(req))
	if err != nil {
		writeError(c, req.OrderID, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResp{
		Success:         true,
		OrderID:         req.OrderID,
		ProviderOrderID: out.ProviderOrderID,
		Status:          out.Status,
		RedirectURL:     out.ApproveURL,
		Message:         "provider order created",
		Timestamp:       time.Now().UTC(),
	})
}

func (h *CheckoutHandler) CapturePayment(c *gin.Context) {
	var req captureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	res, err := h.capture.Execute(ctx, req.OrderID, req.ProviderOrderID)
	if err != nil {
		writeError(c, req.OrderID, err)
		return
	}

	c.JSON(http.StatusOK, captureResp{
		Success:         true,
		ProviderOrderID: res.ProviderOrderID,
		CaptureID:       res.CaptureID,
		Status:          res.Status,
		AmountCents:     res.Amount.Cents,
		Currency:        res.Amount.Currency,
		Message:         "payment captured",
		Timestamp:       res.Timestamp,
	})
}

// GetOrder relays the provider's order snapshot.
func (h *CheckoutHandler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	snap, err := h.gw.GetOrder(ctx, id)
	if err != nil {
		writeError(c, id, err)
		return
	}
	c.Data(http.StatusOK, "application/json", snap.Raw)
}

func toOrder(req checkoutReq) *domain.Order {
	items := make([]domain.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.Item{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   domain.Money{Cents: it.UnitPriceCents, Currency: it.Currency},
		})
	}
	return &domain.Order{
		ID: req.OrderID,
		Customer: domain.Customer{
			Email:     req.Customer.Email,
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Phone:     req.Customer.Phone,
		},
		Items: items,
		ShippingAddress: domain.Address{
			Line1:       req.ShippingAddress.Line1,
			Line2:       req.ShippingAddress.Line2,
			City:        req.ShippingAddress.City,
			State:       req.ShippingAddress.State,
			PostalCode:  req.ShippingAddress.PostalCode,
			CountryCode: req.ShippingAddress.CountryCode,
		},
		Amounts: domain.Amounts{
			Subtotal: req.SubtotalCents,
			Tax:      req.TaxCents,
			Shipping: req.ShippingCents,
			Discount: req.DiscountCents,
			Total:    req.TotalCents,
		},
		Currency: req.Currency,
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Provider-side
// failures surface as 502/503; ambiguous outcomes tell the caller to
// re-check before retrying.
func writeError(c *gin.Context, orderID string, err error) {
	log := logging.From(c)

	var perr *paypal.ProviderError
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "detail": err.Error()})
	case errors.Is(err, usecase.ErrNotFound), errors.Is(err, paypal.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, usecase.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "detail": err.Error()})
	case errors.Is(err, usecase.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_request"})
	case errors.Is(err, paypal.ErrAmbiguousOutcome):
		log.Error("ambiguous provider outcome", "order_id", orderID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  "ambiguous_outcome",
			"detail": "provider call outcome unknown; re-check the order status before retrying",
		})
	case errors.Is(err, paypal.ErrAuth):
		log.Error("provider auth failure", "order_id", orderID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_auth_error"})
	case errors.Is(err, paypal.ErrNetwork):
		log.Error("provider unreachable", "order_id", orderID, "err", err)
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "provider_unavailable"})
	case errors.As(err, &perr):
		log.Error("provider error", "order_id", orderID, "status", perr.StatusCode, "code", perr.Code, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_error", "code": perr.Code})
	default:
		log.Error("internal error", "order_id", orderID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
