package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"checkout-api/configs"
	domain "checkout-api/internal/entity"
	"checkout-api/internal/logging"
)

// Client is the only component that talks to the payment provider and the
// only holder of provider credentials.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	brandName    string
	returnURL    string
	cancelURL    string

	hc  *http.Client
	log *slog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option           { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func NewClient(cfg configs.Config, opts ...Option) *Client {
	c := &Client{
		baseURL:      cfg.PayPalBaseURL(),
		clientID:     cfg.PayPal.ClientID,
		clientSecret: cfg.PayPal.ClientSecret,
		brandName:    cfg.PayPal.BrandName,
		returnURL:    cfg.PayPal.ReturnURL,
		cancelURL:    cfg.PayPal.CancelURL,
		hc:           &http.Client{Timeout: cfg.PayPal.CallTimeout},
		log:          logging.New("paypal"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOrder maps the canonical Order into the provider's order-create
// representation and returns the provider order id plus the buyer approval
// link.
func (c *Client) CreateOrder(ctx context.Context, o *domain.Order) (CreatedOrder, error) {
	payload := c.buildCreateOrder(o)
	status, body, err := c.doAuthorized(ctx, "create_order", http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return CreatedOrder{}, err
	}
	if status != http.StatusCreated {
		providerRequests.WithLabelValues("create_order", "provider_error").Inc()
		return CreatedOrder{}, mapProviderError(status, body)
	}
	providerRequests.WithLabelValues("create_order", "ok").Inc()

	var resp createOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == "" {
		return CreatedOrder{}, &ProviderError{StatusCode: status, Code: "MALFORMED_RESPONSE", Message: "order id missing from create response"}
	}
	out := CreatedOrder{ID: resp.ID, Status: resp.Status}
	for _, l := range resp.Links {
		if l.Rel == "approve" {
			out.ApproveURL = l.Href
		}
	}
	c.log.Info("provider order created", "order_id", o.ID, "provider_order_id", resp.ID)
	return out, nil
}

// GetOrder is a read-only lookup of the provider's order state.
func (c *Client) GetOrder(ctx context.Context, providerOrderID string) (ProviderOrder, error) {
	status, body, err := c.doAuthorized(ctx, "get_order", http.MethodGet, "/v2/checkout/orders/"+providerOrderID, nil)
	if err != nil {
		return ProviderOrder{}, err
	}
	switch status {
	case http.StatusOK:
		providerRequests.WithLabelValues("get_order", "ok").Inc()
		var resp createOrderResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return ProviderOrder{}, &ProviderError{StatusCode: status, Code: "MALFORMED_RESPONSE", Message: "unparseable order snapshot"}
		}
		return ProviderOrder{ID: resp.ID, Status: resp.Status, Raw: json.RawMessage(body)}, nil
	case http.StatusNotFound:
		providerRequests.WithLabelValues("get_order", "not_found").Inc()
		return ProviderOrder{}, fmt.Errorf("%w: %s", ErrNotFound, providerOrderID)
	default:
		providerRequests.WithLabelValues("get_order", "provider_error").Inc()
		return ProviderOrder{}, mapProviderError(status, body)
	}
}

// CaptureOrder collects previously authorized funds. An already-completed
// capture is reported as ErrAlreadyCaptured, distinct from other provider
// errors, so callers can treat it as success.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (domain.CaptureResult, error) {
	status, body, err := c.doAuthorized(ctx, "capture_order", http.MethodPost,
		"/v2/checkout/orders/"+providerOrderID+"/capture", struct{}{})
	if err != nil {
		return domain.CaptureResult{}, err
	}
	if status == http.StatusCreated || status == http.StatusOK {
		providerRequests.WithLabelValues("capture_order", "ok").Inc()
		return parseCapture(providerOrderID, status, body)
	}

	perr := mapProviderError(status, body)
	switch status {
	case http.StatusNotFound:
		providerRequests.WithLabelValues("capture_order", "not_found").Inc()
		return domain.CaptureResult{}, fmt.Errorf("%w: %s", ErrNotFound, providerOrderID)
	case http.StatusUnprocessableEntity:
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		for _, d := range er.Details {
			switch d.Issue {
			case "ORDER_ALREADY_CAPTURED":
				providerRequests.WithLabelValues("capture_order", "already_captured").Inc()
				return domain.CaptureResult{}, fmt.Errorf("%w: %s", ErrAlreadyCaptured, providerOrderID)
			case "ORDER_NOT_APPROVED":
				providerRequests.WithLabelValues("capture_order", "not_approved").Inc()
				return domain.CaptureResult{}, fmt.Errorf("%w: %s", ErrOrderNotApproved, providerOrderID)
			}
		}
	}
	providerRequests.WithLabelValues("capture_order", "provider_error").Inc()
	return domain.CaptureResult{}, perr
}

func parseCapture(providerOrderID string, status int, body []byte) (domain.CaptureResult, error) {
	var resp captureResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.CaptureResult{}, &ProviderError{StatusCode: status, Code: "MALFORMED_RESPONSE", Message: "unparseable capture response"}
	}
	if len(resp.PurchaseUnits) == 0 || len(resp.PurchaseUnits[0].Payments.Captures) == 0 {
		return domain.CaptureResult{}, &ProviderError{StatusCode: status, Code: "MALFORMED_RESPONSE", Message: "capture missing from response"}
	}
	cpt := resp.PurchaseUnits[0].Payments.Captures[0]
	cents, err := ValueToCents(cpt.Amount.Value)
	if err != nil {
		return domain.CaptureResult{}, &ProviderError{StatusCode: status, Code: "MALFORMED_RESPONSE", Message: "bad capture amount: " + cpt.Amount.Value}
	}
	return domain.CaptureResult{
		ProviderOrderID: providerOrderID,
		CaptureID:       cpt.ID,
		Status:          resp.Status,
		Amount:          domain.Money{Cents: cents, Currency: cpt.Amount.CurrencyCode},
		Timestamp:       time.Now().UTC(),
	}, nil
}

// doAuthorized sends an authenticated request, refreshing the bearer token
// transparently on a 401 (single retry). POST timeouts after send map to
// ErrAmbiguousOutcome: the provider may have applied the call.
func (c *Client) doAuthorized(ctx context.Context, op, method, path string, payload any) (int, []byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
	}

	retried := false
	for {
		token, err := c.bearerToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")

		start := time.Now()
		resp, err := c.hc.Do(req)
		providerDuration.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			if method == http.MethodPost && isTimeout(err) {
				providerRequests.WithLabelValues(op, "ambiguous").Inc()
				return 0, nil, fmt.Errorf("%w: %s: %v", ErrAmbiguousOutcome, op, err)
			}
			providerRequests.WithLabelValues(op, "network_error").Inc()
			return 0, nil, fmt.Errorf("%w: %s: %v", ErrNetwork, op, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			providerRequests.WithLabelValues(op, "network_error").Inc()
			return 0, nil, fmt.Errorf("%w: %s: %v", ErrNetwork, op, readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized && !retried {
			retried = true
			c.invalidateToken()
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized {
			providerRequests.WithLabelValues(op, "auth_error").Inc()
			return resp.StatusCode, body, fmt.Errorf("%w: token rejected twice", ErrAuth)
		}
		return resp.StatusCode, body, nil
	}
}

func (c *Client) buildCreateOrder(o *domain.Order) createOrderRequest {
	items := make([]wireItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, wireItem{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    strconv.Itoa(it.Quantity),
			UnitAmount:  amount{CurrencyCode: it.UnitPrice.Currency, Value: centsToValue(it.UnitPrice.Cents)},
		})
	}

	pu := purchaseUnit{
		ReferenceID: o.ID,
		Description: "Order " + o.ID,
		CustomID:    o.ID,
		Amount: purchaseAmount{
			CurrencyCode: o.Currency,
			Value:        centsToValue(o.Amounts.Total),
			Breakdown: amountBreakdown{
				ItemTotal: amount{CurrencyCode: o.Currency, Value: centsToValue(o.Amounts.Subtotal)},
				TaxTotal:  amount{CurrencyCode: o.Currency, Value: centsToValue(o.Amounts.Tax)},
				Shipping:  amount{CurrencyCode: o.Currency, Value: centsToValue(o.Amounts.Shipping)},
				Discount:  amount{CurrencyCode: o.Currency, Value: centsToValue(o.Amounts.Discount)},
			},
		},
		Items: items,
	}
	if o.ShippingAddress.Line1 != "" {
		sh := &shipping{Address: wireAddress{
			AddressLine1: o.ShippingAddress.Line1,
			AddressLine2: o.ShippingAddress.Line2,
			AdminArea2:   o.ShippingAddress.City,
			AdminArea1:   o.ShippingAddress.State,
			PostalCode:   o.ShippingAddress.PostalCode,
			CountryCode:  o.ShippingAddress.CountryCode,
		}}
		sh.Name.FullName = strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
		pu.Shipping = sh
	}

	return createOrderRequest{
		Intent: "CAPTURE",
		ApplicationContext: applicationContext{
			ReturnURL:          c.returnURL,
			CancelURL:          c.cancelURL,
			BrandName:          c.brandName,
			LandingPage:        "LOGIN",
			UserAction:         "PAY_NOW",
			ShippingPreference: "SET_PROVIDED_ADDRESS",
		},
		PurchaseUnits: []purchaseUnit{pu},
	}
}

func mapProviderError(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	msg := er.Message
	if msg == "" && len(er.Details) > 0 {
		msg = er.Details[0].Description
	}
	return &ProviderError{StatusCode: status, Code: er.Name, Message: msg}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// centsToValue renders minor units as the provider's decimal string ("7097" -> "70.97").
func centsToValue(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// ValueToCents parses the provider's decimal string ("70.97" -> 7097) into
// minor units.
func ValueToCents(v string) (int64, error) {
	whole, frac, _ := strings.Cut(v, ".")
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	if frac == "" {
		return w * 100, nil
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	if w < 0 {
		return w*100 - f, nil
	}
	return w*100 + f, nil
}
