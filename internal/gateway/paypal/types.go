package paypal

import "encoding/json"

// Wire shapes for the provider's v2 checkout API. Amount values are decimal
// strings per the provider's contract.

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type amountBreakdown struct {
	ItemTotal amount `json:"item_total"`
	TaxTotal  amount `json:"tax_total"`
	Shipping  amount `json:"shipping"`
	Discount  amount `json:"discount"`
}

type purchaseAmount struct {
	CurrencyCode string          `json:"currency_code"`
	Value        string          `json:"value"`
	Breakdown    amountBreakdown `json:"breakdown"`
}

type wireItem struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity"`
	UnitAmount  amount `json:"unit_amount"`
}

type wireAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

type shipping struct {
	Name struct {
		FullName string `json:"full_name"`
	} `json:"name"`
	Address wireAddress `json:"address"`
}

type purchaseUnit struct {
	ReferenceID string         `json:"reference_id"`
	Description string         `json:"description,omitempty"`
	CustomID    string         `json:"custom_id"`
	Amount      purchaseAmount `json:"amount"`
	Items       []wireItem     `json:"items"`
	Shipping    *shipping      `json:"shipping,omitempty"`
}

type applicationContext struct {
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
	BrandName          string `json:"brand_name"`
	LandingPage        string `json:"landing_page"`
	UserAction         string `json:"user_action"`
	ShippingPreference string `json:"shipping_preference"`
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	ApplicationContext applicationContext `json:"application_context"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type createOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount amount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
	// token endpoint uses a different error shape
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CreatedOrder is the result of a successful order creation.
type CreatedOrder struct {
	ID         string
	Status     string
	ApproveURL string // buyer redirect target
}

// ProviderOrder is a read-only snapshot of the provider's order state.
type ProviderOrder struct {
	ID     string
	Status string
	Raw    json.RawMessage
}
