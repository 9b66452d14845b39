package paypal

import (
	"encoding/json"
	"time"

	domain "checkout-api/internal/entity"
)

// CaptureFromOrderSnapshot extracts the completed capture from a raw order
// snapshot, when one exists. Used to rebuild a CaptureResult after the
// provider reports the order already captured.
func CaptureFromOrderSnapshot(providerOrderID string, raw json.RawMessage) (domain.CaptureResult, bool) {
	var resp captureResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.CaptureResult{}, false
	}
	if len(resp.PurchaseUnits) == 0 || len(resp.PurchaseUnits[0].Payments.Captures) == 0 {
		return domain.CaptureResult{}, false
	}
	cpt := resp.PurchaseUnits[0].Payments.Captures[0]
	cents, err := ValueToCents(cpt.Amount.Value)
	if err != nil {
		return domain.CaptureResult{}, false
	}
	return domain.CaptureResult{
		ProviderOrderID: providerOrderID,
		CaptureID:       cpt.ID,
		Status:          cpt.Status,
		Amount:          domain.Money{Cents: cents, Currency: cpt.Amount.CurrencyCode},
		Timestamp:       time.Now().UTC(),
	}, true
}
