package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusApproved Status = "APPROVED"
	StatusCaptured Status = "CAPTURED"
	StatusDenied   Status = "DENIED"
	StatusFailed   Status = "FAILED"
)

// ErrValidation is the root of all local validation failures. Orders that
// fail validation never reach the provider.
var ErrValidation = errors.New("validation failed")

// transitions holds the allowed order lifecycle moves. Captured, Denied and
// Failed are terminal.
var transitions = map[Status][]Status{
	StatusCreated:  {StatusApproved, StatusDenied, StatusFailed},
	StatusApproved: {StatusCaptured, StatusDenied, StatusFailed},
}

func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	return s == StatusCaptured || s == StatusDenied || s == StatusFailed
}

// Money is an amount in minor units.
type Money struct {
	Cents    int64
	Currency string
}

type Customer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

type Address struct {
	Line1       string
	Line2       string
	City        string
	State       string
	PostalCode  string
	CountryCode string
}

type Item struct {
	ProductID   string
	Name        string
	Description string
	Quantity    int
	UnitPrice   Money
}

// Amounts carries the order totals in minor units of Order.Currency.
type Amounts struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Discount int64
	Total    int64
}

type Order struct {
	ID              string // caller-assigned, unique
	Customer        Customer
	Items           []Item
	ShippingAddress Address
	Amounts         Amounts
	Currency        string // ISO 4217
	Status          Status
	ProviderOrderID string // empty until the provider order exists
}

func (o *Order) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: order id required", ErrValidation)
	}
	if len(o.Currency) != 3 {
		return fmt.Errorf("%w: currency must be ISO 4217, got %q", ErrValidation, o.Currency)
	}
	if o.Customer.Email == "" {
		return fmt.Errorf("%w: customer email required", ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrValidation)
	}
	for i, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrValidation, i)
		}
		if it.UnitPrice.Cents < 0 {
			return fmt.Errorf("%w: item %d: negative unit price", ErrValidation, i)
		}
		if it.UnitPrice.Currency != o.Currency {
			return fmt.Errorf("%w: item %d: currency %q differs from order currency %q",
				ErrValidation, i, it.UnitPrice.Currency, o.Currency)
		}
	}
	a := o.Amounts
	if a.Subtotal < 0 || a.Tax < 0 || a.Shipping < 0 || a.Discount < 0 {
		return fmt.Errorf("%w: negative amount component", ErrValidation)
	}
	if a.Total <= 0 {
		return fmt.Errorf("%w: total must be positive", ErrValidation)
	}
	if got := a.Subtotal + a.Tax + a.Shipping - a.Discount; got != a.Total {
		return fmt.Errorf("%w: total mismatch: subtotal+tax+shipping-discount=%d, total=%d",
			ErrValidation, got, a.Total)
	}
	return nil
}

// CaptureResult records a completed provider capture. Exactly one is produced
// per captured order; repeated capture calls return the same result.
type CaptureResult struct {
	ProviderOrderID string
	CaptureID       string
	Status          string
	Amount          Money
	Timestamp       time.Time
}
