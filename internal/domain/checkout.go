package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote coordinator states. One pricing context (cart contents + destination)
// moves idle → debouncing → resolving → {blocked | quoting} → {quoted | failed};
// any input change restarts the cycle from debouncing.
const (
	QuoteIdle       = "idle"
	QuoteDebouncing = "debouncing"
	QuoteResolving  = "resolving"
	QuoteBlocked    = "blocked"
	QuoteQuoting    = "quoting"
	QuoteQuoted     = "quoted"
	QuoteFailed     = "failed"
)

// CustomerSnapshot is the identity captured into a completed order.
type CustomerSnapshot struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	Suburb    string `json:"suburb"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
}

// OrderItemSnapshot is one cart line frozen at finalization time. The live
// cart is cleared immediately after completion, so the order carries copies.
type OrderItemSnapshot struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	InventoryRef string          `json:"inventory_ref,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
}

// OrderResult is the finalizer's outcome for a successfully recorded order.
// Degraded means the order was recorded but submission to the external
// fulfillment system failed — a success for the customer, a follow-up for ops.
type OrderResult struct {
	PaymentID    string          `json:"payment_id"`
	OrderRef     string          `json:"order_ref,omitempty"`
	Degraded     bool            `json:"degraded"`
	ShippingName string          `json:"shipping_name"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
}

// Follow-up kinds recorded for operational attention.
const (
	FollowUpFulfillmentDegraded = "fulfillment_degraded"
	FollowUpOrderRecordFailed   = "order_record_failed"
)

// FollowUp is an operational incident requiring manual attention: either an
// order that was recorded but not submitted to fulfillment, or a captured
// payment with no recorded order.
type FollowUp struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
