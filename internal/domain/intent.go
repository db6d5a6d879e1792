package domain

import "github.com/shopspring/decimal"

// PaymentIntent is the provider-side authorization for a priced amount. The
// amounts are the remote pricing authority's, stored verbatim — they are what
// is displayed and charged, never a locally-recomputed equivalent.
//
// An intent is valid only for the exact (items, destination, selected rate)
// tuple that produced it. Any mutation to those inputs nulls the intent; it is
// never patched or reused.
type PaymentIntent struct {
	ClientHandle string          `json:"client_handle"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
}
