package domain

import "github.com/shopspring/decimal"

// Shipping service type constants as reported by the rating service.
const (
	ServiceTypeStandard  = "standard"
	ServiceTypeExpress   = "express"
	ServiceTypeOvernight = "overnight"
	ServiceTypeSameDay   = "same_day"
)

// ShippingRate is one quoted option returned by the external rating service.
type ShippingRate struct {
	Service     string          `json:"service"`
	ServiceType string          `json:"service_type"`
	Cost        decimal.Decimal `json:"cost"`
	Currency    string          `json:"currency"`
	TransitDays int             `json:"transit_days"`
	Carrier     string          `json:"carrier"`
}

// CheapestRate returns the lowest-cost rate from the list. Ties are broken by
// response order: the strict less-than comparison keeps the first occurrence.
// Returns false for an empty list.
func CheapestRate(rates []ShippingRate) (ShippingRate, bool) {
	if len(rates) == 0 {
		return ShippingRate{}, false
	}
	best := rates[0]
	for _, r := range rates[1:] {
		if r.Cost.LessThan(best.Cost) {
			best = r
		}
	}
	return best, true
}
