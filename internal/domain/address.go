package domain

import "strings"

// Address is a delivery destination or warehouse origin.
type Address struct {
	Street   string `json:"street"`
	Suburb   string `json:"suburb"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
}

// IsComplete reports whether every field is non-empty after trimming. Quoting
// is only attempted against a minimally-complete address; anything less is an
// inert state, not an error.
func (a *Address) IsComplete() bool {
	if a == nil {
		return false
	}
	for _, f := range []string{a.Street, a.Suburb, a.State, a.Postcode} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// BillingDetails is the customer identity captured at checkout.
type BillingDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	Suburb    string `json:"suburb"`
	Postcode  string `json:"postcode"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// IsComplete reports whether every billing identity field is filled in.
// Payment authorization is gated on this.
func (b *BillingDetails) IsComplete() bool {
	for _, f := range []string{b.FirstName, b.LastName, b.Street, b.Suburb, b.Postcode, b.Phone, b.Email} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}
