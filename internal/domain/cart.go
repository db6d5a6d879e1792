package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one product instance in the cart.
type LineItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	ImageURL     string          `json:"image_url,omitempty"`
	InventoryRef string          `json:"inventory_ref,omitempty"`
	Category     string          `json:"category"`
	Dims         *Dimensions     `json:"dims,omitempty"`
}

// Sanitize normalizes a line item in place: the category is trimmed (always a
// string, never absent, since a missing category silently breaks dimension
// resolution), and the dimension set is kept only when complete and strictly
// positive. A partial or corrupt set is discarded whole. Idempotent.
func (li *LineItem) Sanitize() {
	li.Category = strings.TrimSpace(li.Category)
	if li.Dims != nil && !li.Dims.Valid() {
		li.Dims = nil
	}
}

// LineTotal returns price × quantity for this line.
func (li *LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is the persisted, ordered collection of line items for one customer.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Items     []LineItem `json:"items"`
	Currency  string     `json:"currency"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Subtotal derives the sum of price × quantity over all lines. Never stored.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		total = total.Add(c.Items[i].LineTotal())
	}
	return total
}

// ItemCount returns the total unit count across all lines.
func (c *Cart) ItemCount() int {
	var count int
	for i := range c.Items {
		count += c.Items[i].Quantity
	}
	return count
}

// FindItemIndex returns the index of the line with the given product id, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// SanitizeItems re-runs line sanitization over the whole cart. Applied on
// every load from durable storage: stored data is never trusted blindly, since
// sizing rules may have changed between sessions or legacy corrupt records may
// be present.
func (c *Cart) SanitizeItems() {
	for i := range c.Items {
		c.Items[i].Sanitize()
	}
}
