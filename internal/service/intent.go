package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wreckyard/checkout/internal/dimension"
	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/pkg/httpclient"
)

// invalidateIntentLocked drops the current payment intent and supersedes any
// intent creation still in flight. Called inside the session lock by every
// mutation of a priced input, so a stale intent is never observable.
func (s *CheckoutService) invalidateIntentLocked(sess *session) {
	sess.intentGen++
	if sess.intentTimer != nil {
		sess.intentTimer.Stop()
		sess.intentTimer = nil
	}
	sess.intent = nil
	sess.intentErr = ""
}

// maybeScheduleIntentLocked starts the intent debounce window when the gate
// holds: a quoted rate, complete billing identity, and no existing intent.
// Creation is gated on the quoted state itself, not merely on a timer.
func (s *CheckoutService) maybeScheduleIntentLocked(sess *session) {
	if sess.state != domain.QuoteQuoted || sess.selected == nil {
		return
	}
	if sess.billing == nil || !sess.billing.IsComplete() {
		return
	}
	if sess.intent != nil || sess.intentInFlight {
		return
	}

	gen := sess.intentGen
	if sess.intentTimer != nil {
		sess.intentTimer.Stop()
	}
	sess.intentTimer = time.AfterFunc(s.timeouts.Debounce, func() {
		s.runIntent(sess, gen)
	})
}

// runIntent executes one intent creation cycle for the given generation. The
// cart is re-resolved defensively before the call: it may have mutated between
// quoting and authorization time, and an intent priced for a cart that can no
// longer ship must not be created.
func (s *CheckoutService) runIntent(sess *session, gen uint64) {
	ctx := context.Background()

	sess.mu.Lock()
	if gen != sess.intentGen || sess.intentInFlight || sess.intent != nil {
		sess.mu.Unlock()
		return
	}
	sess.intentTimer = nil
	if sess.state != domain.QuoteQuoted || sess.selected == nil ||
		sess.billing == nil || !sess.billing.IsComplete() {
		sess.mu.Unlock()
		return
	}
	sess.intentInFlight = true
	billing := *sess.billing
	selected := *sess.selected
	var shipping *domain.Address
	if sess.address != nil {
		addr := *sess.address
		shipping = &addr
	}
	userID := sess.userID
	sess.mu.Unlock()

	intent, err := s.createIntent(ctx, userID, billing, shipping, selected)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.intentInFlight = false
	if gen != sess.intentGen {
		staleResultsDiscarded.Inc()
		s.logger.DebugContext(ctx, "discarded stale intent result",
			slog.String("user_id", userID),
		)
		// The mutation that superseded this flight saw intentInFlight and
		// could not schedule; re-arm now that the flight has landed.
		s.maybeScheduleIntentLocked(sess)
		return
	}

	if err != nil {
		sess.intentErr = "payment could not be prepared, please try again"
		intentOutcomes.WithLabelValues("failed").Inc()
		s.logger.ErrorContext(ctx, "payment intent creation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	sess.intent = intent
	sess.intentErr = ""
	intentOutcomes.WithLabelValues("created").Inc()

	s.logger.InfoContext(ctx, "payment intent created",
		slog.String("user_id", userID),
		slog.String("total", intent.Total.String()),
	)
}

// intentItem is one cart line in an intent creation request. Dimensions are
// always fully resolved by this point.
type intentItem struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	InventoryRef string          `json:"inventory_ref,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	ImageURL     string          `json:"image_url,omitempty"`
	Weight       float64         `json:"weight"`
	Length       float64         `json:"length"`
	Width        float64         `json:"width"`
	Height       float64         `json:"height"`
}

// createIntent calls the payment authorization service. The response carries
// the authority's own subtotal, shipping cost, and total, which are stored
// verbatim: the authority is the source of truth for final pricing.
func (s *CheckoutService) createIntent(ctx context.Context, userID string, billing domain.BillingDetails, shipping *domain.Address, rate domain.ShippingRate) (*domain.PaymentIntent, error) {
	if s.timeouts.Intent > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Intent)
		defer cancel()
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.ItemCount() == 0 {
		return nil, fmt.Errorf("cart is empty")
	}

	resolved, unresolved := dimension.ResolveCart(cart.Items, s.sizes)
	if len(unresolved) > 0 {
		return nil, fmt.Errorf("unresolvable items: %s", strings.Join(unresolved, ", "))
	}

	type createIntentRequest struct {
		Items           []intentItem          `json:"items"`
		BillingAddress  domain.BillingDetails `json:"billing_address"`
		ShippingAddress *domain.Address       `json:"shipping_address,omitempty"`
		ShippingOption  domain.ShippingRate   `json:"shipping_option"`
		Currency        string                `json:"currency"`
	}

	type createIntentResponse struct {
		ClientHandle string          `json:"client_handle"`
		Subtotal     decimal.Decimal `json:"subtotal"`
		ShippingCost decimal.Decimal `json:"shipping_cost"`
		Total        decimal.Decimal `json:"total"`
		Currency     string          `json:"currency"`
	}

	req := createIntentRequest{
		Items:           make([]intentItem, len(resolved)),
		BillingAddress:  billing,
		ShippingAddress: shipping,
		ShippingOption:  rate,
		Currency:        s.currency,
	}
	for i, ri := range resolved {
		req.Items[i] = intentItem{
			ProductID:    ri.Item.ProductID,
			Name:         ri.Item.Name,
			InventoryRef: ri.Item.InventoryRef,
			Price:        ri.Item.Price,
			Quantity:     ri.Item.Quantity,
			ImageURL:     ri.Item.ImageURL,
			Weight:       ri.Dims.Weight,
			Length:       ri.Dims.Length,
			Width:        ri.Dims.Width,
			Height:       ri.Dims.Height,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.paymentServiceURL+"/api/payment-intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "payment")
	}

	var intentResp createIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&intentResp); err != nil {
		return nil, fmt.Errorf("decode intent response: %w", err)
	}
	if intentResp.ClientHandle == "" {
		return nil, fmt.Errorf("payment service returned no client handle")
	}

	return &domain.PaymentIntent{
		ClientHandle: intentResp.ClientHandle,
		Subtotal:     intentResp.Subtotal,
		ShippingCost: intentResp.ShippingCost,
		Total:        intentResp.Total,
		Currency:     intentResp.Currency,
	}, nil
}
