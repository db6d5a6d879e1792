package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wreckyard/checkout/internal/domain"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
	"github.com/wreckyard/checkout/pkg/httpclient"
)

// FinalizeOrder records a confirmed order after the payment provider reports a
// successful capture. The completion call carries snapshots, never live cart
// references, because the cart is cleared the moment recording succeeds.
//
// Failure policy: a transport failure or success:false from the order service
// is the one non-recoverable case (money has moved, no order exists) and
// surfaces as a support-required error carrying the payment id. A recorded
// order whose external fulfillment submission failed is a degraded success:
// the customer sees a confirmation and operations get a follow-up.
func (s *CheckoutService) FinalizeOrder(ctx context.Context, userID, paymentID string) (*domain.OrderResult, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if paymentID == "" {
		return nil, apperrors.InvalidInput("payment id is required")
	}

	sess := s.getSession(userID)

	sess.mu.Lock()
	if sess.intent == nil {
		sess.mu.Unlock()
		return nil, apperrors.Conflict("no payment authorization exists for this session")
	}
	if sess.selected == nil || sess.billing == nil {
		sess.mu.Unlock()
		return nil, apperrors.Conflict("checkout session is incomplete")
	}
	intent := *sess.intent
	selected := *sess.selected
	billing := *sess.billing
	var addr domain.Address
	if sess.address != nil {
		addr = *sess.address
	}
	sess.mu.Unlock()

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart for finalization: %w", err)
	}
	if cart.ItemCount() == 0 {
		return nil, apperrors.Conflict("cart is empty")
	}

	customer := domain.CustomerSnapshot{
		FirstName: billing.FirstName,
		LastName:  billing.LastName,
		Email:     billing.Email,
		Phone:     billing.Phone,
		Street:    addr.Street,
		Suburb:    addr.Suburb,
		State:     addr.State,
		Postcode:  addr.Postcode,
	}
	items := make([]domain.OrderItemSnapshot, len(cart.Items))
	for i, li := range cart.Items {
		items[i] = domain.OrderItemSnapshot{
			ProductID:    li.ProductID,
			Name:         li.Name,
			InventoryRef: li.InventoryRef,
			Price:        li.Price,
			Quantity:     li.Quantity,
		}
	}

	completion, err := s.completeOrder(ctx, paymentID, customer, items, intent, selected)
	if err != nil || !completion.Success {
		detail := "order service reported failure"
		if err != nil {
			detail = err.Error()
		}
		s.recordFollowUp(ctx, paymentID, domain.FollowUpOrderRecordFailed, detail)
		if pubErr := s.producer.PublishOrderRecordFailed(ctx, userID, paymentID, detail); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish record_failed event",
				slog.String("error", pubErr.Error()),
			)
		}
		s.logger.ErrorContext(ctx, "payment captured but order not recorded",
			slog.String("user_id", userID),
			slog.String("payment_id", paymentID),
			slog.String("detail", detail),
		)
		finalizeOutcomes.WithLabelValues("record_failed").Inc()
		return nil, apperrors.SupportRequired(paymentID)
	}

	// Order recorded. The cart is cleared here and nowhere else.
	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after order completion",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	sess.mu.Lock()
	s.resetSessionLocked(sess)
	sess.mu.Unlock()
	s.evictSession(userID)

	result := &domain.OrderResult{
		PaymentID:    paymentID,
		OrderRef:     completion.ExternalOrderReference,
		Degraded:     !completion.ExternalSubmissionSuccess,
		ShippingName: selected.Service,
		ShippingCost: intent.ShippingCost,
		Total:        intent.Total,
		Currency:     intent.Currency,
	}

	if result.Degraded {
		detail := "order recorded but external fulfillment submission failed"
		s.recordFollowUp(ctx, paymentID, domain.FollowUpFulfillmentDegraded, detail)
		if pubErr := s.producer.PublishFulfillmentDegraded(ctx, userID, paymentID, detail); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish fulfillment_degraded event",
				slog.String("error", pubErr.Error()),
			)
		}
		s.logger.WarnContext(ctx, "order completed with degraded fulfillment",
			slog.String("user_id", userID),
			slog.String("payment_id", paymentID),
		)
		finalizeOutcomes.WithLabelValues("degraded").Inc()
	} else {
		finalizeOutcomes.WithLabelValues("completed").Inc()
	}

	if err := s.producer.PublishOrderCompleted(ctx, userID, result); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.completed event",
			slog.String("payment_id", paymentID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order finalized",
		slog.String("user_id", userID),
		slog.String("payment_id", paymentID),
		slog.Bool("degraded", result.Degraded),
		slog.String("total", result.Total.String()),
	)

	return result, nil
}

// completionResult is the order service's reply to a completion request. The
// two success signals are independent: recording can succeed while external
// submission fails.
type completionResult struct {
	Success                   bool   `json:"success"`
	ExternalSubmissionSuccess bool   `json:"external_submission_success"`
	ExternalOrderReference    string `json:"external_order_reference,omitempty"`
}

// completeOrder submits the completion request to the order service.
func (s *CheckoutService) completeOrder(ctx context.Context, paymentID string, customer domain.CustomerSnapshot, items []domain.OrderItemSnapshot, intent domain.PaymentIntent, rate domain.ShippingRate) (*completionResult, error) {
	if s.timeouts.Complete > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Complete)
		defer cancel()
	}

	type completeOrderRequest struct {
		PaymentID    string                     `json:"payment_id"`
		Customer     domain.CustomerSnapshot    `json:"customer"`
		Items        []domain.OrderItemSnapshot `json:"items"`
		Subtotal     decimal.Decimal            `json:"subtotal"`
		ShippingCost decimal.Decimal            `json:"shipping_cost"`
		Total        decimal.Decimal            `json:"total"`
		Currency     string                     `json:"currency"`
		ShippingName string                     `json:"shipping_name"`
		Carrier      string                     `json:"carrier"`
	}

	req := completeOrderRequest{
		PaymentID:    paymentID,
		Customer:     customer,
		Items:        items,
		Subtotal:     intent.Subtotal,
		ShippingCost: intent.ShippingCost,
		Total:        intent.Total,
		Currency:     intent.Currency,
		ShippingName: rate.Service,
		Carrier:      rate.Carrier,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.orderServiceURL+"/api/orders/complete", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "order")
	}

	var result completionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	return &result, nil
}

// recordFollowUp writes an operational follow-up row. Best-effort: a ledger
// failure is logged at high severity but never masks the order outcome.
func (s *CheckoutService) recordFollowUp(ctx context.Context, paymentID, kind, detail string) {
	fu := &domain.FollowUp{
		ID:        uuid.NewString(),
		PaymentID: paymentID,
		Kind:      kind,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.followups.Create(ctx, fu); err != nil {
		s.logger.ErrorContext(ctx, "failed to record follow-up",
			slog.String("payment_id", paymentID),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}
