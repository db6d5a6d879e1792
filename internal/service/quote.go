package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wreckyard/checkout/internal/dimension"
	"github.com/wreckyard/checkout/internal/domain"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
	"github.com/wreckyard/checkout/pkg/httpclient"
)

// scheduleQuoteLocked restarts the quote debounce window. Bumping the
// generation first means any quote already in flight for the old inputs will
// find its generation stale and discard its own result.
func (s *CheckoutService) scheduleQuoteLocked(sess *session) {
	sess.quoteGen++
	gen := sess.quoteGen

	if sess.quoteTimer != nil {
		sess.quoteTimer.Stop()
	}
	sess.state = domain.QuoteDebouncing
	sess.quoteErr = ""
	sess.unresolved = nil
	sess.selected = nil
	sess.rates = nil

	sess.quoteTimer = time.AfterFunc(s.timeouts.Debounce, func() {
		s.runQuote(sess, gen)
	})
}

// runQuote executes one quote cycle for the given generation: resolve every
// cart line, call the rating service, select the cheapest rate. At every
// reacquisition of the session lock the generation is checked; a mismatch
// means newer inputs superseded this cycle and its result is dropped.
func (s *CheckoutService) runQuote(sess *session, gen uint64) {
	ctx := context.Background()

	sess.mu.Lock()
	if gen != sess.quoteGen {
		sess.mu.Unlock()
		return
	}
	sess.quoteTimer = nil

	if !sess.address.IsComplete() {
		// Not an error, just an inert state: nothing to price yet.
		sess.state = domain.QuoteIdle
		sess.selected = nil
		sess.mu.Unlock()
		return
	}
	sess.state = domain.QuoteResolving
	dest := *sess.address
	userID := sess.userID
	sess.mu.Unlock()

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// No cart yet: nothing to price.
			s.applyQuoteIdle(sess, gen)
			return
		}
		s.applyQuoteFailed(ctx, sess, gen, "could not load the cart, please try again", err)
		return
	}
	if cart.ItemCount() == 0 {
		s.applyQuoteIdle(sess, gen)
		return
	}

	if s.sizes == nil {
		// Reference data unavailable: quoting with guessed dimensions is
		// worse than no quote at all.
		s.applyQuoteBlocked(ctx, sess, gen, nil, "shipping reference data is unavailable, quoting is disabled")
		return
	}

	resolved, unresolved := dimension.ResolveCart(cart.Items, s.sizes)
	if len(unresolved) > 0 {
		msg := fmt.Sprintf("cannot determine shipping dimensions for: %s", strings.Join(unresolved, ", "))
		s.applyQuoteBlocked(ctx, sess, gen, unresolved, msg)
		return
	}

	sess.mu.Lock()
	if gen != sess.quoteGen {
		sess.mu.Unlock()
		staleResultsDiscarded.Inc()
		return
	}
	sess.state = domain.QuoteQuoting
	sess.mu.Unlock()

	rates, err := s.fetchRates(ctx, dest, resolved)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if gen != sess.quoteGen {
		staleResultsDiscarded.Inc()
		s.logger.DebugContext(ctx, "discarded stale quote result",
			slog.String("user_id", userID),
		)
		return
	}

	if err != nil {
		sess.state = domain.QuoteFailed
		sess.selected = nil
		sess.quoteErr = "could not retrieve shipping rates, please check the address and try again"
		quoteOutcomes.WithLabelValues("failed").Inc()
		s.logger.ErrorContext(ctx, "rate quote failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(rates) == 0 {
		sess.state = domain.QuoteFailed
		sess.selected = nil
		sess.quoteErr = "no shipping rates are available for this address"
		quoteOutcomes.WithLabelValues("empty").Inc()
		return
	}

	cheapest, _ := domain.CheapestRate(rates)
	sess.rates = rates
	sess.selected = &cheapest
	sess.state = domain.QuoteQuoted
	sess.quoteErr = ""
	quoteOutcomes.WithLabelValues("quoted").Inc()

	s.logger.InfoContext(ctx, "shipping rates quoted",
		slog.String("user_id", userID),
		slog.Int("rate_count", len(rates)),
		slog.String("selected_service", cheapest.Service),
	)

	s.maybeScheduleIntentLocked(sess)
}

// applyQuoteIdle moves the session back to idle if the generation still holds.
func (s *CheckoutService) applyQuoteIdle(sess *session, gen uint64) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if gen != sess.quoteGen {
		return
	}
	sess.state = domain.QuoteIdle
	sess.selected = nil
	sess.rates = nil
}

// applyQuoteFailed records a failed quote outcome with a retryable user-facing
// message. A cart store outage is a transient fault, not an empty cart.
func (s *CheckoutService) applyQuoteFailed(ctx context.Context, sess *session, gen uint64, msg string, cause error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if gen != sess.quoteGen {
		return
	}
	sess.state = domain.QuoteFailed
	sess.selected = nil
	sess.rates = nil
	sess.quoteErr = msg
	quoteOutcomes.WithLabelValues("failed").Inc()

	s.logger.ErrorContext(ctx, "quote cycle failed",
		slog.String("user_id", sess.userID),
		slog.String("error", cause.Error()),
	)
}

// applyQuoteBlocked records a blocked quote outcome. Blocking also drops the
// payment intent: an intent priced against an unquotable cart is meaningless.
func (s *CheckoutService) applyQuoteBlocked(ctx context.Context, sess *session, gen uint64, unresolved []string, msg string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if gen != sess.quoteGen {
		return
	}
	sess.state = domain.QuoteBlocked
	sess.selected = nil
	sess.rates = nil
	sess.unresolved = unresolved
	sess.quoteErr = msg
	s.invalidateIntentLocked(sess)
	quoteOutcomes.WithLabelValues("blocked").Inc()

	s.logger.WarnContext(ctx, "quoting blocked",
		slog.String("user_id", sess.userID),
		slog.Int("unresolved_count", len(unresolved)),
	)
}

// rateItem is one shipment line in a rate request.
type rateItem struct {
	Weight      float64 `json:"weight"`
	Length      float64 `json:"length"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
}

// fetchRates calls the external rating service with the fixed warehouse origin
// and one shipment line per resolved cart item.
func (s *CheckoutService) fetchRates(ctx context.Context, dest domain.Address, resolved []dimension.ResolvedItem) ([]domain.ShippingRate, error) {
	if s.timeouts.Quote > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Quote)
		defer cancel()
	}

	type rateRequest struct {
		Origin      domain.Address `json:"origin"`
		Destination domain.Address `json:"destination"`
		Items       []rateItem     `json:"items"`
	}

	type rateResponse struct {
		Rates []domain.ShippingRate `json:"rates"`
	}

	req := rateRequest{
		Origin:      s.origin,
		Destination: dest,
		Items:       make([]rateItem, len(resolved)),
	}
	for i, ri := range resolved {
		req.Items[i] = rateItem{
			Weight:      ri.Dims.Weight,
			Length:      ri.Dims.Length,
			Width:       ri.Dims.Width,
			Height:      ri.Dims.Height,
			Quantity:    ri.Item.Quantity,
			Description: ri.Item.Name,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.rateServiceURL+"/api/rates/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(ctx, httpReq)
	if err != nil {
		return nil, fmt.Errorf("call rate service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "rate")
	}

	var rateResp rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&rateResp); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}

	return rateResp.Rates, nil
}
