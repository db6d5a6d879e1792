package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/internal/event"
	"github.com/wreckyard/checkout/internal/repository"
	"github.com/wreckyard/checkout/internal/sizemap"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
)

// CircuitOpenFallback is a fallback function for the collaborator circuit
// breaker. When the circuit is open, it returns a structured error with a
// retry hint instead of letting the raw ErrCircuitOpen propagate.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("downstream service is temporarily unavailable, please retry after 30 seconds")
}

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Timeouts holds the debounce window and per-call timeouts for the checkout
// pipeline. A zero call timeout means no bound beyond the parent context.
type Timeouts struct {
	Debounce time.Duration
	Quote    time.Duration
	Intent   time.Duration
	Complete time.Duration
}

// session is the per-user checkout state: destination and billing inputs, the
// quote state machine, and the current payment intent. All fields are guarded
// by mu. Generation counters implement the staleness rule: an async result is
// applied only if its generation still matches, so a superseded quote or
// intent call can never overwrite state produced by newer inputs.
type session struct {
	mu     sync.Mutex
	userID string

	address *domain.Address
	billing *domain.BillingDetails

	state      string
	rates      []domain.ShippingRate
	selected   *domain.ShippingRate
	unresolved []string
	quoteErr   string

	intent         *domain.PaymentIntent
	intentInFlight bool
	intentErr      string

	quoteGen  uint64
	intentGen uint64

	quoteTimer  *time.Timer
	intentTimer *time.Timer

	// lastTouch is guarded by CheckoutService.mu, not by sess.mu: it is
	// only read and written while holding the map lock.
	lastTouch time.Time
}

// sessionIdleTTL bounds how long an untouched session stays in memory. The
// cart itself lives in Redis under its own TTL; dropping the in-memory
// pricing state after an idle hour loses nothing a fresh quote cannot rebuild.
const sessionIdleTTL = time.Hour

// CheckoutService coordinates shipping quotation, payment intent lifecycle,
// and order finalization for per-user checkout sessions.
type CheckoutService struct {
	carts     repository.CartRepository
	followups repository.FollowUpRepository
	producer  *event.Producer
	logger    *slog.Logger

	httpClient        HTTPDoer
	rateServiceURL    string
	paymentServiceURL string
	orderServiceURL   string

	origin   domain.Address
	sizes    *sizemap.Map
	timeouts Timeouts
	currency string

	mu        sync.Mutex
	sessions  map[string]*session
	lastSweep time.Time
}

// NewCheckoutService creates a new checkout service. A nil size map is a valid
// degraded configuration: quoting is blocked until the reference data is fixed.
func NewCheckoutService(
	carts repository.CartRepository,
	followups repository.FollowUpRepository,
	producer *event.Producer,
	logger *slog.Logger,
	httpClient HTTPDoer,
	rateServiceURL, paymentServiceURL, orderServiceURL string,
	origin domain.Address,
	sizes *sizemap.Map,
	timeouts Timeouts,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		carts:             carts,
		followups:         followups,
		producer:          producer,
		logger:            logger,
		httpClient:        httpClient,
		rateServiceURL:    rateServiceURL,
		paymentServiceURL: paymentServiceURL,
		orderServiceURL:   orderServiceURL,
		origin:            origin,
		sizes:             sizes,
		timeouts:          timeouts,
		currency:          currency,
		sessions:          make(map[string]*session),
	}
}

// getSession returns the session for a user, creating it on first use. At
// most once per idle TTL it also sweeps out sessions nobody has touched, so
// the map does not grow with every user who ever polled a checkout state.
func (s *CheckoutService) getSession(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Sub(s.lastSweep) >= sessionIdleTTL {
		s.sweepIdleSessionsLocked(now)
		s.lastSweep = now
	}

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{userID: userID, state: domain.QuoteIdle}
		s.sessions[userID] = sess
	}
	sess.lastTouch = now
	return sess
}

// sweepIdleSessionsLocked drops sessions untouched for the idle TTL. A session
// with a pending timer or a call in flight is skipped: its callbacks hold the
// pointer and would otherwise mutate an orphan.
func (s *CheckoutService) sweepIdleSessionsLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastTouch) < sessionIdleTTL {
			continue
		}
		sess.mu.Lock()
		idle := sess.quoteTimer == nil && sess.intentTimer == nil && !sess.intentInFlight
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
		}
	}
}

// evictSession removes a user's session from the map after a completed order.
// Any goroutine still holding the old pointer is disarmed by the generation
// bumps in resetSessionLocked and applies nothing.
func (s *CheckoutService) evictSession(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// NotifyCartChanged restarts pricing for a user after any cart mutation. The
// selected rate and payment intent are stale the moment the cart changes, so
// both are dropped before the debounce window even starts.
func (s *CheckoutService) NotifyCartChanged(userID string) {
	sess := s.getSession(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.invalidateIntentLocked(sess)
	s.scheduleQuoteLocked(sess)
}

// SetDeliveryAddress stores the destination address and restarts pricing. A
// partial address is accepted as input; quoting simply stays inert until the
// address is minimally complete.
func (s *CheckoutService) SetDeliveryAddress(_ context.Context, userID string, addr domain.Address) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}

	sess := s.getSession(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.address = &addr
	s.invalidateIntentLocked(sess)
	s.scheduleQuoteLocked(sess)

	return nil
}

// SetBillingDetails stores the billing identity. The current intent is priced
// against the old identity, so it is dropped immediately; a new one is
// scheduled once billing is complete and a quoted rate exists.
func (s *CheckoutService) SetBillingDetails(_ context.Context, userID string, billing domain.BillingDetails) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}

	sess := s.getSession(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.billing = &billing
	s.invalidateIntentLocked(sess)
	s.maybeScheduleIntentLocked(sess)

	return nil
}

// SelectRate switches the selected shipping rate to a different quoted option,
// identified by service name. Selection never re-quotes; it only re-prices the
// payment intent.
func (s *CheckoutService) SelectRate(_ context.Context, userID, serviceName string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}
	if serviceName == "" {
		return apperrors.InvalidInput("service name is required")
	}

	sess := s.getSession(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != domain.QuoteQuoted {
		return apperrors.Conflict("no quoted rates to select from")
	}
	for i := range sess.rates {
		if sess.rates[i].Service == serviceName {
			rate := sess.rates[i]
			sess.selected = &rate
			s.invalidateIntentLocked(sess)
			s.maybeScheduleIntentLocked(sess)
			return nil
		}
	}

	return apperrors.NotFound("shipping rate", serviceName)
}

// CheckoutState is a read-only snapshot of a user's checkout session.
type CheckoutState struct {
	State           string                 `json:"state"`
	Rates           []domain.ShippingRate  `json:"rates,omitempty"`
	SelectedRate    *domain.ShippingRate   `json:"selected_rate,omitempty"`
	UnresolvedItems []string               `json:"unresolved_items,omitempty"`
	QuoteError      string                 `json:"quote_error,omitempty"`
	Intent          *domain.PaymentIntent  `json:"intent,omitempty"`
	IntentPending   bool                   `json:"intent_pending"`
	IntentError     string                 `json:"intent_error,omitempty"`
	Address         *domain.Address        `json:"address,omitempty"`
	Billing         *domain.BillingDetails `json:"billing,omitempty"`
}

// GetState returns a snapshot of the user's checkout session for polling.
func (s *CheckoutService) GetState(_ context.Context, userID string) (*CheckoutState, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	sess := s.getSession(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	st := &CheckoutState{
		State:         sess.state,
		QuoteError:    sess.quoteErr,
		IntentPending: sess.intentInFlight || sess.intentTimer != nil,
		IntentError:   sess.intentErr,
		Address:       sess.address,
		Billing:       sess.billing,
	}
	if len(sess.rates) > 0 {
		st.Rates = append([]domain.ShippingRate(nil), sess.rates...)
	}
	if sess.selected != nil {
		rate := *sess.selected
		st.SelectedRate = &rate
	}
	if len(sess.unresolved) > 0 {
		st.UnresolvedItems = append([]string(nil), sess.unresolved...)
	}
	if sess.intent != nil {
		intent := *sess.intent
		st.Intent = &intent
	}

	return st, nil
}

// resetSessionLocked returns a session to its initial state after a completed
// order: the cart is gone, so every derived pricing artifact goes with it.
func (s *CheckoutService) resetSessionLocked(sess *session) {
	sess.quoteGen++
	sess.intentGen++
	if sess.quoteTimer != nil {
		sess.quoteTimer.Stop()
		sess.quoteTimer = nil
	}
	if sess.intentTimer != nil {
		sess.intentTimer.Stop()
		sess.intentTimer = nil
	}
	sess.address = nil
	sess.billing = nil
	sess.state = domain.QuoteIdle
	sess.rates = nil
	sess.selected = nil
	sess.unresolved = nil
	sess.quoteErr = ""
	sess.intent = nil
	sess.intentErr = ""
}
