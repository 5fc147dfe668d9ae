/**
 * @description
 * This file contains the subscription and payment logic. Two independent paths
 * create subscriptions: the provider-hosted checkout (confirmed later by a signed
 * webhook) and the simulated direct-payment path used by the demo upsell.
 * When the payment provider is not configured, checkout, portal and cancel run
 * in mock mode and never call out.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swipesavvy/claim-service/internal/domain"
	"github.com/swipesavvy/claim-service/internal/store"
	"github.com/swipesavvy/claim-service/pkg/paymentclient"
)

// Billing period applied to every subscription this service creates.
const billingPeriod = 30 * 24 * time.Hour

// Values recorded for subscriptions confirmed through hosted checkout.
const (
	checkoutPlan     = "premium"
	checkoutPriceID  = "premium"
	checkoutAmount   = int64(3450)
	checkoutCurrency = "usd"
)

const (
	mockSessionID          = "mock_session_id"
	syntheticSubscription  = "demo_sub_"
	syntheticCustomer      = "demo_cus_"
	checkoutModeSubscribed = "subscription"
)

// SubscriptionOptions toggles provider-dependent behaviour.
type SubscriptionOptions struct {
	// PaymentsConfigured is false when the provider key is missing or a placeholder.
	PaymentsConfigured     bool
	AllowSimulatedPayments bool
}

// SubscriptionService provides checkout, simulated payment, webhook and cancellation logic.
type SubscriptionService struct {
	subs     SubscriptionRepository
	users    UserRepository
	payments PaymentProvider
	events   EventPublisher
	logger   *slog.Logger
	opts     SubscriptionOptions
	now      func() time.Time
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	subs SubscriptionRepository,
	users UserRepository,
	payments PaymentProvider,
	events EventPublisher,
	logger *slog.Logger,
	opts SubscriptionOptions,
) *SubscriptionService {
	return &SubscriptionService{
		subs:     subs,
		users:    users,
		payments: payments,
		events:   events,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// MockMode reports whether provider calls are short-circuited.
func (s *SubscriptionService) MockMode() bool {
	return !s.opts.PaymentsConfigured || s.payments == nil
}

// CreateCheckoutSession starts a hosted checkout for the user, or returns a mock
// success URL when the provider is not configured.
func (s *SubscriptionService) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, mapUserLookupError(err)
	}

	if s.MockMode() {
		s.logger.Info("payment provider not configured; returning mock checkout", "user_id", user.ID)
		return &domain.CheckoutSession{URL: mockSuccessURL(req.SuccessURL), SessionID: mockSessionID}, nil
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	session, err := s.payments.CreateCheckoutSession(ctx, paymentclient.CheckoutParams{
		CustomerID: customerID,
		PriceID:    req.PriceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		UserID:     user.ID,
	})
	if err != nil {
		s.logger.Error("checkout session failed", "user_id", user.ID, "error", err)
		return nil, newError(ErrUpstream, "Failed to create checkout session")
	}
	return &domain.CheckoutSession{URL: session.URL, SessionID: session.ID}, nil
}

// ensureCustomer returns the user's payment customer, creating one on first checkout.
func (s *SubscriptionService) ensureCustomer(ctx context.Context, user *domain.User) (string, error) {
	if user.PaymentCustomerID != nil && *user.PaymentCustomerID != "" {
		return *user.PaymentCustomerID, nil
	}

	customerID, err := s.payments.CreateCustomer(ctx, paymentclient.CustomerParams{
		Email:  user.Email,
		Name:   user.Name,
		UserID: user.ID,
	})
	if err != nil {
		s.logger.Error("create payment customer failed", "user_id", user.ID, "error", err)
		return "", newError(ErrUpstream, "Failed to create checkout session")
	}

	updated, err := s.users.SetPaymentCustomerID(ctx, user.ID, customerID)
	if err != nil {
		return "", fmt.Errorf("store payment customer: %w", err)
	}
	if !updated {
		// A concurrent checkout stored a customer first; use that one.
		fresh, err := s.users.GetUserByID(ctx, user.ID)
		if err == nil && fresh.PaymentCustomerID != nil && *fresh.PaymentCustomerID != "" {
			return *fresh.PaymentCustomerID, nil
		}
	}
	return customerID, nil
}

func mockSuccessURL(successURL string) string {
	u, err := url.Parse(successURL)
	if err != nil {
		return successURL + "?payment_success=true&mock=true"
	}
	q := u.Query()
	q.Set("payment_success", "true")
	q.Set("mock", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

// ProcessPayment runs the simulated direct-payment path. Only the shape of the card
// is checked; no authorization takes place.
func (s *SubscriptionService) ProcessPayment(ctx context.Context, req domain.ProcessPaymentRequest) (*domain.PaymentResult, error) {
	if !s.opts.AllowSimulatedPayments {
		return nil, newError(ErrSimulationDisabled, "Direct payments are not available")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := validateCardShape(req.PaymentDetails); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, mapUserLookupError(err)
	}

	now := s.now().UTC()
	suffix := strconv.FormatInt(now.UnixNano(), 10)
	customerID := syntheticCustomer + suffix
	if user.PaymentCustomerID != nil && *user.PaymentCustomerID != "" {
		customerID = *user.PaymentCustomerID
	}

	created, err := s.subs.CreateSubscription(ctx, &domain.Subscription{
		ID:                     uuid.NewString(),
		UserID:                 user.ID,
		ExternalSubscriptionID: syntheticSubscription + suffix,
		ExternalCustomerID:     customerID,
		ExternalPriceID:        req.PriceID,
		Status:                 domain.SubscriptionStatusActive,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.Add(billingPeriod),
		CancelAtPeriodEnd:      false,
		Amount:                 req.Amount,
		Currency:               strings.ToLower(req.Currency),
		Plan:                   checkoutPlan,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflict("Payment already processed, please retry")
		}
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	if user.PaymentCustomerID == nil || *user.PaymentCustomerID == "" {
		if _, err := s.users.SetPaymentCustomerID(ctx, user.ID, customerID); err != nil {
			s.logger.Warn("failed to store synthetic customer id", "user_id", user.ID, "error", err)
		}
	}

	digits := digitsOnly(req.PaymentDetails.CardNumber)
	s.logger.Info("simulated payment processed",
		"user_id", user.ID,
		"subscription_id", created.ID,
		"card_last4", digits[len(digits)-4:],
	)
	publishEvent(ctx, s.events, s.logger, domain.EventSubscriptionActivated, subscriptionEvent(created, "simulated", now))

	features := req.PlanDetails.Features
	if features == nil {
		features = []string{}
	}
	return &domain.PaymentResult{
		ID:              created.ID,
		Status:          created.Status,
		Plan:            req.PlanDetails.Name,
		Amount:          created.Amount,
		Currency:        created.Currency,
		NextBillingDate: created.CurrentPeriodEnd,
		Features:        features,
		CardBrand:       cardBrand(digits),
		Last4:           digits[len(digits)-4:],
	}, nil
}

// validateCardShape checks card number length, expiry separator and CVV length.
func validateCardShape(details domain.PaymentDetails) error {
	if len(digitsOnly(details.CardNumber)) < 16 {
		return validationError("Invalid card number")
	}
	if !strings.Contains(details.ExpiryDate, "/") {
		return validationError("Invalid expiry date")
	}
	if len(strings.TrimSpace(details.CVV)) < 3 {
		return validationError("Invalid CVV")
	}
	return nil
}

func cardBrand(digits string) string {
	if digits == "" {
		return "unknown"
	}
	switch digits[0] {
	case '4':
		return "visa"
	case '5', '2':
		return "mastercard"
	case '3':
		return "amex"
	case '6':
		return "discover"
	default:
		return "unknown"
	}
}

// HandleWebhook verifies a provider callback and records its effect.
func (s *SubscriptionService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.payments == nil {
		return newError(ErrConfiguration, "Webhook secret not configured")
	}

	event, err := s.payments.ParseWebhookEvent(payload, signature)
	if err != nil {
		if errors.Is(err, paymentclient.ErrWebhookSecretMissing) {
			return newError(ErrConfiguration, "Webhook secret not configured")
		}
		s.logger.Warn("webhook rejected", "error", err)
		return validationError("Webhook signature verification failed")
	}

	switch {
	case event.Type == paymentclient.EventCheckoutSessionCompleted && event.Checkout != nil:
		return s.recordCompletedCheckout(ctx, event.Checkout)
	case event.Subscription != nil:
		return s.mirrorSubscription(ctx, event.Type, event.Subscription)
	default:
		s.logger.Debug("ignoring webhook event", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (s *SubscriptionService) recordCompletedCheckout(ctx context.Context, checkout *paymentclient.CompletedCheckout) error {
	if checkout.Mode != checkoutModeSubscribed || checkout.SubscriptionID == "" {
		return nil
	}
	userID := checkout.Metadata["userId"]
	if userID == "" {
		s.logger.Warn("checkout completed without userId metadata", "session_id", checkout.SessionID)
		return nil
	}

	now := s.now().UTC()
	created, inserted, err := s.subs.CreateSubscriptionIfAbsent(ctx, &domain.Subscription{
		ID:                     uuid.NewString(),
		UserID:                 userID,
		ExternalSubscriptionID: checkout.SubscriptionID,
		ExternalCustomerID:     checkout.CustomerID,
		ExternalPriceID:        checkoutPriceID,
		Status:                 domain.SubscriptionStatusActive,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.Add(billingPeriod),
		Amount:                 checkoutAmount,
		Currency:               checkoutCurrency,
		Plan:                   checkoutPlan,
	})
	if err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			s.logger.Warn("checkout completed for unknown user", "user_id", userID, "session_id", checkout.SessionID)
			return nil
		}
		return fmt.Errorf("record checkout subscription: %w", err)
	}
	if !inserted {
		s.logger.Info("duplicate checkout completion ignored", "external_subscription_id", checkout.SubscriptionID)
		return nil
	}

	if checkout.CustomerID != "" {
		if _, err := s.users.SetPaymentCustomerID(ctx, userID, checkout.CustomerID); err != nil {
			s.logger.Warn("failed to store payment customer from checkout", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("subscription activated from checkout", "user_id", userID, "subscription_id", created.ID)
	publishEvent(ctx, s.events, s.logger, domain.EventSubscriptionActivated, subscriptionEvent(created, "checkout", now))
	return nil
}

func (s *SubscriptionService) mirrorSubscription(ctx context.Context, eventType string, state *paymentclient.SubscriptionState) error {
	mirror := domain.SubscriptionMirror{
		Status:            state.Status,
		CancelAtPeriodEnd: state.CancelAtPeriodEnd,
	}
	if !state.CurrentPeriodStart.IsZero() {
		mirror.CurrentPeriodStart = &state.CurrentPeriodStart
	}
	if !state.CurrentPeriodEnd.IsZero() {
		mirror.CurrentPeriodEnd = &state.CurrentPeriodEnd
	}

	updated, previous, err := s.subs.MirrorSubscription(ctx, state.ID, mirror)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("webhook for unknown subscription ignored", "type", eventType, "external_subscription_id", state.ID)
			return nil
		}
		return fmt.Errorf("mirror subscription: %w", err)
	}
	if updated.Status == domain.SubscriptionStatusCanceled && previous != domain.SubscriptionStatusCanceled {
		publishEvent(ctx, s.events, s.logger, domain.EventSubscriptionCanceled, subscriptionEvent(updated, "webhook", s.now().UTC()))
	}
	return nil
}

// ListByUser returns every subscription of a user, newest first.
func (s *SubscriptionService) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	subs, err := s.subs.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// GetActive returns the newest active or trialing subscription of a user.
func (s *SubscriptionService) GetActive(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.subs.GetActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("No active subscription found")
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return sub, nil
}

// CreatePortalSession returns a billing portal URL for the user.
func (s *SubscriptionService) CreatePortalSession(ctx context.Context, userID string, req domain.PortalRequest) (*domain.PortalSession, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapUserLookupError(err)
	}
	if user.PaymentCustomerID == nil || *user.PaymentCustomerID == "" {
		return nil, validationError("User has no billing account")
	}
	if s.MockMode() {
		return &domain.PortalSession{URL: req.ReturnURL}, nil
	}

	portalURL, err := s.payments.CreatePortalSession(ctx, *user.PaymentCustomerID, req.ReturnURL)
	if err != nil {
		s.logger.Error("portal session failed", "user_id", user.ID, "error", err)
		return nil, newError(ErrUpstream, "Failed to create billing portal session")
	}
	return &domain.PortalSession{URL: portalURL}, nil
}

// Cancel flags a subscription to end with its current period. Repeated calls leave
// the same final state and reach the provider at most once.
func (s *SubscriptionService) Cancel(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	sub, err := s.subs.GetSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(msgSubscriptionNotFound)
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	var status *string
	switch {
	case s.MockMode():
		canceled := domain.SubscriptionStatusCanceled
		status = &canceled
	case !sub.CancelAtPeriodEnd && !strings.HasPrefix(sub.ExternalSubscriptionID, syntheticSubscription):
		if err := s.payments.CancelAtPeriodEnd(ctx, sub.ExternalSubscriptionID); err != nil {
			s.logger.Error("provider cancellation failed", "subscription_id", sub.ID, "error", err)
			return nil, newError(ErrUpstream, "Failed to cancel subscription")
		}
	}

	updated, err := s.subs.MarkCancelAtPeriodEnd(ctx, sub.ID, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(msgSubscriptionNotFound)
		}
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}

	if !sub.CancelAtPeriodEnd {
		s.logger.Info("subscription canceled", "subscription_id", sub.ID, "user_id", sub.UserID)
		publishEvent(ctx, s.events, s.logger, domain.EventSubscriptionCanceled, subscriptionEvent(updated, "api", s.now().UTC()))
	}
	return updated, nil
}

// CancelLapsed finalizes subscriptions whose cancel-at-period-end period has passed and
// publishes subscription.canceled for each one. It returns how many were finalized.
func (s *SubscriptionService) CancelLapsed(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	lapsed, err := s.subs.CancelLapsedSubscriptions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("cancel lapsed subscriptions: %w", err)
	}
	for i := range lapsed {
		publishEvent(ctx, s.events, s.logger, domain.EventSubscriptionCanceled, subscriptionEvent(&lapsed[i], "sweep", now))
	}
	return int64(len(lapsed)), nil
}

func subscriptionEvent(sub *domain.Subscription, source string, at time.Time) domain.SubscriptionEvent {
	return domain.SubscriptionEvent{
		SubscriptionID:         sub.ID,
		UserID:                 sub.UserID,
		ExternalSubscriptionID: sub.ExternalSubscriptionID,
		Status:                 sub.Status,
		Source:                 source,
		OccurredAt:             at,
	}
}
