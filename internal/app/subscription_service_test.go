package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/swipesavvy/claim-service/internal/domain"
	"github.com/swipesavvy/claim-service/pkg/paymentclient"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type subscriptionFixture struct {
	store    *memStore
	events   *recordingPublisher
	payments *paymentsStub
	svc      *SubscriptionService
	user     *domain.User
}

func newSubscriptionFixture(t *testing.T, opts SubscriptionOptions) *subscriptionFixture {
	t.Helper()
	m := newMemStore()
	events := &recordingPublisher{}
	payments := &paymentsStub{
		customerID: "cus_real",
		session:    &paymentclient.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"},
		portalURL:  "https://billing.example/session",
	}

	user, err := newTestUserService(m, nil).Create(context.Background(), domain.CreateUserRequest{
		Email: "payer@example.com", Name: "Payer", Password: "password1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := NewSubscriptionService(m, m, payments, events, discardLogger(), opts)
	svc.now = func() time.Time { return fixedNow }
	return &subscriptionFixture{store: m, events: events, payments: payments, svc: svc, user: user}
}

func validPaymentRequest(userID string) domain.ProcessPaymentRequest {
	return domain.ProcessPaymentRequest{
		UserID:   userID,
		PriceID:  "price_premium",
		Amount:   3450,
		Currency: "USD",
		PaymentDetails: domain.PaymentDetails{
			CardNumber:     "4242 4242 4242 4242",
			ExpiryDate:     "12/30",
			CVV:            "123",
			CardholderName: "Sudheer Narra",
			BillingAddress: domain.BillingAddress{Street: "1234 Elm Street", City: "Dallas", State: "TX", ZipCode: "75201", Country: "US"},
		},
		PlanDetails: domain.PlanDetails{
			Name:     "Premium",
			Price:    "$34.50",
			Features: []string{"Priority listing"},
		},
	}
}

func TestProcessPayment_CreatesOneActiveSubscription(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{AllowSimulatedPayments: true})

	result, err := f.svc.ProcessPayment(context.Background(), validPaymentRequest(f.user.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.subscriptionCount() != 1 {
		t.Fatalf("expected exactly one subscription row, got %d", f.store.subscriptionCount())
	}

	sub, err := f.store.GetSubscriptionByID(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Status != domain.SubscriptionStatusActive {
		t.Fatalf("expected active status, got %q", sub.Status)
	}
	if !sub.CurrentPeriodEnd.Equal(sub.CurrentPeriodStart.Add(30 * 24 * time.Hour)) {
		t.Fatalf("expected 30 day period, got %s to %s", sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	}
	if !strings.HasPrefix(sub.ExternalSubscriptionID, "demo_sub_") {
		t.Fatalf("expected synthetic external id, got %q", sub.ExternalSubscriptionID)
	}
	if sub.Currency != "usd" || sub.Amount != 3450 {
		t.Fatalf("unexpected amount/currency %d %s", sub.Amount, sub.Currency)
	}
	if result.CardBrand != "visa" || result.Last4 != "4242" {
		t.Fatalf("unexpected card summary %s %s", result.CardBrand, result.Last4)
	}
	if f.events.count(domain.EventSubscriptionActivated) != 1 {
		t.Fatal("expected subscription.activated event")
	}

	user, _ := f.store.GetUserByID(context.Background(), f.user.ID)
	if user.PaymentCustomerID == nil || !strings.HasPrefix(*user.PaymentCustomerID, "demo_cus_") {
		t.Fatalf("expected synthetic customer id on user, got %v", user.PaymentCustomerID)
	}
}

func TestProcessPayment_AcceptsUpsellFormPayload(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{AllowSimulatedPayments: true})
	body := fmt.Sprintf(`{
		"userId": %q,
		"priceId": "price_premium",
		"amount": 3450,
		"currency": "USD",
		"paymentDetails": {
			"cardNumber": "4242424242424242",
			"expiryDate": "12/30",
			"cvv": "123",
			"cardholderName": "Sudheer Narra",
			"billingAddress": {"street": "1234 Elm Street", "city": "Dallas", "state": "TX", "zipCode": "75201", "country": "US"}
		},
		"planDetails": {"name": "Shop Savvy Pro", "price": "$34.50/month", "features": ["Featured placement in our app"]}
	}`, f.user.ID)

	var req domain.ProcessPaymentRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	result, err := f.svc.ProcessPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Amount != 3450 || result.Currency != "usd" || result.Plan != "Shop Savvy Pro" {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.store.subscriptionCount() != 1 {
		t.Fatalf("expected one subscription row, got %d", f.store.subscriptionCount())
	}
}

func TestProcessPayment_CardShapeFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.PaymentDetails)
		msg    string
	}{
		{name: "short card", mutate: func(d *domain.PaymentDetails) { d.CardNumber = "4242 4242 4242" }, msg: "Invalid card number"},
		{name: "expiry without separator", mutate: func(d *domain.PaymentDetails) { d.ExpiryDate = "1230" }, msg: "Invalid expiry date"},
		{name: "short cvv", mutate: func(d *domain.PaymentDetails) { d.CVV = "12" }, msg: "Invalid CVV"},
		{name: "non-ascii digits", mutate: func(d *domain.PaymentDetails) { d.CardNumber = "٤٢٤٢٤٢٤٢" }, msg: "Invalid card number"},
		{name: "non-ascii digits padding ascii", mutate: func(d *domain.PaymentDetails) { d.CardNumber = "42424242٤٢٤٢٤٢٤٢" }, msg: "Invalid card number"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubscriptionFixture(t, SubscriptionOptions{AllowSimulatedPayments: true})
			req := validPaymentRequest(f.user.ID)
			tc.mutate(&req.PaymentDetails)

			_, err := f.svc.ProcessPayment(context.Background(), req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if PublicMessage(err, "") != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, PublicMessage(err, ""))
			}
			if f.store.subscriptionCount() != 0 {
				t.Fatalf("expected no subscription rows, got %d", f.store.subscriptionCount())
			}
		})
	}
}

func TestProcessPayment_DisabledAndUnknownUser(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{AllowSimulatedPayments: false})
	if _, err := f.svc.ProcessPayment(context.Background(), validPaymentRequest(f.user.ID)); !errors.Is(err, ErrSimulationDisabled) {
		t.Fatalf("expected simulation disabled, got %v", err)
	}

	f = newSubscriptionFixture(t, SubscriptionOptions{AllowSimulatedPayments: true})
	req := validPaymentRequest("8f14e45f-ceea-467f-a0b1-2bd3f2b0f1c3")
	if _, err := f.svc.ProcessPayment(context.Background(), req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCardBrand(t *testing.T) {
	tests := map[string]string{
		"4242424242424242": "visa",
		"5555555555554444": "mastercard",
		"2223003122003222": "mastercard",
		"378282246310005":  "amex",
		"6011111111111117": "discover",
		"9999999999999999": "unknown",
		"":                 "unknown",
	}
	for digits, want := range tests {
		if got := cardBrand(digits); got != want {
			t.Fatalf("cardBrand(%q) = %q, want %q", digits, got, want)
		}
	}
}

func TestCreateCheckoutSession_MockMode(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: false})

	session, err := f.svc.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		UserID:     f.user.ID,
		PriceID:    "price_premium",
		SuccessURL: "https://app.example/claim/success?step=done",
		CancelURL:  "https://app.example/claim/success",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.SessionID != "mock_session_id" {
		t.Fatalf("expected mock session id, got %q", session.SessionID)
	}
	u, err := url.Parse(session.URL)
	if err != nil {
		t.Fatalf("invalid mock url: %v", err)
	}
	q := u.Query()
	if q.Get("payment_success") != "true" || q.Get("mock") != "true" || q.Get("step") != "done" {
		t.Fatalf("unexpected mock success url %q", session.URL)
	}
	if f.payments.customerCalls != 0 {
		t.Fatal("expected no provider calls in mock mode")
	}
}

func TestCreateCheckoutSession_CreatesCustomerOnce(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
	req := domain.CheckoutRequest{
		UserID:     f.user.ID,
		PriceID:    "price_premium",
		SuccessURL: "https://app.example/claim/success",
		CancelURL:  "https://app.example/claim/success",
	}

	for i := 0; i < 2; i++ {
		session, err := f.svc.CreateCheckoutSession(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if session.SessionID != "cs_test_1" {
			t.Fatalf("unexpected session %+v", session)
		}
	}
	if f.payments.customerCalls != 1 {
		t.Fatalf("expected one customer creation, got %d", f.payments.customerCalls)
	}
	if f.payments.lastCheckout.CustomerID != "cus_real" || f.payments.lastCheckout.UserID != f.user.ID {
		t.Fatalf("unexpected checkout params %+v", f.payments.lastCheckout)
	}
}

func TestCreateCheckoutSession_UpstreamFailure(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
	f.payments.err = errors.New("stripe: invalid api key sk_live_xxx")

	_, err := f.svc.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{
		UserID:     f.user.ID,
		PriceID:    "price_premium",
		SuccessURL: "https://app.example/ok",
		CancelURL:  "https://app.example/cancel",
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if strings.Contains(err.Error(), "sk_live") {
		t.Fatalf("upstream detail leaked: %v", err)
	}
}

func TestHandleWebhook_CheckoutCompletedIsIdempotent(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
	f.payments.event = &paymentclient.Event{
		ID:   "evt_1",
		Type: paymentclient.EventCheckoutSessionCompleted,
		Checkout: &paymentclient.CompletedCheckout{
			SessionID:      "cs_test_1",
			Mode:           "subscription",
			SubscriptionID: "sub_123",
			CustomerID:     "cus_123",
			Metadata:       map[string]string{"userId": f.user.ID},
		},
	}

	for i := 0; i < 2; i++ {
		if err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=abc"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if f.store.subscriptionCount() != 1 {
		t.Fatalf("expected one subscription after duplicate delivery, got %d", f.store.subscriptionCount())
	}

	sub, err := f.store.GetActiveSubscription(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Amount != 3450 || sub.Currency != "usd" || sub.ExternalPriceID != "premium" {
		t.Fatalf("unexpected checkout subscription %+v", sub)
	}
	if !sub.CurrentPeriodEnd.Equal(fixedNow.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected period end %s", sub.CurrentPeriodEnd)
	}
	if f.events.count(domain.EventSubscriptionActivated) != 1 {
		t.Fatalf("expected one activation event, got %d", f.events.count(domain.EventSubscriptionActivated))
	}
}

func TestHandleWebhook_Errors(t *testing.T) {
	t.Run("bad signature", func(t *testing.T) {
		f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
		f.payments.parseErr = paymentclient.ErrInvalidSignature
		err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "bogus")
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
		f.payments.parseErr = paymentclient.ErrWebhookSecretMissing
		err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=abc")
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})
}

func TestHandleWebhook_SubscriptionDeletedMirrorsStatus(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
	ctx := context.Background()
	created, err := f.store.CreateSubscription(ctx, &domain.Subscription{
		ID: "sub-row-1", UserID: f.user.ID, ExternalSubscriptionID: "sub_live", Status: domain.SubscriptionStatusActive,
		CurrentPeriodStart: fixedNow, CurrentPeriodEnd: fixedNow.Add(billingPeriod),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.payments.event = &paymentclient.Event{
		ID:           "evt_2",
		Type:         paymentclient.EventSubscriptionDeleted,
		Subscription: &paymentclient.SubscriptionState{ID: "sub_live", Status: "canceled"},
	}
	if err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := f.store.GetSubscriptionByID(ctx, created.ID)
	if got.Status != domain.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %q", got.Status)
	}
	if n := f.events.count(domain.EventSubscriptionCanceled); n != 1 {
		t.Fatalf("expected one canceled event, got %d", n)
	}

	f.payments.event.Type = paymentclient.EventSubscriptionUpdated
	if err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := f.events.count(domain.EventSubscriptionCanceled); n != 1 {
		t.Fatalf("expected a repeated canceled status not to publish again, got %d events", n)
	}

	f.payments.event.Subscription.ID = "sub_unknown"
	if err := f.svc.HandleWebhook(ctx, []byte(`{}`), "sig"); err != nil {
		t.Fatalf("expected unknown subscription to be ignored, got %v", err)
	}
}

func TestCancel_TwiceCallsProviderOnce(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true})
	ctx := context.Background()
	created, err := f.store.CreateSubscription(ctx, &domain.Subscription{
		ID: "sub-row-1", UserID: f.user.ID, ExternalSubscriptionID: "sub_live", Status: domain.SubscriptionStatusActive,
		CurrentPeriodStart: fixedNow, CurrentPeriodEnd: fixedNow.Add(billingPeriod),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		sub, err := f.svc.Cancel(ctx, created.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !sub.CancelAtPeriodEnd {
			t.Fatal("expected cancel-at-period-end to be set")
		}
	}
	if f.payments.cancelCalls != 1 {
		t.Fatalf("expected one provider call, got %d", f.payments.cancelCalls)
	}
	if f.events.count(domain.EventSubscriptionCanceled) != 1 {
		t.Fatalf("expected one cancel event, got %d", f.events.count(domain.EventSubscriptionCanceled))
	}
}

func TestCancel_MockModeSetsCanceledStatus(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{AllowSimulatedPayments: true})
	ctx := context.Background()
	result, err := f.svc.ProcessPayment(ctx, validPaymentRequest(f.user.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		sub, err := f.svc.Cancel(ctx, result.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sub.Status != domain.SubscriptionStatusCanceled || !sub.CancelAtPeriodEnd {
			t.Fatalf("unexpected state after cancel %+v", sub)
		}
	}
	if f.payments.cancelCalls != 0 {
		t.Fatal("expected no provider calls in mock mode")
	}
	if _, err := f.svc.GetActive(ctx, f.user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active subscription, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel_SyntheticSubscriptionSkipsProvider(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: true, AllowSimulatedPayments: true})
	ctx := context.Background()
	result, err := f.svc.ProcessPayment(ctx, validPaymentRequest(f.user.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, result.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.payments.cancelCalls != 0 {
		t.Fatalf("expected synthetic subscription to skip provider, got %d calls", f.payments.cancelCalls)
	}
}

func TestCreatePortalSession(t *testing.T) {
	f := newSubscriptionFixture(t, SubscriptionOptions{PaymentsConfigured: false, AllowSimulatedPayments: true})
	ctx := context.Background()
	req := domain.PortalRequest{ReturnURL: "https://app.example/account"}

	if _, err := f.svc.CreatePortalSession(ctx, f.user.ID, req); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error without billing account, got %v", err)
	}

	if _, err := f.svc.ProcessPayment(ctx, validPaymentRequest(f.user.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	session, err := f.svc.CreatePortalSession(ctx, f.user.ID, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.URL != req.ReturnURL {
		t.Fatalf("expected mock portal to return the return url, got %q", session.URL)
	}

	if _, err := f.svc.CreatePortalSession(ctx, "missing", req); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
