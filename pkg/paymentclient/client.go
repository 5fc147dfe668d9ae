/**
 * @description
 * This package wraps the Stripe API for the claim-service. It exposes the handful
 * of calls the subscription flow needs (customers, hosted checkout, billing portal,
 * cancel-at-period-end) and verifies signed webhook payloads.
 *
 * The underlying Stripe client is constructed lazily on first use.
 *
 * @dependencies
 * - github.com/stripe/stripe-go/v76: Official Stripe Go SDK.
 */
package paymentclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event types the subscription flow reacts to.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

var (
	// ErrWebhookSecretMissing is returned when webhook verification is attempted without a secret.
	ErrWebhookSecretMissing = errors.New("webhook signing secret is not configured")
	// ErrInvalidSignature is returned when a webhook payload fails verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Client is a lazily initialised Stripe client.
type Client struct {
	secretKey     string
	webhookSecret string

	once sync.Once
	api  *client.API
}

// NewClient creates a new payment client. No network activity happens until the first call.
func NewClient(secretKey, webhookSecret string) *Client {
	return &Client{secretKey: secretKey, webhookSecret: webhookSecret}
}

func (c *Client) stripe() *client.API {
	c.once.Do(func() {
		c.api = client.New(c.secretKey, nil)
	})
	return c.api
}

// CustomerParams describes a payment customer to create.
type CustomerParams struct {
	Email  string
	Name   string
	UserID string
}

// CheckoutParams describes a subscription-mode hosted checkout.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	UserID     string
}

// CheckoutSession is a created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// CompletedCheckout is the payload of a checkout.session.completed event.
type CompletedCheckout struct {
	SessionID      string
	Mode           string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
}

// SubscriptionState is the payload of a customer.subscription.* event.
type SubscriptionState struct {
	ID                 string
	CustomerID         string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// Event is a verified webhook event reduced to the fields the service uses.
type Event struct {
	ID           string
	Type         string
	Checkout     *CompletedCheckout
	Subscription *SubscriptionState
}

// CreateCustomer creates a payment customer and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, p CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
		Name:  stripe.String(p.Name),
	}
	params.Context = ctx
	params.AddMetadata("userId", p.UserID)

	cust, err := c.stripe().Customers.New(params)
	if err != nil {
		log.Printf("level=warn component=payment_client op=create_customer user_id=%s err=%v", p.UserID, err)
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a hosted subscription checkout.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("userId", p.UserID)

	session, err := c.stripe().CheckoutSessions.New(params)
	if err != nil {
		log.Printf("level=warn component=payment_client op=create_checkout user_id=%s price_id=%s err=%v", p.UserID, p.PriceID, err)
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession creates a billing portal session and returns its URL.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := c.stripe().BillingPortalSessions.New(params)
	if err != nil {
		log.Printf("level=warn component=payment_client op=create_portal customer_id=%s err=%v", customerID, err)
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}

// CancelAtPeriodEnd asks the provider to stop renewing the subscription.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx

	if _, err := c.stripe().Subscriptions.Update(subscriptionID, params); err != nil {
		log.Printf("level=warn component=payment_client op=cancel_subscription subscription_id=%s err=%v", subscriptionID, err)
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}

// ParseWebhookEvent verifies the payload against the signing secret and decodes it.
func (c *Client) ParseWebhookEvent(payload []byte, signature string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrWebhookSecretMissing
	}

	raw, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	event := &Event{ID: raw.ID, Type: string(raw.Type)}
	if raw.Data == nil {
		return event, nil
	}

	switch event.Type {
	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		event.Checkout = &CompletedCheckout{
			SessionID: session.ID,
			Mode:      string(session.Mode),
			Metadata:  session.Metadata,
		}
		if session.Subscription != nil {
			event.Checkout.SubscriptionID = session.Subscription.ID
		}
		if session.Customer != nil {
			event.Checkout.CustomerID = session.Customer.ID
		}
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		event.Subscription = &SubscriptionState{
			ID:                sub.ID,
			Status:            string(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}
		if sub.Customer != nil {
			event.Subscription.CustomerID = sub.Customer.ID
		}
		if sub.CurrentPeriodStart > 0 {
			event.Subscription.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
		}
		if sub.CurrentPeriodEnd > 0 {
			event.Subscription.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}
	}
	return event, nil
}
