/**
 * @description
 * This file defines the subscription domain models for the claim-service,
 * including the stored Subscription row and the checkout, direct-payment
 * and portal request/response DTOs.
 */
package domain

import "time"

// Subscription statuses written by this service. The column itself is open-ended
// and mirrors whatever the payment provider reports.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription represents one billing subscription of a user.
type Subscription struct {
	ID                     string    `json:"id"`
	UserID                 string    `json:"userId"`
	ExternalSubscriptionID string    `json:"stripeSubscriptionId"`
	ExternalCustomerID     string    `json:"stripeCustomerId"`
	ExternalPriceID        string    `json:"stripePriceId"`
	Status                 string    `json:"status"`
	CurrentPeriodStart     time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd       time.Time `json:"currentPeriodEnd"`
	CancelAtPeriodEnd      bool      `json:"cancelAtPeriodEnd"`
	Amount                 int64     `json:"amount"`
	Currency               string    `json:"currency"`
	Plan                   string    `json:"plan"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// IsActive reports whether the subscription counts as the user's active one.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// SubscriptionMirror carries provider-reported state onto a stored row.
type SubscriptionMirror struct {
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// CheckoutRequest is the payload for POST /subscriptions/checkout.
type CheckoutRequest struct {
	UserID     string `json:"userId" validate:"required,uuid"`
	PriceID    string `json:"priceId" validate:"required"`
	SuccessURL string `json:"successUrl" validate:"required,url"`
	CancelURL  string `json:"cancelUrl" validate:"required,url"`
}

// CheckoutSession is the result of starting a hosted checkout.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// BillingAddress is the cardholder's address on the direct-payment form. The upsell
// form posts street and zipCode; line1 and postalCode are accepted as aliases.
type BillingAddress struct {
	Street     string `json:"street"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zipCode"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// PaymentDetails is the card payload submitted by the upsell form.
type PaymentDetails struct {
	CardNumber     string         `json:"cardNumber"`
	ExpiryDate     string         `json:"expiryDate"`
	CVV            string         `json:"cvv"`
	CardholderName string         `json:"cardholderName"`
	BillingAddress BillingAddress `json:"billingAddress"`
}

// PlanDetails describes the plan the user is purchasing.
type PlanDetails struct {
	Name     string   `json:"name" validate:"required"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

// ProcessPaymentRequest is the payload for POST /subscriptions/process-payment.
type ProcessPaymentRequest struct {
	UserID         string         `json:"userId" validate:"required,uuid"`
	PriceID        string         `json:"priceId" validate:"required"`
	Amount         int64          `json:"amount" validate:"gt=0"`
	Currency       string         `json:"currency" validate:"required,len=3"`
	PaymentDetails PaymentDetails `json:"paymentDetails"`
	PlanDetails    PlanDetails    `json:"planDetails"`
}

// PaymentResult is the summary returned after a simulated payment.
type PaymentResult struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	Plan            string    `json:"plan"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	NextBillingDate time.Time `json:"nextBillingDate"`
	Features        []string  `json:"features"`
	CardBrand       string    `json:"cardBrand"`
	Last4           string    `json:"last4"`
}

// PortalRequest is the payload for POST /subscriptions/user/{userId}/portal.
type PortalRequest struct {
	ReturnURL string `json:"returnUrl" validate:"required,url"`
}

// PortalSession is a billing portal URL for the user.
type PortalSession struct {
	URL string `json:"url"`
}
