package domain

import "time"

// Routing keys for events published on the claim events exchange.
const (
	EventUserCreated           = "user.created"
	EventBusinessClaimed       = "business.claimed"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCanceled  = "subscription.canceled"
)

// UserCreatedEvent is published after an account is created.
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// BusinessClaimedEvent is published after a business is attached to its owner.
type BusinessClaimedEvent struct {
	BusinessID    string    `json:"business_id"`
	UserID        string    `json:"user_id"`
	GooglePlaceID string    `json:"google_place_id"`
	ClaimedAt     time.Time `json:"claimed_at"`
}

// SubscriptionEvent is published when a subscription is activated or canceled.
type SubscriptionEvent struct {
	SubscriptionID         string    `json:"subscription_id"`
	UserID                 string    `json:"user_id"`
	ExternalSubscriptionID string    `json:"external_subscription_id"`
	Status                 string    `json:"status"`
	Source                 string    `json:"source"`
	OccurredAt             time.Time `json:"occurred_at"`
}
