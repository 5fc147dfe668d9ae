package app

import (
	"context"
	"time"

	"github.com/swipesavvy/claim-service/internal/domain"
	"github.com/swipesavvy/claim-service/pkg/paymentclient"
	"github.com/swipesavvy/claim-service/pkg/placesclient"
)

// UserRepository defines the user storage operations the services need.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error)
	SetPaymentCustomerID(ctx context.Context, userID, customerID string) (bool, error)
	DeleteUser(ctx context.Context, id string) error
}

// BusinessRepository defines the business storage operations the services need.
type BusinessRepository interface {
	CreateBusiness(ctx context.Context, business *domain.Business) (*domain.Business, error)
	GetBusinessByID(ctx context.Context, id string) (*domain.Business, error)
	GetBusinessByPlaceID(ctx context.Context, placeID string) (*domain.Business, error)
	ListBusinesses(ctx context.Context) ([]domain.Business, error)
	UpdateBusiness(ctx context.Context, id string, req domain.UpdateBusinessRequest) (*domain.Business, error)
	DeleteBusiness(ctx context.Context, id string) error
}

// SubscriptionRepository defines the subscription storage operations the services need.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)
	CreateSubscriptionIfAbsent(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, bool, error)
	GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	MarkCancelAtPeriodEnd(ctx context.Context, id string, status *string) (*domain.Subscription, error)
	MirrorSubscription(ctx context.Context, externalID string, mirror domain.SubscriptionMirror) (*domain.Subscription, string, error)
	CancelLapsedSubscriptions(ctx context.Context, asOf time.Time) ([]domain.Subscription, error)
}

// PlaceProvider is the place-search upstream.
type PlaceProvider interface {
	Configured() bool
	FindPlaceFromText(ctx context.Context, input string) ([]placesclient.Place, error)
	GetPlaceDetails(ctx context.Context, placeID string) (*placesclient.Place, error)
}

// PaymentProvider is the payment upstream.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, p paymentclient.CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, p paymentclient.CheckoutParams) (*paymentclient.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
	ParseWebhookEvent(payload []byte, signature string) (*paymentclient.Event, error)
}

// EventPublisher publishes domain events. Implementations must be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// PlaceCache caches normalized search results keyed by query.
type PlaceCache interface {
	GetCandidates(ctx context.Context, query string) ([]domain.PlaceCandidate, bool)
	SetCandidates(ctx context.Context, query string, candidates []domain.PlaceCandidate)
}
