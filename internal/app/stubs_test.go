package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/swipesavvy/claim-service/internal/domain"
	"github.com/swipesavvy/claim-service/internal/store"
	"github.com/swipesavvy/claim-service/pkg/paymentclient"
	"github.com/swipesavvy/claim-service/pkg/placesclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore implements the three repositories in memory and enforces the same unique
// constraints as the schema.
type memStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	businesses    map[string]domain.Business
	subscriptions map[string]domain.Subscription
	seq           int
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]domain.User{},
		businesses:    map[string]domain.Business{},
		subscriptions: map[string]domain.Subscription{},
	}
}

func (m *memStore) tick() time.Time {
	m.seq++
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) withBusiness(u domain.User) *domain.User {
	for _, b := range m.businesses {
		if b.UserID == u.ID {
			b.User = nil
			u.Business = &b
			break
		}
	}
	return &u
}

func (m *memStore) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return nil, store.NewConstraintError(store.ConstraintUserEmail, store.ErrDuplicate)
		}
	}
	u := *user
	u.CreatedAt = m.tick()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return m.withBusiness(u), nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.withBusiness(u), nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return m.withBusiness(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *m.withBusiness(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateUser(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.Email != nil {
		for otherID, other := range m.users {
			if otherID != id && other.Email == *update.Email {
				return nil, store.NewConstraintError(store.ConstraintUserEmail, store.ErrDuplicate)
			}
		}
		u.Email = *update.Email
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.HasAcceptedTerms != nil {
		u.HasAcceptedTerms = *update.HasAcceptedTerms
	}
	if update.PaymentCustomerID != nil {
		u.PaymentCustomerID = update.PaymentCustomerID
	}
	u.UpdatedAt = m.tick()
	m.users[id] = u
	return m.withBusiness(u), nil
}

func (m *memStore) SetPaymentCustomerID(ctx context.Context, userID, customerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.PaymentCustomerID != nil {
		return false, nil
	}
	u.PaymentCustomerID = &customerID
	m.users[userID] = u
	return true, nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	for bid, b := range m.businesses {
		if b.UserID == id {
			delete(m.businesses, bid)
		}
	}
	for sid, s := range m.subscriptions {
		if s.UserID == id {
			delete(m.subscriptions, sid)
		}
	}
	return nil
}

func (m *memStore) ownerOf(b domain.Business) *domain.Business {
	if u, ok := m.users[b.UserID]; ok {
		summary := u.Summary()
		b.User = &summary
	}
	return &b
}

func (m *memStore) CreateBusiness(ctx context.Context, business *domain.Business) (*domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[business.UserID]; !ok {
		return nil, store.NewConstraintError("businesses_user_id_fkey", store.ErrMissingReference)
	}
	for _, existing := range m.businesses {
		if existing.UserID == business.UserID {
			return nil, store.NewConstraintError(store.ConstraintBusinessUser, store.ErrDuplicate)
		}
		if existing.GooglePlaceID == business.GooglePlaceID {
			return nil, store.NewConstraintError(store.ConstraintBusinessPlace, store.ErrDuplicate)
		}
	}
	b := *business
	b.CreatedAt = m.tick()
	b.UpdatedAt = b.CreatedAt
	m.businesses[b.ID] = b
	return m.ownerOf(b), nil
}

func (m *memStore) GetBusinessByID(ctx context.Context, id string) (*domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.ownerOf(b), nil
}

func (m *memStore) GetBusinessByPlaceID(ctx context.Context, placeID string) (*domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.businesses {
		if b.GooglePlaceID == placeID {
			return m.ownerOf(b), nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Business, 0, len(m.businesses))
	for _, b := range m.businesses {
		out = append(out, *m.ownerOf(b))
	}
	return out, nil
}

func (m *memStore) UpdateBusiness(ctx context.Context, id string, req domain.UpdateBusinessRequest) (*domain.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.businesses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Address != nil {
		b.Address = *req.Address
	}
	if req.Phone != nil {
		b.Phone = *req.Phone
	}
	m.businesses[id] = b
	return m.ownerOf(b), nil
}

func (m *memStore) DeleteBusiness(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.businesses[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.businesses, id)
	return nil
}

func (m *memStore) CreateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSubscription(sub)
}

func (m *memStore) insertSubscription(sub *domain.Subscription) (*domain.Subscription, error) {
	if _, ok := m.users[sub.UserID]; !ok {
		return nil, store.NewConstraintError("subscriptions_user_id_fkey", store.ErrMissingReference)
	}
	for _, existing := range m.subscriptions {
		if existing.ExternalSubscriptionID == sub.ExternalSubscriptionID {
			return nil, store.NewConstraintError(store.ConstraintSubscriptionExternalID, store.ErrDuplicate)
		}
	}
	s := *sub
	s.CreatedAt = m.tick()
	s.UpdatedAt = s.CreatedAt
	m.subscriptions[s.ID] = s
	return &s, nil
}

func (m *memStore) CreateSubscriptionIfAbsent(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subscriptions {
		if existing.ExternalSubscriptionID == sub.ExternalSubscriptionID {
			return &existing, false, nil
		}
	}
	created, err := m.insertSubscription(sub)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (m *memStore) GetSubscriptionByID(ctx context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) ListSubscriptionsByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Subscription{}
	for _, s := range m.subscriptions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	subs, _ := m.ListSubscriptionsByUser(ctx, userID)
	for _, s := range subs {
		if s.IsActive() {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) MarkCancelAtPeriodEnd(ctx context.Context, id string, status *string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	s.CancelAtPeriodEnd = true
	if status != nil {
		s.Status = *status
	}
	m.subscriptions[id] = s
	return &s, nil
}

func (m *memStore) MirrorSubscription(ctx context.Context, externalID string, mirror domain.SubscriptionMirror) (*domain.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.subscriptions {
		if s.ExternalSubscriptionID != externalID {
			continue
		}
		previous := s.Status
		s.Status = mirror.Status
		s.CancelAtPeriodEnd = mirror.CancelAtPeriodEnd
		if mirror.CurrentPeriodStart != nil {
			s.CurrentPeriodStart = *mirror.CurrentPeriodStart
		}
		if mirror.CurrentPeriodEnd != nil {
			s.CurrentPeriodEnd = *mirror.CurrentPeriodEnd
		}
		m.subscriptions[id] = s
		return &s, previous, nil
	}
	return nil, "", store.ErrNotFound
}

func (m *memStore) CancelLapsedSubscriptions(ctx context.Context, asOf time.Time) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lapsed := []domain.Subscription{}
	for id, s := range m.subscriptions {
		if s.CancelAtPeriodEnd && !s.CurrentPeriodEnd.After(asOf) && s.IsActive() {
			s.Status = domain.SubscriptionStatusCanceled
			m.subscriptions[id] = s
			lapsed = append(lapsed, s)
		}
	}
	return lapsed, nil
}

func (m *memStore) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func (m *memStore) businessCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.businesses)
}

func (m *memStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// recordingPublisher captures published routing keys and bodies.
type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	bodies [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	raw, _ := json.Marshal(body)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.bodies = append(p.bodies, raw)
	return nil
}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.keys {
		if k == routingKey {
			n++
		}
	}
	return n
}

type placesStub struct {
	configured  bool
	results     []placesclient.Place
	details     map[string]placesclient.Place
	err         error
	searchCalls int
}

func (p *placesStub) Configured() bool { return p.configured }

func (p *placesStub) FindPlaceFromText(ctx context.Context, input string) ([]placesclient.Place, error) {
	p.searchCalls++
	if p.err != nil {
		return nil, p.err
	}
	return p.results, nil
}

func (p *placesStub) GetPlaceDetails(ctx context.Context, placeID string) (*placesclient.Place, error) {
	if p.err != nil {
		return nil, p.err
	}
	place, ok := p.details[placeID]
	if !ok {
		return nil, &placesclient.ErrorResponse{HTTPStatus: 200, Status: "NOT_FOUND"}
	}
	return &place, nil
}

type paymentsStub struct {
	customerID    string
	session       *paymentclient.CheckoutSession
	portalURL     string
	event         *paymentclient.Event
	parseErr      error
	err           error
	customerCalls int
	cancelCalls   int
	lastCheckout  paymentclient.CheckoutParams
}

func (p *paymentsStub) CreateCustomer(ctx context.Context, params paymentclient.CustomerParams) (string, error) {
	p.customerCalls++
	if p.err != nil {
		return "", p.err
	}
	return p.customerID, nil
}

func (p *paymentsStub) CreateCheckoutSession(ctx context.Context, params paymentclient.CheckoutParams) (*paymentclient.CheckoutSession, error) {
	p.lastCheckout = params
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func (p *paymentsStub) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.portalURL, nil
}

func (p *paymentsStub) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	p.cancelCalls++
	return p.err
}

func (p *paymentsStub) ParseWebhookEvent(payload []byte, signature string) (*paymentclient.Event, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.event, nil
}
