/**
 * @description
 * This file contains the shared pieces of the claim-service HTTP layer: the handler
 * set, the service contracts it depends on, and the helpers that decode requests,
 * write JSON and map service errors onto status codes.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/google/uuid: For path id validation.
 * - internal/app, internal/domain: For service errors and models.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/swipesavvy/claim-service/internal/app"
	"github.com/swipesavvy/claim-service/internal/domain"
)

const maxRequestBodyBytes = 1 << 20

// UserService is the user management contract used by the handlers.
type UserService interface {
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	CreateBusiness(ctx context.Context, userID string, req domain.CreateBusinessRequest) (*domain.Business, error)
}

// BusinessService is the place search and business contract used by the handlers.
type BusinessService interface {
	FindPlaces(ctx context.Context, query string) ([]domain.PlaceCandidate, error)
	PlaceDetails(ctx context.Context, placeID string) (*domain.PlaceDetails, error)
	List(ctx context.Context) ([]domain.Business, error)
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	GetByPlaceID(ctx context.Context, placeID string) (*domain.Business, error)
	Update(ctx context.Context, id string, req domain.UpdateBusinessRequest) (*domain.Business, error)
	Delete(ctx context.Context, id string) error
}

// SubscriptionService is the billing contract used by the handlers.
type SubscriptionService interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	ProcessPayment(ctx context.Context, req domain.ProcessPaymentRequest) (*domain.PaymentResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
	GetActive(ctx context.Context, userID string) (*domain.Subscription, error)
	CreatePortalSession(ctx context.Context, userID string, req domain.PortalRequest) (*domain.PortalSession, error)
	Cancel(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
}

// ClaimService is the wizard contract used by the handlers.
type ClaimService interface {
	Start(ctx context.Context, req domain.StartClaimRequest) (*domain.ClaimResponse, error)
	Current(token string) (*domain.ClaimResponse, error)
	CreateAccount(ctx context.Context, token string, req domain.ClaimAccountRequest) (*domain.ClaimResponse, error)
	AcceptTerms(ctx context.Context, token string, req domain.ClaimTermsRequest) (*domain.ClaimResponse, error)
	Success(ctx context.Context, token string) domain.ClaimSuccessView
}

// Handlers holds the application services the HTTP handlers use.
type Handlers struct {
	users         UserService
	businesses    BusinessService
	subscriptions SubscriptionService
	claims        ClaimService
}

// NewHandlers creates the handler set.
func NewHandlers(users UserService, businesses BusinessService, subscriptions SubscriptionService, claims ClaimService) *Handlers {
	return &Handlers{
		users:         users,
		businesses:    businesses,
		subscriptions: subscriptions,
		claims:        claims,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("level=warn component=api msg=\"failed to encode response\" err=%v", err)
		}
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Message: message})
}

// mapErrorToStatus translates a service error into an HTTP status and client message.
func mapErrorToStatus(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrInvalidClaimToken):
		return http.StatusBadRequest, app.PublicMessage(err, "Invalid request")
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, app.PublicMessage(err, "Not found")
	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict, app.PublicMessage(err, "Conflict")
	case errors.Is(err, app.ErrSimulationDisabled):
		return http.StatusForbidden, app.PublicMessage(err, "Forbidden")
	case errors.Is(err, app.ErrUpstream), errors.Is(err, app.ErrConfiguration):
		return http.StatusInternalServerError, app.PublicMessage(err, "Internal server error")
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// writeServiceError maps err and logs anything that ends up as a 500.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	status, message := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
	}
	writeError(w, status, message)
}

// decodeJSON reads a JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// parseUUIDParam validates a UUID path parameter, writing a 400 when malformed.
func parseUUIDParam(w http.ResponseWriter, raw, label string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+label)
		return "", false
	}
	return id.String(), true
}
