package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swipesavvy/claim-service/internal/domain"
)

// Upper bound on a provider webhook payload.
const maxWebhookBodyBytes = 65536

const webhookSignatureHeader = "Stripe-Signature"

// CreateCheckoutHandler handles POST /subscriptions/checkout.
func (h *Handlers) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.subscriptions.CreateCheckoutSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create_checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ProcessPaymentHandler handles POST /subscriptions/process-payment.
func (h *Handlers) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ProcessPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.subscriptions.ProcessPayment(r.Context(), req)
	if err != nil {
		writeServiceError(w, "process_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": result,
	})
}

// WebhookHandler handles POST /subscriptions/webhook. The raw body is passed through
// untouched because the signature covers its exact bytes.
func (h *Handlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Webhook payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Could not read webhook payload")
		return
	}

	if err := h.subscriptions.HandleWebhook(r.Context(), payload, r.Header.Get(webhookSignatureHeader)); err != nil {
		writeServiceError(w, "subscription_webhook", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// ListUserSubscriptionsHandler handles GET /subscriptions/user/{userId}.
func (h *Handlers) ListUserSubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUUIDParam(w, chi.URLParam(r, "userId"), "user ID")
	if !ok {
		return
	}

	subs, err := h.subscriptions.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "list_user_subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetActiveSubscriptionHandler handles GET /subscriptions/user/{userId}/active.
func (h *Handlers) GetActiveSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUUIDParam(w, chi.URLParam(r, "userId"), "user ID")
	if !ok {
		return
	}

	sub, err := h.subscriptions.GetActive(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "get_active_subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// CreatePortalHandler handles POST /subscriptions/user/{userId}/portal.
func (h *Handlers) CreatePortalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUUIDParam(w, chi.URLParam(r, "userId"), "user ID")
	if !ok {
		return
	}
	var req domain.PortalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.subscriptions.CreatePortalSession(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, "create_portal", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// CancelSubscriptionHandler handles DELETE /subscriptions/{subscriptionId}.
func (h *Handlers) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "subscriptionId"), "subscription ID")
	if !ok {
		return
	}

	sub, err := h.subscriptions.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, "cancel_subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
