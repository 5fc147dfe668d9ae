/**
 * @description
 * This file sets up the HTTP router for the claim-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * shared middleware stack.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for the web client.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries the settings the router needs beyond the handlers.
type RouterOptions struct {
	ClientURL       string
	APIBaseURL      string
	Limiter         RateLimiter
	SearchPerMinute int
	RequestTimeout  time.Duration
}

// Routes creates and returns the router for the claim service.
func Routes(h *Handlers, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", claimTokenHeader},
		ExposedHeaders:   []string{claimTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "apiBaseUrl": opts.APIBaseURL})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.CreateUserHandler)
		r.Get("/", h.ListUsersHandler)
		r.Get("/{id}", h.GetUserHandler)
		r.Put("/{id}", h.UpdateUserHandler)
		r.Delete("/{id}", h.DeleteUserHandler)
		r.Post("/{id}/business", h.CreateUserBusinessHandler)
	})

	r.Route("/business", func(r chi.Router) {
		// Provider-backed lookups, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(opts.Limiter, "places", opts.SearchPerMinute))
			r.Get("/find-google-place", h.FindGooglePlaceHandler)
			r.Get("/place-details/{placeId}", h.PlaceDetailsHandler)
		})
		r.Get("/", h.ListBusinessesHandler)
		r.Get("/by-place-id/{googlePlaceId}", h.GetBusinessByPlaceIDHandler)
		r.Get("/{id}", h.GetBusinessHandler)
		r.Put("/{id}", h.UpdateBusinessHandler)
		r.Delete("/{id}", h.DeleteBusinessHandler)
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/checkout", h.CreateCheckoutHandler)
		r.Post("/process-payment", h.ProcessPaymentHandler)
		r.Post("/webhook", h.WebhookHandler)
		r.Get("/user/{userId}", h.ListUserSubscriptionsHandler)
		r.Get("/user/{userId}/active", h.GetActiveSubscriptionHandler)
		r.Post("/user/{userId}/portal", h.CreatePortalHandler)
		r.Delete("/{subscriptionId}", h.CancelSubscriptionHandler)
	})

	r.Route("/claims", func(r chi.Router) {
		r.Post("/", h.StartClaimHandler)
		r.Get("/current", h.CurrentClaimHandler)
		r.Post("/account", h.ClaimAccountHandler)
		r.Post("/terms", h.ClaimTermsHandler)
		r.Get("/success", h.ClaimSuccessHandler)
	})

	return r
}
