package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swipesavvy/claim-service/internal/domain"
)

// FindGooglePlaceHandler handles GET /business/find-google-place?query=.
func (h *Handlers) FindGooglePlaceHandler(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.businesses.FindPlaces(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeServiceError(w, "find_google_place", err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

// PlaceDetailsHandler handles GET /business/place-details/{placeId}.
func (h *Handlers) PlaceDetailsHandler(w http.ResponseWriter, r *http.Request) {
	details, err := h.businesses.PlaceDetails(r.Context(), chi.URLParam(r, "placeId"))
	if err != nil {
		writeServiceError(w, "place_details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// ListBusinessesHandler handles GET /business.
func (h *Handlers) ListBusinessesHandler(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.businesses.List(r.Context())
	if err != nil {
		writeServiceError(w, "list_businesses", err)
		return
	}
	writeJSON(w, http.StatusOK, businesses)
}

// GetBusinessHandler handles GET /business/{id}.
func (h *Handlers) GetBusinessHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "business ID")
	if !ok {
		return
	}

	business, err := h.businesses.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get_business", err)
		return
	}
	writeJSON(w, http.StatusOK, business)
}

// GetBusinessByPlaceIDHandler handles GET /business/by-place-id/{googlePlaceId}.
func (h *Handlers) GetBusinessByPlaceIDHandler(w http.ResponseWriter, r *http.Request) {
	placeID := strings.TrimSpace(chi.URLParam(r, "googlePlaceId"))
	if placeID == "" {
		writeError(w, http.StatusBadRequest, "googlePlaceId is required")
		return
	}

	business, err := h.businesses.GetByPlaceID(r.Context(), placeID)
	if err != nil {
		writeServiceError(w, "get_business_by_place", err)
		return
	}
	writeJSON(w, http.StatusOK, business)
}

// UpdateBusinessHandler handles PUT /business/{id}.
func (h *Handlers) UpdateBusinessHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "business ID")
	if !ok {
		return
	}
	var req domain.UpdateBusinessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	business, err := h.businesses.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "update_business", err)
		return
	}
	writeJSON(w, http.StatusOK, business)
}

// DeleteBusinessHandler handles DELETE /business/{id}.
func (h *Handlers) DeleteBusinessHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "business ID")
	if !ok {
		return
	}

	if err := h.businesses.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete_business", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Business deleted successfully"})
}
