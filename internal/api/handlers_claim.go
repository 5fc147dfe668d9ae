package api

import (
	"net/http"
	"strings"

	"github.com/swipesavvy/claim-service/internal/domain"
)

const claimTokenHeader = "X-Claim-Token"

// claimToken reads the continuation token from the header, falling back to the
// token query parameter so a claim link can be opened on another device.
func claimToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(claimTokenHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// StartClaimHandler handles POST /claims.
func (h *Handlers) StartClaimHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.StartClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.claims.Start(r.Context(), req)
	if err != nil {
		writeServiceError(w, "start_claim", err)
		return
	}
	w.Header().Set(claimTokenHeader, resp.Token)
	writeJSON(w, http.StatusCreated, resp)
}

// CurrentClaimHandler handles GET /claims/current.
func (h *Handlers) CurrentClaimHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.claims.Current(claimToken(r))
	if err != nil {
		writeServiceError(w, "current_claim", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClaimAccountHandler handles POST /claims/account.
func (h *Handlers) ClaimAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ClaimAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.claims.CreateAccount(r.Context(), claimToken(r), req)
	if err != nil {
		writeServiceError(w, "claim_account", err)
		return
	}
	w.Header().Set(claimTokenHeader, resp.Token)
	writeJSON(w, http.StatusCreated, resp)
}

// ClaimTermsHandler handles POST /claims/terms.
func (h *Handlers) ClaimTermsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ClaimTermsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.claims.AcceptTerms(r.Context(), claimToken(r), req)
	if err != nil {
		writeServiceError(w, "claim_terms", err)
		return
	}
	w.Header().Set(claimTokenHeader, resp.Token)
	writeJSON(w, http.StatusCreated, resp)
}

// ClaimSuccessHandler handles GET /claims/success. It always answers 200.
func (h *Handlers) ClaimSuccessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.claims.Success(r.Context(), claimToken(r)))
}
