package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swipesavvy/claim-service/internal/domain"
)

// CreateUserHandler handles POST /users.
func (h *Handlers) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, "create_user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// ListUsersHandler handles GET /users.
func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeServiceError(w, "list_users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUserHandler handles GET /users/{id}.
func (h *Handlers) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "user ID")
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get_user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserHandler handles PUT /users/{id}.
func (h *Handlers) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "user ID")
	if !ok {
		return
	}
	var req domain.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.users.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "update_user", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// DeleteUserHandler handles DELETE /users/{id}.
func (h *Handlers) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "user ID")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete_user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// CreateUserBusinessHandler handles POST /users/{id}/business.
func (h *Handlers) CreateUserBusinessHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, chi.URLParam(r, "id"), "user ID")
	if !ok {
		return
	}
	var req domain.CreateBusinessRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	business, err := h.users.CreateBusiness(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, "create_user_business", err)
		return
	}
	writeJSON(w, http.StatusCreated, business)
}
