/**
 * @description
 * This file defines the user-related domain models for the claim-service.
 * It includes the User struct mapped to the database, the restricted owner
 * projection embedded in business responses, and the request DTOs.
 */
package domain

import "time"

// User represents a registered business owner.
type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"-"`
	HasAcceptedTerms  bool      `json:"hasAcceptedTerms"`
	PaymentCustomerID *string   `json:"stripeCustomerId,omitempty"`
	Business          *Business `json:"business,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// UserSummary is the restricted user projection (id/email/name only).
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Summary returns the restricted projection of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.Name}
}

// CreateUserRequest is the payload for POST /users.
type CreateUserRequest struct {
	Email            string `json:"email" validate:"required,email"`
	Name             string `json:"name" validate:"required"`
	Password         string `json:"password" validate:"required,min=8"`
	HasAcceptedTerms bool   `json:"hasAcceptedTerms"`
}

// UpdateUserRequest is the payload for PUT /users/{id}. Nil fields are left untouched.
type UpdateUserRequest struct {
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Name             *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Password         *string `json:"password,omitempty" validate:"omitempty,min=8"`
	HasAcceptedTerms *bool   `json:"hasAcceptedTerms,omitempty"`
}

// UserUpdate is the set of column changes the store applies.
type UserUpdate struct {
	Email             *string
	Name              *string
	PasswordHash      *string
	HasAcceptedTerms  *bool
	PaymentCustomerID *string
}
