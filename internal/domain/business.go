package domain

import "time"

// Business is a claimed listing owned by exactly one user.
type Business struct {
	ID            string       `json:"id"`
	GooglePlaceID string       `json:"googlePlaceId"`
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	Phone         string       `json:"phone"`
	UserID        string       `json:"userId"`
	User          *UserSummary `json:"user,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// CreateBusinessRequest is the payload for POST /users/{id}/business.
type CreateBusinessRequest struct {
	GooglePlaceID string `json:"googlePlaceId" validate:"required"`
	Name          string `json:"name" validate:"required"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
}

// UpdateBusinessRequest is the payload for PUT /business/{id}.
type UpdateBusinessRequest struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// PlaceCandidate is a normalized place search result.
type PlaceCandidate struct {
	PlaceID     string `json:"placeId"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// PlacePhoto references a provider-hosted photo.
type PlacePhoto struct {
	PhotoReference string `json:"photoReference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// PlaceDetails extends a candidate with photos, rating and website.
type PlaceDetails struct {
	PlaceCandidate
	Photos  []PlacePhoto `json:"photos"`
	Rating  *float64     `json:"rating,omitempty"`
	Website string       `json:"website,omitempty"`
}
