/**
 * @description
 * This package provides a client for the Google Places web service. It wraps the
 * "find place from text" and "place details" endpoints, builds the query strings,
 * and decodes the status-bearing JSON envelopes the API returns.
 *
 * @dependencies
 * - context, encoding/json, fmt, net/http, net/url, time: Standard Go libraries.
 */
package placesclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Places API root.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// Field masks requested from the provider.
const (
	searchFields  = "place_id,name,formatted_address,international_phone_number"
	detailsFields = "place_id,name,formatted_address,international_phone_number,photos,rating,website"
)

// Provider status values that are not errors.
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
	StatusNotFound    = "NOT_FOUND"
	StatusInvalid     = "INVALID_REQUEST"
)

// ErrMissingAPIKey is returned when the client is used without a key.
var ErrMissingAPIKey = errors.New("places api key is not configured")

// Client is a client for the Google Places API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Places API client.
func NewClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != ""
}

// Photo is a photo reference attached to a place.
type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// Place is the subset of place fields this service requests.
type Place struct {
	PlaceID                  string   `json:"place_id"`
	Name                     string   `json:"name"`
	FormattedAddress         string   `json:"formatted_address"`
	InternationalPhoneNumber string   `json:"international_phone_number"`
	Photos                   []Photo  `json:"photos"`
	Rating                   *float64 `json:"rating"`
	Website                  string   `json:"website"`
}

// FindPlaceResponse is the envelope of the find-place endpoint.
type FindPlaceResponse struct {
	Candidates   []Place `json:"candidates"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
}

// DetailsResponse is the envelope of the details endpoint.
type DetailsResponse struct {
	Result       Place  `json:"result"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// ErrorResponse represents a non-OK status reported by the Places API.
type ErrorResponse struct {
	HTTPStatus int
	Status     string
	Message    string
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places api error: %s - %s", e.Status, e.Message)
	}
	if e.Status != "" {
		return fmt.Sprintf("places api error: %s", e.Status)
	}
	return fmt.Sprintf("places api error: http status %d", e.HTTPStatus)
}

// NotFound reports whether the provider rejected the place reference.
func (e *ErrorResponse) NotFound() bool {
	return e.Status == StatusNotFound || e.Status == StatusInvalid
}

// FindPlaceFromText resolves a free-text query to place candidates.
func (c *Client) FindPlaceFromText(ctx context.Context, input string) ([]Place, error) {
	params := url.Values{}
	params.Set("input", input)
	params.Set("inputtype", "textquery")
	params.Set("fields", searchFields)

	var resp FindPlaceResponse
	if err := c.get(ctx, "find_place", "/findplacefromtext/json", params, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case StatusOK, StatusZeroResults:
		return resp.Candidates, nil
	default:
		log.Printf("level=warn component=places_client op=find_place status=%s msg=%q", resp.Status, resp.ErrorMessage)
		return nil, &ErrorResponse{HTTPStatus: http.StatusOK, Status: resp.Status, Message: resp.ErrorMessage}
	}
}

// GetPlaceDetails fetches the details of a single place.
func (c *Client) GetPlaceDetails(ctx context.Context, placeID string) (*Place, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)

	var resp DetailsResponse
	if err := c.get(ctx, "place_details", "/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != StatusOK {
		log.Printf("level=warn component=places_client op=place_details place_id=%s status=%s msg=%q", placeID, resp.Status, resp.ErrorMessage)
		return nil, &ErrorResponse{HTTPStatus: http.StatusOK, Status: resp.Status, Message: resp.ErrorMessage}
	}
	return &resp.Result, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out interface{}) error {
	if !c.Configured() {
		return ErrMissingAPIKey
	}
	params.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Status       string `json:"status"`
			ErrorMessage string `json:"error_message"`
		}
		_ = json.Unmarshal(bodyBytes, &envelope)
		log.Printf("level=warn component=places_client op=%s status=%d provider_status=%s", op, resp.StatusCode, envelope.Status)
		return &ErrorResponse{HTTPStatus: resp.StatusCode, Status: envelope.Status, Message: envelope.ErrorMessage}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
