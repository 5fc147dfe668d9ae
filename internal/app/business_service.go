package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/swipesavvy/claim-service/internal/domain"
	"github.com/swipesavvy/claim-service/internal/store"
	"github.com/swipesavvy/claim-service/pkg/placesclient"
)

// BusinessService wraps the place provider and manages stored businesses.
type BusinessService struct {
	businesses BusinessRepository
	places     PlaceProvider
	cache      PlaceCache
	logger     *slog.Logger
}

// NewBusinessService creates a new business service. cache may be nil.
func NewBusinessService(businesses BusinessRepository, places PlaceProvider, cache PlaceCache, logger *slog.Logger) *BusinessService {
	return &BusinessService{
		businesses: businesses,
		places:     places,
		cache:      cache,
		logger:     logger,
	}
}

// FindPlaces searches the place provider for businesses matching query.
func (s *BusinessService) FindPlaces(ctx context.Context, query string) ([]domain.PlaceCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError(msgQueryRequired)
	}
	if s.places == nil || !s.places.Configured() {
		return nil, newError(ErrConfiguration, "Google Places API key is not configured")
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetCandidates(ctx, query); ok {
			return cached, nil
		}
	}

	places, err := s.places.FindPlaceFromText(ctx, query)
	if err != nil {
		s.logger.Error("place search failed", "error", err)
		return nil, newError(ErrUpstream, msgSearchFailed)
	}

	candidates := make([]domain.PlaceCandidate, 0, len(places))
	for _, p := range places {
		candidates = append(candidates, toCandidate(p))
	}

	if s.cache != nil {
		s.cache.SetCandidates(ctx, query, candidates)
	}
	return candidates, nil
}

// PlaceDetails fetches a place with photos, rating and website.
func (s *BusinessService) PlaceDetails(ctx context.Context, placeID string) (*domain.PlaceDetails, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, validationError("placeId is required")
	}
	if s.places == nil || !s.places.Configured() {
		return nil, newError(ErrConfiguration, "Google Places API key is not configured")
	}

	place, err := s.places.GetPlaceDetails(ctx, placeID)
	if err != nil {
		var apiErr *placesclient.ErrorResponse
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return nil, notFound("Place not found")
		}
		s.logger.Error("place details failed", "place_id", placeID, "error", err)
		return nil, newError(ErrUpstream, msgDetailsFailed)
	}

	details := &domain.PlaceDetails{
		PlaceCandidate: toCandidate(*place),
		Photos:         make([]domain.PlacePhoto, 0, len(place.Photos)),
		Rating:         place.Rating,
		Website:        place.Website,
	}
	for _, photo := range place.Photos {
		details.Photos = append(details.Photos, domain.PlacePhoto{
			PhotoReference: photo.PhotoReference,
			Width:          photo.Width,
			Height:         photo.Height,
		})
	}
	return details, nil
}

// List returns every stored business with its owner.
func (s *BusinessService) List(ctx context.Context) ([]domain.Business, error) {
	businesses, err := s.businesses.ListBusinesses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return businesses, nil
}

// GetByID returns a stored business.
func (s *BusinessService) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	business, err := s.businesses.GetBusinessByID(ctx, id)
	if err != nil {
		return nil, mapBusinessLookupError(err)
	}
	return business, nil
}

// GetByPlaceID returns the stored business for an external place reference.
func (s *BusinessService) GetByPlaceID(ctx context.Context, placeID string) (*domain.Business, error) {
	business, err := s.businesses.GetBusinessByPlaceID(ctx, strings.TrimSpace(placeID))
	if err != nil {
		return nil, mapBusinessLookupError(err)
	}
	return business, nil
}

// Update changes the name, address or phone of a business.
func (s *BusinessService) Update(ctx context.Context, id string, req domain.UpdateBusinessRequest) (*domain.Business, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, validationError("name cannot be empty")
		}
		req.Name = &name
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	business, err := s.businesses.UpdateBusiness(ctx, id, req)
	if err != nil {
		return nil, mapBusinessLookupError(err)
	}
	return business, nil
}

// Delete removes a business.
func (s *BusinessService) Delete(ctx context.Context, id string) error {
	if err := s.businesses.DeleteBusiness(ctx, id); err != nil {
		return mapBusinessLookupError(err)
	}
	return nil
}

func toCandidate(p placesclient.Place) domain.PlaceCandidate {
	return domain.PlaceCandidate{
		PlaceID:     p.PlaceID,
		Name:        p.Name,
		Address:     p.FormattedAddress,
		PhoneNumber: p.InternationalPhoneNumber,
	}
}

func mapBusinessLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msgBusinessNotFound)
	}
	return err
}
