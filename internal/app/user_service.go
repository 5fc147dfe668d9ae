/**
 * @description
 * This file contains the business logic for user accounts and for attaching a
 * claimed business to its owner. Duplicate emails and second businesses are
 * rejected up front for a friendly message, and again by the database's unique
 * constraints when concurrent requests race past the pre-check.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/swipesavvy/claim-service/internal/domain"
	"github.com/swipesavvy/claim-service/internal/store"
)

// UserService provides user management.
type UserService struct {
	users      UserRepository
	businesses BusinessRepository
	events     EventPublisher
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(users UserRepository, businesses BusinessRepository, events EventPublisher, logger *slog.Logger, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		users:      users,
		businesses: businesses,
		events:     events,
		logger:     logger,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// Create registers a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, conflict(msgEmailTaken)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.CreateUser(ctx, &domain.User{
		ID:               uuid.NewString(),
		Email:            req.Email,
		Name:             req.Name,
		PasswordHash:     string(hash),
		HasAcceptedTerms: req.HasAcceptedTerms,
	})
	if err != nil {
		if store.IsConstraint(err, store.ConstraintUserEmail) {
			return nil, conflict(msgEmailTaken)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created", "user_id", created.ID)
	publishEvent(ctx, s.events, s.logger, domain.EventUserCreated, domain.UserCreatedEvent{
		UserID:    created.ID,
		Email:     created.Email,
		CreatedAt: created.CreatedAt,
	})
	return created, nil
}

// GetByID returns a user and its business.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, mapUserLookupError(err)
	}
	return user, nil
}

// GetByEmail returns a user and its business by email address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationError("email is required")
	}
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, mapUserLookupError(err)
	}
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update applies a partial update, re-hashing the password if one is supplied.
func (s *UserService) Update(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error) {
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return nil, validationError("email cannot be empty")
		}
		req.Email = &email
	}
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

	update := domain.UserUpdate{
		Email:            req.Email,
		Name:             req.Name,
		HasAcceptedTerms: req.HasAcceptedTerms,
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return nil, validationError("password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hashed := string(hash)
		update.PasswordHash = &hashed
	}

	user, err := s.users.UpdateUser(ctx, id, update)
	if err != nil {
		if store.IsConstraint(err, store.ConstraintUserEmail) {
			return nil, conflict(msgEmailTaken)
		}
		return nil, mapUserLookupError(err)
	}
	return user, nil
}

// AcceptTerms records that the user accepted the terms and conditions.
func (s *UserService) AcceptTerms(ctx context.Context, id string) (*domain.User, error) {
	accepted := true
	user, err := s.users.UpdateUser(ctx, id, domain.UserUpdate{HasAcceptedTerms: &accepted})
	if err != nil {
		return nil, mapUserLookupError(err)
	}
	return user, nil
}

// Delete removes a user together with its business and subscriptions.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return mapUserLookupError(err)
	}
	s.logger.Info("user deleted", "user_id", id)
	return nil
}

// CreateBusiness attaches a claimed business to a user. A user owns at most one business.
func (s *UserService) CreateBusiness(ctx context.Context, userID string, req domain.CreateBusinessRequest) (*domain.Business, error) {
	req.GooglePlaceID = strings.TrimSpace(req.GooglePlaceID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapUserLookupError(err)
	}
	if user.Business != nil {
		return nil, conflict(msgUserHasBusiness)
	}

	business, err := s.businesses.CreateBusiness(ctx, &domain.Business{
		ID:            uuid.NewString(),
		GooglePlaceID: req.GooglePlaceID,
		Name:          req.Name,
		Address:       strings.TrimSpace(req.Address),
		Phone:         strings.TrimSpace(req.Phone),
		UserID:        user.ID,
	})
	if err != nil {
		switch {
		case store.IsConstraint(err, store.ConstraintBusinessUser):
			return nil, conflict(msgUserHasBusiness)
		case store.IsConstraint(err, store.ConstraintBusinessPlace):
			return nil, conflict(msgBusinessClaimed)
		case errors.Is(err, store.ErrMissingReference):
			return nil, notFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("create business: %w", err)
	}

	s.logger.Info("business claimed", "business_id", business.ID, "user_id", user.ID, "place_id", business.GooglePlaceID)
	publishEvent(ctx, s.events, s.logger, domain.EventBusinessClaimed, domain.BusinessClaimedEvent{
		BusinessID:    business.ID,
		UserID:        user.ID,
		GooglePlaceID: business.GooglePlaceID,
		ClaimedAt:     s.now().UTC(),
	})
	return business, nil
}

func mapUserLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(msgUserNotFound)
	}
	return err
}
