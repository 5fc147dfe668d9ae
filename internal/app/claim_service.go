/**
 * @description
 * This file drives the claim-your-listing wizard on the server. Each step returns
 * a signed continuation token carrying the selected business, the created user
 * and the claimed business id, so a claim survives reloads and device changes.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/swipesavvy/claim-service/internal/domain"
)

const (
	msgClaimStep       = "claim is not at the expected step"
	msgClaimStepDone   = "Claim step already completed"
	defaultClaimPhone  = "Not provided"
	fallbackBusiness   = "Your Business"
	fallbackOwnerName  = "Business Owner"
	fallbackOwnerEmail = ""
)

// ClaimAccounts is the slice of user management the wizard drives.
type ClaimAccounts interface {
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	AcceptTerms(ctx context.Context, id string) (*domain.User, error)
	CreateBusiness(ctx context.Context, userID string, req domain.CreateBusinessRequest) (*domain.Business, error)
}

// ClaimPlaces is the slice of place and business lookup the wizard drives.
type ClaimPlaces interface {
	PlaceDetails(ctx context.Context, placeID string) (*domain.PlaceDetails, error)
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	GetByPlaceID(ctx context.Context, placeID string) (*domain.Business, error)
}

// ClaimService advances a claim through verify, terms and success. Each token moves
// the claim forward at most once.
type ClaimService struct {
	accounts    ClaimAccounts
	places      ClaimPlaces
	tokens      *ClaimTokenCodec
	redemptions ClaimRedemptions
	logger      *slog.Logger
}

// NewClaimService creates a new claim wizard service. A nil redemptions set falls back
// to an in-process one.
func NewClaimService(accounts ClaimAccounts, places ClaimPlaces, tokens *ClaimTokenCodec, redemptions ClaimRedemptions, logger *slog.Logger) *ClaimService {
	if redemptions == nil {
		redemptions = NewMemoryClaimRedemptions()
	}
	return &ClaimService{
		accounts:    accounts,
		places:      places,
		tokens:      tokens,
		redemptions: redemptions,
		logger:      logger,
	}
}

// Start selects a place and moves the claim to the verify step. When only a place id
// is supplied the snapshot is resolved through the place provider.
func (s *ClaimService) Start(ctx context.Context, req domain.StartClaimRequest) (*domain.ClaimResponse, error) {
	req.PlaceID = strings.TrimSpace(req.PlaceID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	if _, err := s.places.GetByPlaceID(ctx, req.PlaceID); err == nil {
		return nil, conflict(msgBusinessClaimed)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	snapshot := &domain.ClaimBusiness{
		PlaceID:     req.PlaceID,
		Name:        req.Name,
		Address:     strings.TrimSpace(req.Address),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
	}
	if snapshot.Name == "" {
		details, err := s.places.PlaceDetails(ctx, req.PlaceID)
		if err != nil {
			return nil, err
		}
		snapshot.Name = details.Name
		snapshot.Address = details.Address
		snapshot.PhoneNumber = details.PhoneNumber
	}

	return s.respond(domain.ClaimState{Step: domain.ClaimStepVerify, Business: snapshot}, nil)
}

// Current returns the state carried by token.
func (s *ClaimService) Current(token string) (*domain.ClaimResponse, error) {
	state, err := s.tokens.Decode(token)
	if err != nil {
		return nil, err
	}
	return &domain.ClaimResponse{ClaimState: *state, Token: token}, nil
}

// CreateAccount registers the owner and moves the claim to the terms step.
func (s *ClaimService) CreateAccount(ctx context.Context, token string, req domain.ClaimAccountRequest) (*domain.ClaimResponse, error) {
	claims, err := s.expectStep(token, domain.ClaimStepVerify)
	if err != nil {
		return nil, err
	}
	if err := validateClaimAccount(&req); err != nil {
		return nil, err
	}
	release, err := s.redeem(ctx, claims)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.Create(ctx, domain.CreateUserRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		release()
		return nil, err
	}

	state := claims.state()
	summary := user.Summary()
	state.Step = domain.ClaimStepTerms
	state.User = &summary
	return s.respond(*state, nil)
}

// validateClaimAccount applies the account form rules, reporting the first failure.
func validateClaimAccount(req *domain.ClaimAccountRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.Mobile = strings.TrimSpace(req.Mobile)

	switch {
	case req.Name == "":
		return validationError("Full name is required")
	case req.Email == "":
		return validationError("Email is required")
	case !validEmail(req.Email):
		return validationError("Please enter a valid email address")
	case req.Mobile == "":
		return validationError("Mobile number is required")
	case !validMobile(req.Mobile):
		return validationError("Please enter a valid mobile number")
	case req.Password == "":
		return validationError("Password is required")
	case len(req.Password) < 8:
		return validationError("Password must be at least 8 characters long")
	case req.ConfirmPassword == "":
		return validationError("Please confirm your password")
	case req.Password != req.ConfirmPassword:
		return validationError("Passwords do not match")
	case !req.IsOwner:
		return validationError("You must confirm you are authorized to claim this business")
	}
	return nil
}

// AcceptTerms records acceptance, creates the business for the owner and moves the
// claim to the success step.
func (s *ClaimService) AcceptTerms(ctx context.Context, token string, req domain.ClaimTermsRequest) (*domain.ClaimResponse, error) {
	claims, err := s.expectStep(token, domain.ClaimStepTerms)
	if err != nil {
		return nil, err
	}
	state := claims.state()
	if state.User == nil {
		return nil, validationError("Claim has no account; create an account first")
	}
	if !req.Accepted {
		return nil, validationError("You must accept the terms and conditions")
	}
	release, err := s.redeem(ctx, claims)
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.AcceptTerms(ctx, state.User.ID); err != nil {
		release()
		return nil, err
	}

	phone := state.Business.PhoneNumber
	if phone == "" {
		phone = defaultClaimPhone
	}
	business, err := s.accounts.CreateBusiness(ctx, state.User.ID, domain.CreateBusinessRequest{
		GooglePlaceID: state.Business.PlaceID,
		Name:          state.Business.Name,
		Address:       state.Business.Address,
		Phone:         phone,
	})
	if err != nil {
		release()
		return nil, err
	}

	state.Step = domain.ClaimStepSuccess
	state.BusinessID = business.ID
	return s.respond(*state, business)
}

// Success builds the success screen. It never fails: a missing, invalid or unfinished
// token yields placeholder values.
func (s *ClaimService) Success(ctx context.Context, token string) domain.ClaimSuccessView {
	fallback := domain.ClaimSuccessView{
		BusinessName: fallbackBusiness,
		OwnerName:    fallbackOwnerName,
		OwnerEmail:   fallbackOwnerEmail,
		Fallback:     true,
	}
	if token == "" {
		return fallback
	}

	state, err := s.tokens.Decode(token)
	if err != nil || state.Step != domain.ClaimStepSuccess || state.Business == nil || state.User == nil {
		s.logger.Debug("claim success rendered with placeholders", "error", err)
		return fallback
	}

	view := domain.ClaimSuccessView{
		BusinessName:    state.Business.Name,
		BusinessAddress: state.Business.Address,
		OwnerName:       state.User.Name,
		OwnerEmail:      state.User.Email,
		UserID:          state.User.ID,
		BusinessID:      state.BusinessID,
	}
	if state.BusinessID != "" {
		if business, err := s.places.GetByID(ctx, state.BusinessID); err == nil {
			view.BusinessName = business.Name
			view.BusinessAddress = business.Address
		}
	}
	return view
}

// expectStep decodes token and requires it to be at step. A token from a later step
// is a conflict; one from an earlier step is a validation failure.
func (s *ClaimService) expectStep(token string, step domain.ClaimStep) (*claimTokenClaims, error) {
	claims, err := s.tokens.decodeClaims(token)
	if err != nil {
		return nil, err
	}
	if step.Before(claims.Step) {
		return nil, conflict(msgClaimStepDone)
	}
	if claims.Step != step || claims.Business == nil {
		return nil, validationError(msgClaimStep)
	}
	return claims, nil
}

// redeem consumes the token id. The returned func undoes it when the step fails
// afterwards. Redemption store errors are logged and the step proceeds.
func (s *ClaimService) redeem(ctx context.Context, claims *claimTokenClaims) (func(), error) {
	ttl := s.tokens.remaining(claims)
	if ttl < time.Second {
		ttl = time.Second
	}
	fresh, err := s.redemptions.Redeem(ctx, claims.ID, ttl)
	if err != nil {
		s.logger.Warn("claim redemption unavailable; allowing step", "step", claims.Step, "error", err)
		return func() {}, nil
	}
	if !fresh {
		return nil, conflict(msgClaimStepDone)
	}
	return func() {
		if err := s.redemptions.Release(context.WithoutCancel(ctx), claims.ID); err != nil {
			s.logger.Warn("claim redemption release failed", "step", claims.Step, "error", err)
		}
	}, nil
}

func (s *ClaimService) respond(state domain.ClaimState, claimed *domain.Business) (*domain.ClaimResponse, error) {
	token, err := s.tokens.Encode(state)
	if err != nil {
		return nil, err
	}
	return &domain.ClaimResponse{ClaimState: state, Token: token, ClaimedBusiness: claimed}, nil
}
