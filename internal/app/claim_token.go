package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/swipesavvy/claim-service/internal/domain"
)

const (
	claimTokenVersion = 1
	claimTokenIssuer  = "claim-service"
)

type claimTokenClaims struct {
	Version    int                   `json:"v"`
	Step       domain.ClaimStep      `json:"step"`
	Business   *domain.ClaimBusiness `json:"business,omitempty"`
	User       *domain.UserSummary   `json:"user,omitempty"`
	BusinessID string                `json:"businessId,omitempty"`
	jwt.RegisteredClaims
}

// ClaimTokenCodec signs and verifies wizard continuation tokens.
type ClaimTokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewClaimTokenCodec creates a codec. secret must be non-empty.
func NewClaimTokenCodec(secret []byte, ttl time.Duration) (*ClaimTokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("claim token secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ClaimTokenCodec{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Encode signs the state into a token valid for the codec TTL.
func (c *ClaimTokenCodec) Encode(state domain.ClaimState) (string, error) {
	now := c.now()
	claims := claimTokenClaims{
		Version:    claimTokenVersion,
		Step:       state.Step,
		Business:   state.Business,
		User:       state.User,
		BusinessID: state.BusinessID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    claimTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign claim token: %w", err)
	}
	return signed, nil
}

// Decode verifies a token and returns the state it carries. Every failure wraps
// ErrInvalidClaimToken.
func (c *ClaimTokenCodec) Decode(token string) (*domain.ClaimState, error) {
	claims, err := c.decodeClaims(token)
	if err != nil {
		return nil, err
	}
	return claims.state(), nil
}

func (c *ClaimTokenCodec) decodeClaims(token string) (*claimTokenClaims, error) {
	if token == "" {
		return nil, newError(ErrInvalidClaimToken, "Claim token is required")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(claimTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	claims := &claimTokenClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(ErrInvalidClaimToken, "Claim token has expired")
		}
		return nil, newError(ErrInvalidClaimToken, "Claim token is invalid")
	}
	if claims.Version != claimTokenVersion || !claims.Step.Valid() || claims.ID == "" {
		return nil, newError(ErrInvalidClaimToken, "Claim token is invalid")
	}
	return claims, nil
}

// remaining is how long the token stays valid after now.
func (c *ClaimTokenCodec) remaining(claims *claimTokenClaims) time.Duration {
	return claims.ExpiresAt.Time.Sub(c.now())
}

func (c *claimTokenClaims) state() *domain.ClaimState {
	return &domain.ClaimState{
		Step:       c.Step,
		Business:   c.Business,
		User:       c.User,
		BusinessID: c.BusinessID,
	}
}
