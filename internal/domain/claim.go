package domain

// ClaimStep is the stage a claim token is at. Search happens before a token exists,
// and the account form is submitted from the verify stage.
type ClaimStep string

const (
	ClaimStepVerify  ClaimStep = "verify"
	ClaimStepTerms   ClaimStep = "terms"
	ClaimStepSuccess ClaimStep = "success"
)

var claimStepOrder = map[ClaimStep]int{
	ClaimStepVerify:  1,
	ClaimStepTerms:   2,
	ClaimStepSuccess: 3,
}

// Valid reports whether the step is one of the known wizard steps.
func (s ClaimStep) Valid() bool {
	_, ok := claimStepOrder[s]
	return ok
}

// Before reports whether s comes strictly earlier in the wizard than other.
func (s ClaimStep) Before(other ClaimStep) bool {
	return claimStepOrder[s] < claimStepOrder[other]
}

// ClaimBusiness is the business snapshot selected on the search step.
type ClaimBusiness struct {
	PlaceID     string `json:"placeId"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// ClaimState is the wizard state carried between steps.
type ClaimState struct {
	Step       ClaimStep      `json:"step"`
	Business   *ClaimBusiness `json:"business,omitempty"`
	User       *UserSummary   `json:"user,omitempty"`
	BusinessID string         `json:"businessId,omitempty"`
}

// ClaimResponse pairs the state with the continuation token for the next step.
type ClaimResponse struct {
	ClaimState
	Token           string    `json:"token"`
	ClaimedBusiness *Business `json:"claimedBusiness,omitempty"`
}

// StartClaimRequest selects a place to claim.
type StartClaimRequest struct {
	PlaceID     string `json:"placeId" validate:"required"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
}

// ClaimAccountRequest is the account-create form.
type ClaimAccountRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Mobile          string `json:"mobile"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	IsOwner         bool   `json:"isOwner"`
}

// ClaimTermsRequest is the terms acceptance form.
type ClaimTermsRequest struct {
	Accepted bool `json:"accepted"`
}

// ClaimSuccessView is what the success screen renders.
type ClaimSuccessView struct {
	BusinessName    string `json:"businessName"`
	BusinessAddress string `json:"businessAddress"`
	OwnerName       string `json:"ownerName"`
	OwnerEmail      string `json:"ownerEmail"`
	UserID          string `json:"userId,omitempty"`
	BusinessID      string `json:"businessId,omitempty"`
	Fallback        bool   `json:"fallback"`
}
