package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swipesavvy/claim-service/internal/domain"
)

type claimFixture struct {
	store      *memStore
	places     *placesStub
	businesses *BusinessService
	svc        *ClaimService
	codec      *ClaimTokenCodec
}

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()
	m := newMemStore()
	places := desiMandiPlaces()
	codec, err := NewClaimTokenCodec([]byte("test-claim-secret"), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	users := newTestUserService(m, nil)
	businesses := NewBusinessService(m, places, nil, discardLogger())
	return &claimFixture{
		store:      m,
		places:     places,
		businesses: businesses,
		svc:        NewClaimService(users, businesses, codec, NewMemoryClaimRedemptions(), discardLogger()),
		codec:      codec,
	}
}

func validAccount() domain.ClaimAccountRequest {
	return domain.ClaimAccountRequest{
		Name:            "Sudheer Narra",
		Email:           "sudheer@desimandi.example",
		Mobile:          "+1 (214) 555-0100",
		Password:        "password1",
		ConfirmPassword: "password1",
		IsOwner:         true,
	}
}

func TestClaimFlow_EndToEnd(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	candidates, err := f.businesses.FindPlaces(ctx, "Desi Mandi")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(candidates) == 0 || candidates[0].PlaceID == "" {
		t.Fatalf("expected a candidate with a place id, got %+v", candidates)
	}

	started, err := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: candidates[0].PlaceID})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Step != domain.ClaimStepVerify {
		t.Fatalf("expected verify step, got %q", started.Step)
	}

	current, err := f.svc.Current(started.Token)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if current.Business.Name != "Desi Mandi" || current.Business.Address != "1234 Elm Street, Dallas, TX 75201" {
		t.Fatalf("verify state does not carry the place, got %+v", current.Business)
	}

	account, err := f.svc.CreateAccount(ctx, started.Token, validAccount())
	if err != nil {
		t.Fatalf("account failed: %v", err)
	}
	if account.Step != domain.ClaimStepTerms || account.User == nil {
		t.Fatalf("expected terms step with user, got %+v", account.ClaimState)
	}

	terms, err := f.svc.AcceptTerms(ctx, account.Token, domain.ClaimTermsRequest{Accepted: true})
	if err != nil {
		t.Fatalf("terms failed: %v", err)
	}
	if terms.Step != domain.ClaimStepSuccess || terms.ClaimedBusiness == nil {
		t.Fatalf("expected success step with business, got %+v", terms)
	}
	if terms.ClaimedBusiness.UserID != account.User.ID {
		t.Fatalf("business not linked to user: %s != %s", terms.ClaimedBusiness.UserID, account.User.ID)
	}

	user, err := f.store.GetUserByID(ctx, account.User.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.HasAcceptedTerms {
		t.Fatal("expected terms flag to be set")
	}
	if user.Business == nil || user.Business.GooglePlaceID != "ChIJdesi" {
		t.Fatalf("expected user to own the claimed place, got %+v", user.Business)
	}

	view := f.svc.Success(ctx, terms.Token)
	if view.Fallback {
		t.Fatal("expected a real success view")
	}
	if view.BusinessName != "Desi Mandi" || view.OwnerEmail != "sudheer@desimandi.example" {
		t.Fatalf("unexpected success view %+v", view)
	}

	if fallback := f.svc.Success(ctx, ""); !fallback.Fallback || fallback.BusinessName == "" {
		t.Fatalf("expected placeholder view without a token, got %+v", fallback)
	}
	if fallback := f.svc.Success(ctx, "garbage"); !fallback.Fallback {
		t.Fatalf("expected placeholder view for an invalid token, got %+v", fallback)
	}
}

func TestClaimStart_RejectsClaimedPlace(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	started, _ := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJdesi"})
	account, _ := f.svc.CreateAccount(ctx, started.Token, validAccount())
	if _, err := f.svc.AcceptTerms(ctx, account.Token, domain.ClaimTermsRequest{Accepted: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJdesi"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for claimed place, got %v", err)
	}
}

func TestClaimStart_UsesSuppliedSnapshot(t *testing.T) {
	f := newClaimFixture(t)
	started, err := f.svc.Start(context.Background(), domain.StartClaimRequest{
		PlaceID: "ChIJother", Name: "Corner Store", Address: "1 Main St",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Business.Name != "Corner Store" || started.Business.PhoneNumber != "" {
		t.Fatalf("unexpected snapshot %+v", started.Business)
	}

	if _, err := f.svc.Start(context.Background(), domain.StartClaimRequest{PlaceID: "ChIJmissing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found when details cannot resolve the place, got %v", err)
	}
}

func TestClaimTerms_DefaultsPhone(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	started, _ := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJother", Name: "Corner Store"})
	account, err := f.svc.CreateAccount(ctx, started.Token, validAccount())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	terms, err := f.svc.AcceptTerms(ctx, account.Token, domain.ClaimTermsRequest{Accepted: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terms.ClaimedBusiness.Phone != "Not provided" {
		t.Fatalf("expected default phone, got %q", terms.ClaimedBusiness.Phone)
	}
}

func TestClaimAccount_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ClaimAccountRequest)
		msg    string
	}{
		{name: "missing name", mutate: func(r *domain.ClaimAccountRequest) { r.Name = " " }, msg: "Full name is required"},
		{name: "bad email", mutate: func(r *domain.ClaimAccountRequest) { r.Email = "owner@nowhere" }, msg: "Please enter a valid email address"},
		{name: "missing mobile", mutate: func(r *domain.ClaimAccountRequest) { r.Mobile = "" }, msg: "Mobile number is required"},
		{name: "bad mobile", mutate: func(r *domain.ClaimAccountRequest) { r.Mobile = "0123" }, msg: "Please enter a valid mobile number"},
		{name: "short password", mutate: func(r *domain.ClaimAccountRequest) { r.Password, r.ConfirmPassword = "short", "short" }, msg: "Password must be at least 8 characters long"},
		{name: "mismatch", mutate: func(r *domain.ClaimAccountRequest) { r.ConfirmPassword = "password2" }, msg: "Passwords do not match"},
		{name: "not owner", mutate: func(r *domain.ClaimAccountRequest) { r.IsOwner = false }, msg: "You must confirm you are authorized to claim this business"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newClaimFixture(t)
			started, err := f.svc.Start(context.Background(), domain.StartClaimRequest{PlaceID: "ChIJdesi"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			req := validAccount()
			tc.mutate(&req)

			_, err = f.svc.CreateAccount(context.Background(), started.Token, req)
			if !errors.Is(err, ErrValidation) || PublicMessage(err, "") != tc.msg {
				t.Fatalf("expected %q, got %v", tc.msg, err)
			}
			if f.store.userCount() != 0 {
				t.Fatal("expected no user to be created")
			}
		})
	}
}

func TestClaim_StepOrderingEnforced(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	started, _ := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJdesi"})
	if _, err := f.svc.AcceptTerms(ctx, started.Token, domain.ClaimTermsRequest{Accepted: true}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected step error accepting terms from verify, got %v", err)
	}

	account, _ := f.svc.CreateAccount(ctx, started.Token, validAccount())
	if _, err := f.svc.CreateAccount(ctx, account.Token, validAccount()); !errors.Is(err, ErrConflict) || PublicMessage(err, "") != msgClaimStepDone {
		t.Fatalf("expected step-done conflict re-running account on terms token, got %v", err)
	}
	if _, err := f.svc.AcceptTerms(ctx, account.Token, domain.ClaimTermsRequest{Accepted: false}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error when terms are not accepted, got %v", err)
	}
}

func TestClaimAccount_TokenAdvancesOnce(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	started, err := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJdesi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.CreateAccount(ctx, started.Token, validAccount()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	again := validAccount()
	again.Email = "second@desimandi.example"
	_, err = f.svc.CreateAccount(ctx, started.Token, again)
	if !errors.Is(err, ErrConflict) || PublicMessage(err, "") != msgClaimStepDone {
		t.Fatalf("expected replayed token to conflict, got %v", err)
	}
	if f.store.userCount() != 1 {
		t.Fatalf("expected one user from one claim, got %d", f.store.userCount())
	}
}

func TestClaimTerms_TokenAdvancesOnce(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	started, _ := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJdesi"})
	account, err := f.svc.CreateAccount(ctx, started.Token, validAccount())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.AcceptTerms(ctx, account.Token, domain.ClaimTermsRequest{Accepted: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.AcceptTerms(ctx, account.Token, domain.ClaimTermsRequest{Accepted: true}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected replayed terms token to conflict, got %v", err)
	}
	if f.store.businessCount() != 1 {
		t.Fatalf("expected one business, got %d", f.store.businessCount())
	}
}

func TestClaimAccount_FailedStepCanBeRetried(t *testing.T) {
	f := newClaimFixture(t)
	ctx := context.Background()

	if _, err := newTestUserService(f.store, nil).Create(ctx, domain.CreateUserRequest{
		Email: "taken@desimandi.example", Name: "Someone", Password: "password1",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	started, _ := f.svc.Start(ctx, domain.StartClaimRequest{PlaceID: "ChIJdesi"})
	taken := validAccount()
	taken.Email = "taken@desimandi.example"
	if _, err := f.svc.CreateAccount(ctx, started.Token, taken); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate email conflict, got %v", err)
	}

	account, err := f.svc.CreateAccount(ctx, started.Token, validAccount())
	if err != nil {
		t.Fatalf("expected retry with a corrected email to succeed, got %v", err)
	}
	if account.Step != domain.ClaimStepTerms {
		t.Fatalf("expected terms step, got %s", account.Step)
	}
}

func TestMemoryClaimRedemptions(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryClaimRedemptions()
	now := fixedNow
	r.now = func() time.Time { return now }

	if ok, _ := r.Redeem(ctx, "jti-1", time.Minute); !ok {
		t.Fatal("expected first redemption to succeed")
	}
	if ok, _ := r.Redeem(ctx, "jti-1", time.Minute); ok {
		t.Fatal("expected second redemption to be refused")
	}
	if ok, _ := r.Redeem(ctx, "", time.Minute); ok {
		t.Fatal("expected an empty id to be refused")
	}

	_ = r.Release(ctx, "jti-1")
	if ok, _ := r.Redeem(ctx, "jti-1", time.Minute); !ok {
		t.Fatal("expected a released id to be redeemable again")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := r.Redeem(ctx, "jti-1", time.Minute); !ok {
		t.Fatal("expected an expired redemption to be forgotten")
	}
}

func TestClaimTokenCodec(t *testing.T) {
	codec, err := NewClaimTokenCodec([]byte("secret-one"), time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := domain.ClaimState{
		Step:     domain.ClaimStepTerms,
		Business: &domain.ClaimBusiness{PlaceID: "p1", Name: "Shop"},
		User:     &domain.UserSummary{ID: "u1", Email: "u@example.com", Name: "U"},
	}
	token, err := codec.Encode(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Step != state.Step || decoded.Business.PlaceID != "p1" || decoded.User.Email != "u@example.com" {
		t.Fatalf("round trip lost data: %+v", decoded)
	}

	other, _ := NewClaimTokenCodec([]byte("secret-two"), time.Minute)
	if _, err := other.Decode(token); !errors.Is(err, ErrInvalidClaimToken) {
		t.Fatalf("expected tampered token to be rejected, got %v", err)
	}

	codec.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := codec.Decode(token); !errors.Is(err, ErrInvalidClaimToken) || PublicMessage(err, "") != "Claim token has expired" {
		t.Fatalf("expected expired token error, got %v", err)
	}

	if _, err := codec.Decode(""); !errors.Is(err, ErrInvalidClaimToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if _, err := NewClaimTokenCodec(nil, time.Minute); err == nil {
		t.Fatal("expected empty secret to be rejected")
	}
}
