package billing

import (
	"context"
	"strings"

	stripesdk "github.com/stripe/stripe-go/v82"

	"github.com/duzelt/duzelt-backend/internal/plans"
	"github.com/duzelt/duzelt-backend/internal/profiles"
	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/db/models"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/stripe"
)

type stripeGateway interface {
	CreateCustomer(ctx context.Context, userID, email string) (*stripesdk.Customer, error)
	NewCheckoutSession(ctx context.Context, in stripe.CheckoutSessionInput) (string, error)
	NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type profileStore interface {
	GetOrCreate(ctx context.Context, userID, email string) (*models.Profile, error)
	AttachStripeCustomer(ctx context.Context, userID, customerID string) error
}

// ServiceParams wires the billing service.
type ServiceParams struct {
	Stripe    stripeGateway
	Profiles  profileStore
	Catalog   *plans.Catalog
	AppURL    string
	TrialDays int64
}

// Service drives checkout and billing-portal flows.
type Service struct {
	stripe    stripeGateway
	profiles  profileStore
	catalog   *plans.Catalog
	appURL    string
	trialDays int64
}

// NewService wires the billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe gateway required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile store required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if strings.TrimSpace(params.AppURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "app url required")
	}
	return &Service{
		stripe:    params.Stripe,
		profiles:  params.Profiles,
		catalog:   params.Catalog,
		appURL:    strings.TrimRight(params.AppURL, "/"),
		trialDays: params.TrialDays,
	}, nil
}

// NewServiceFromConfig wires the billing service from app configuration.
func NewServiceFromConfig(cfg *config.Config, gateway stripeGateway, profileSvc *profiles.Service, catalog *plans.Catalog) (*Service, error) {
	return NewService(ServiceParams{
		Stripe:    gateway,
		Profiles:  profileSvc,
		Catalog:   catalog,
		AppURL:    cfg.App.URL,
		TrialDays: cfg.Stripe.TrialDays,
	})
}

// Checkout creates a subscription checkout session for a paid plan and
// returns the hosted URL. The user's Stripe customer is provisioned on
// first checkout and remembered on the profile.
func (s *Service) Checkout(ctx context.Context, userID, email string, plan enums.Plan) (string, error) {
	priceID, ok := s.catalog.PriceFor(plan)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "plan is not purchasable").
			WithDetails(map[string]any{"plan": plan.String()})
	}

	profile, err := s.profiles.GetOrCreate(ctx, userID, email)
	if err != nil {
		return "", err
	}

	customerID := ""
	if profile.StripeCustomerID != nil {
		customerID = *profile.StripeCustomerID
	}
	if customerID == "" {
		customer, err := s.stripe.CreateCustomer(ctx, userID, email)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
		}
		customerID = customer.ID
		if err := s.profiles.AttachStripeCustomer(ctx, userID, customerID); err != nil {
			return "", err
		}
	}

	url, err := s.stripe.NewCheckoutSession(ctx, stripe.CheckoutSessionInput{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     userID,
		Plan:       plan.String(),
		SuccessURL: s.appURL + "/success",
		CancelURL:  s.appURL + "/cancel",
		TrialDays:  s.trialDays,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return url, nil
}

// Portal creates a billing portal session. Users who never checked out
// have no customer ref and cannot open the portal.
func (s *Service) Portal(ctx context.Context, userID, email string) (string, error) {
	profile, err := s.profiles.GetOrCreate(ctx, userID, email)
	if err != nil {
		return "", err
	}
	if profile.StripeCustomerID == nil || *profile.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no billing account for this user")
	}

	url, err := s.stripe.NewPortalSession(ctx, *profile.StripeCustomerID, s.appURL+"/account")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return url, nil
}
