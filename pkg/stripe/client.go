package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	// metadataOwnerKey carries the identity-provider user id on Stripe
	// customers, sessions, and subscriptions so webhook events can be
	// resolved back to a user without a customer-ref lookup.
	metadataOwnerKey = "owner_id"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// MetadataOwnerKey exposes the metadata key used to tag Stripe objects
// with the owning user id.
func MetadataOwnerKey() string {
	return metadataOwnerKey
}

// Client wraps Stripe's API surface used by this service plus
// env-specific metadata.
type Client struct {
	environment   string
	signingSecret string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// VerifyEvent checks the webhook signature and returns the parsed event.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c == nil {
		return stripe.Event{}, errors.New("stripe client not configured")
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, c.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// GetSubscription fetches the full subscription object; webhook events
// may carry partial data.
func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("subscription id is required")
	}
	return subscription.Get(id, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
}

// CreateCustomer provisions a Stripe customer tagged with the owning
// user id.
func (c *Client) CreateCustomer(ctx context.Context, userID, email string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata(metadataOwnerKey, userID)
	return customer.New(params)
}

// CheckoutSessionInput captures what a subscription checkout needs.
type CheckoutSessionInput struct {
	CustomerID string
	PriceID    string
	UserID     string
	Plan       string
	SuccessURL string
	CancelURL  string
	TrialDays  int64
}

// NewCheckoutSession creates a subscription-mode checkout session and
// returns its hosted URL.
func (c *Client) NewCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Params:   stripe.Params{Context: ctx},
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(in.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metadataOwnerKey: in.UserID,
				"plan_requested": in.Plan,
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(in.SuccessURL),
		CancelURL:           stripe.String(in.CancelURL),
	}
	if in.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(in.TrialDays)
	}
	params.AddMetadata(metadataOwnerKey, in.UserID)
	params.AddMetadata("plan_requested", in.Plan)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", err
	}
	if sess.URL == "" {
		return "", errors.New("stripe session url missing")
	}
	return sess.URL, nil
}

// NewPortalSession creates a billing portal session for the customer.
func (c *Client) NewPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
