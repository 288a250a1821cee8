package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/duzelt/duzelt-backend/internal/plans"
	"github.com/duzelt/duzelt-backend/internal/profiles"
	"github.com/duzelt/duzelt-backend/pkg/db/models"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
	"github.com/duzelt/duzelt-backend/pkg/metrics"
)

const metadataOwnerKey = "owner_id"

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type profileStore interface {
	FindByCustomerRef(ctx context.Context, customerID string) (*models.Profile, error)
	Apply(ctx context.Context, snap profiles.Snapshot) error
}

// ServiceParams wires the webhook reconciler.
type ServiceParams struct {
	Profiles profileStore
	Stripe   subscriptionFetcher
	Catalog  *plans.Catalog
	Logger   *logger.Logger
	Metrics  *metrics.CorrectionMetrics
}

// Service folds Stripe lifecycle events into profile snapshots. Events
// apply last-write-wins: re-delivery or reordering converges on the
// state of the most recent event processed.
type Service struct {
	profiles profileStore
	stripe   subscriptionFetcher
	catalog  *plans.Catalog
	logg     *logger.Logger
	metrics  *metrics.CorrectionMetrics
}

// NewService wires the webhook service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profile store required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		profiles: params.Profiles,
		stripe:   params.Stripe,
		catalog:  params.Catalog,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleEvent processes one verified Stripe event. Unknown event types
// are acknowledged without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		// the session payload carries only a subscription ref; fetch the
		// full object before reconciling
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			s.logg.Info(ctx, "checkout session without subscription, skipping")
			s.metrics.IncWebhookEvent(string(event.Type), "skipped")
			return nil
		}
		sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
		if err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "error")
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return s.finishEvent(ctx, event, s.syncSubscription(ctx, sub))

	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "error")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.finishEvent(ctx, event, s.syncSubscription(ctx, &sub))

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.metrics.IncWebhookEvent(string(event.Type), "error")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		return s.finishEvent(ctx, event, s.revokeForCustomer(ctx, customerID(&sub)))

	default:
		s.metrics.IncWebhookEvent(string(event.Type), "ignored")
		return nil
	}
}

func (s *Service) finishEvent(ctx context.Context, event *stripe.Event, err error) error {
	if err != nil {
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return err
	}
	s.metrics.IncWebhookEvent(string(event.Type), "applied")
	return nil
}

// syncSubscription writes the subscription's current state onto the
// owning profile. The owner comes from subscription metadata when the
// checkout flow stamped it, otherwise from the stored customer ref; a
// subscription belonging to no known user is acknowledged and dropped.
func (s *Service) syncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	custID := customerID(sub)
	userID := sub.Metadata[metadataOwnerKey]
	if userID == "" {
		profile, err := s.profiles.FindByCustomerRef(ctx, custID)
		if err != nil {
			return err
		}
		if profile == nil {
			s.logg.Warn(s.logg.WithField(ctx, "stripe_customer_id", custID), "subscription for unknown customer, skipping")
			return nil
		}
		userID = profile.UserID
	}

	plan := s.catalog.PlanForPrices(subscriptionPriceIDs(sub))
	status := string(sub.Status)

	snap := profiles.Snapshot{
		UserID:               userID,
		Plan:                 &plan,
		SubscriptionStatus:   &status,
		StripeSubscriptionID: &sub.ID,
	}
	if custID != "" {
		snap.StripeCustomerID = &custID
	}
	if end := subscriptionPeriodEnd(sub); !end.IsZero() {
		snap.CurrentPeriodEnd = &end
	}
	return s.profiles.Apply(ctx, snap)
}

// revokeForCustomer downgrades the customer's profile to the free plan
// while keeping the row and its history. Unknown customers are a no-op.
func (s *Service) revokeForCustomer(ctx context.Context, custID string) error {
	profile, err := s.profiles.FindByCustomerRef(ctx, custID)
	if err != nil {
		return err
	}
	if profile == nil {
		s.logg.Warn(s.logg.WithField(ctx, "stripe_customer_id", custID), "deletion for unknown customer, skipping")
		return nil
	}

	plan := enums.PlanFree
	status := "canceled"
	return s.profiles.Apply(ctx, profiles.Snapshot{
		UserID:             profile.UserID,
		Plan:               &plan,
		SubscriptionStatus: &status,
	})
}

func customerID(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func subscriptionPriceIDs(sub *stripe.Subscription) []string {
	if sub == nil || sub.Items == nil {
		return nil
	}
	ids := make([]string, 0, len(sub.Items.Data))
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil {
			ids = append(ids, item.Price.ID)
		}
	}
	return ids
}

// subscriptionPeriodEnd reads the billing period end from the
// subscription items; the latest item end wins when items differ.
func subscriptionPeriodEnd(sub *stripe.Subscription) time.Time {
	if sub == nil || sub.Items == nil {
		return time.Time{}
	}
	var latest int64
	for _, item := range sub.Items.Data {
		if item != nil && item.CurrentPeriodEnd > latest {
			latest = item.CurrentPeriodEnd
		}
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0).UTC()
}
