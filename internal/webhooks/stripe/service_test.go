package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/duzelt/duzelt-backend/internal/plans"
	"github.com/duzelt/duzelt-backend/internal/profiles"
	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/db/models"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

type stubFetcher struct {
	sub     *stripe.Subscription
	fetched []string
}

func (s *stubFetcher) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	s.fetched = append(s.fetched, id)
	if s.sub == nil {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	return s.sub, nil
}

type stubProfiles struct {
	byCustomer map[string]*models.Profile
	applied    []profiles.Snapshot
}

func (s *stubProfiles) FindByCustomerRef(_ context.Context, customerID string) (*models.Profile, error) {
	return s.byCustomer[customerID], nil
}

func (s *stubProfiles) Apply(_ context.Context, snap profiles.Snapshot) error {
	s.applied = append(s.applied, snap)
	return nil
}

func newTestWebhook(t *testing.T, store *stubProfiles, fetcher *stubFetcher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Profiles: store,
		Stripe:   fetcher,
		Catalog:  plans.NewCatalog(config.StripeConfig{PricePlus: "price_plus", PricePro: "price_pro"}),
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func subscriptionJSON(t *testing.T, sub *stripe.Subscription) []byte {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal subscription: %v", err)
	}
	return raw
}

func testSubscription(priceIDs ...string) *stripe.Subscription {
	items := make([]*stripe.SubscriptionItem, 0, len(priceIDs))
	for _, id := range priceIDs {
		items = append(items, &stripe.SubscriptionItem{
			Price:            &stripe.Price{ID: id},
			CurrentPeriodEnd: 1790000000,
		})
	}
	return &stripe.Subscription{
		ID:       "sub_123",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_123"},
		Metadata: map[string]string{metadataOwnerKey: "user-1"},
		Items:    &stripe.SubscriptionItemList{Data: items},
	}
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription) *stripe.Event {
	t.Helper()
	return &stripe.Event{
		ID:   "evt_1",
		Type: eventType,
		Data: &stripe.EventData{Raw: subscriptionJSON(t, sub)},
	}
}

func TestSubscriptionUpdatedAppliesSnapshot(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, testSubscription("price_pro"))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(store.applied) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(store.applied))
	}
	snap := store.applied[0]
	if snap.UserID != "user-1" {
		t.Fatalf("unexpected user %q", snap.UserID)
	}
	if snap.Plan == nil || *snap.Plan != enums.PlanPro {
		t.Fatalf("unexpected plan %+v", snap.Plan)
	}
	if snap.SubscriptionStatus == nil || *snap.SubscriptionStatus != "active" {
		t.Fatalf("unexpected status %+v", snap.SubscriptionStatus)
	}
	if snap.StripeCustomerID == nil || *snap.StripeCustomerID != "cus_123" {
		t.Fatalf("unexpected customer %+v", snap.StripeCustomerID)
	}
	if snap.CurrentPeriodEnd == nil || !snap.CurrentPeriodEnd.Equal(time.Unix(1790000000, 0).UTC()) {
		t.Fatalf("unexpected period end %+v", snap.CurrentPeriodEnd)
	}
}

func TestPlanDerivationHighestTierWins(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, testSubscription("price_plus", "price_pro"))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(store.applied) != 1 || store.applied[0].Plan == nil || *store.applied[0].Plan != enums.PlanPro {
		t.Fatalf("expected pro to win, got %+v", store.applied)
	}
}

func TestUnrecognizedPriceResolvesToFree(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, testSubscription("price_legacy"))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(store.applied) != 1 || store.applied[0].Plan == nil || *store.applied[0].Plan != enums.PlanFree {
		t.Fatalf("expected free fallback, got %+v", store.applied)
	}
}

func TestMissingMetadataFallsBackToCustomerRef(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{
		"cus_123": {UserID: "user-from-ref", Plan: enums.PlanFree},
	}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	sub := testSubscription("price_plus")
	sub.Metadata = nil
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(store.applied) != 1 || store.applied[0].UserID != "user-from-ref" {
		t.Fatalf("expected customer-ref owner, got %+v", store.applied)
	}
}

func TestUnknownCustomerIsAcknowledgedNoop(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	sub := testSubscription("price_plus")
	sub.Metadata = nil
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub)
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown customer must not error: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("expected no snapshot, got %+v", store.applied)
	}
}

func TestSubscriptionDeletedDowngradesToFree(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{
		"cus_123": {UserID: "user-1", Plan: enums.PlanPro},
	}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, testSubscription("price_pro"))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(store.applied) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(store.applied))
	}
	snap := store.applied[0]
	if snap.Plan == nil || *snap.Plan != enums.PlanFree {
		t.Fatalf("expected downgrade to free, got %+v", snap.Plan)
	}
	if snap.SubscriptionStatus == nil || *snap.SubscriptionStatus != "canceled" {
		t.Fatalf("expected canceled status, got %+v", snap.SubscriptionStatus)
	}
}

func TestSubscriptionDeletedUnknownCustomerNoop(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, testSubscription("price_pro"))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("expected no snapshot, got %+v", store.applied)
	}
}

func TestCheckoutCompletedFetchesSubscription(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	fetcher := &stubFetcher{sub: testSubscription("price_plus")}
	svc := newTestWebhook(t, store, fetcher)

	event := &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{
			Raw:    json.RawMessage(`{"id":"cs_123","subscription":"sub_123"}`),
			Object: map[string]interface{}{"id": "cs_123", "subscription": "sub_123"},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(fetcher.fetched) != 1 || fetcher.fetched[0] != "sub_123" {
		t.Fatalf("expected subscription fetch, got %+v", fetcher.fetched)
	}
	if len(store.applied) != 1 || store.applied[0].Plan == nil || *store.applied[0].Plan != enums.PlanPlus {
		t.Fatalf("expected plus snapshot, got %+v", store.applied)
	}
}

func TestCheckoutCompletedWithoutSubscriptionIsNoop(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	fetcher := &stubFetcher{}
	svc := newTestWebhook(t, store, fetcher)

	event := &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{
			Raw:    json.RawMessage(`{"id":"cs_123"}`),
			Object: map[string]interface{}{"id": "cs_123"},
		},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(fetcher.fetched) != 0 || len(store.applied) != 0 {
		t.Fatalf("expected noop, got fetches=%v applied=%v", fetcher.fetched, store.applied)
	}
}

func TestUnknownEventTypeIsNoop(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventType("invoice.finalized"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event must not error: %v", err)
	}
	if len(store.applied) != 0 {
		t.Fatalf("expected no snapshot, got %+v", store.applied)
	}
}

func TestRedeliveryConvergesOnSameState(t *testing.T) {
	store := &stubProfiles{byCustomer: map[string]*models.Profile{}}
	svc := newTestWebhook(t, store, &stubFetcher{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, testSubscription("price_pro"))
	for i := 0; i < 2; i++ {
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
	if len(store.applied) != 2 {
		t.Fatalf("expected two applications, got %d", len(store.applied))
	}
	first, second := store.applied[0], store.applied[1]
	if *first.Plan != *second.Plan || *first.SubscriptionStatus != *second.SubscriptionStatus {
		t.Fatalf("redelivery diverged: %+v vs %+v", first, second)
	}
}
