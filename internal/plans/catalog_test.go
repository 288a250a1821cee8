package plans

import (
	"testing"

	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/enums"
)

func testCatalog() *Catalog {
	return NewCatalog(config.StripeConfig{
		PricePlus: "price_plus_123",
		PricePro:  "price_pro_456",
	})
}

func TestLimitForKnownPlans(t *testing.T) {
	catalog := testCatalog()
	cases := []struct {
		plan  enums.Plan
		limit int64
	}{
		{enums.PlanFree, 50},
		{enums.PlanPlus, 400},
		{enums.PlanPro, 2000},
	}
	for _, tc := range cases {
		if got := catalog.LimitFor(tc.plan); got != tc.limit {
			t.Fatalf("plan %s: expected limit %d, got %d", tc.plan, tc.limit, got)
		}
	}
}

func TestLimitForUnknownPlanFallsBackToFree(t *testing.T) {
	catalog := testCatalog()
	if got := catalog.LimitFor(enums.Plan("enterprise")); got != 50 {
		t.Fatalf("expected free fallback 50, got %d", got)
	}
	if got := catalog.LimitFor(enums.Plan("")); got != 50 {
		t.Fatalf("expected free fallback 50 for empty plan, got %d", got)
	}
}

func TestPlanForPricesHighestTierWins(t *testing.T) {
	catalog := testCatalog()
	if got := catalog.PlanForPrices([]string{"price_plus_123", "price_pro_456"}); got != enums.PlanPro {
		t.Fatalf("expected pro, got %s", got)
	}
	if got := catalog.PlanForPrices([]string{"price_plus_123"}); got != enums.PlanPlus {
		t.Fatalf("expected plus, got %s", got)
	}
	if got := catalog.PlanForPrices([]string{"price_unknown"}); got != enums.PlanFree {
		t.Fatalf("expected free, got %s", got)
	}
	if got := catalog.PlanForPrices(nil); got != enums.PlanFree {
		t.Fatalf("expected free for no prices, got %s", got)
	}
}

func TestPriceFor(t *testing.T) {
	catalog := testCatalog()
	if price, ok := catalog.PriceFor(enums.PlanPro); !ok || price != "price_pro_456" {
		t.Fatalf("unexpected pro price %q ok=%v", price, ok)
	}
	if _, ok := catalog.PriceFor(enums.PlanFree); ok {
		t.Fatal("free plan must not map to a price")
	}
}
