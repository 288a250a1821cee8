package plans

import (
	"strings"

	"github.com/duzelt/duzelt-backend/pkg/config"
	"github.com/duzelt/duzelt-backend/pkg/enums"
)

// Monthly request allowances per plan.
const (
	limitFree int64 = 50
	limitPlus int64 = 400
	limitPro  int64 = 2000
)

// Catalog maps plans to their monthly allowances and Stripe prices.
type Catalog struct {
	pricePlus string
	pricePro  string
}

// NewCatalog builds the plan catalog from Stripe price configuration.
func NewCatalog(cfg config.StripeConfig) *Catalog {
	return &Catalog{
		pricePlus: strings.TrimSpace(cfg.PricePlus),
		pricePro:  strings.TrimSpace(cfg.PricePro),
	}
}

// LimitFor returns the monthly request allowance for a plan. Unknown or
// empty plans fall back to the free allowance rather than failing.
func (c *Catalog) LimitFor(plan enums.Plan) int64 {
	switch plan {
	case enums.PlanPlus:
		return limitPlus
	case enums.PlanPro:
		return limitPro
	default:
		return limitFree
	}
}

// PriceFor returns the Stripe price id backing a paid plan.
func (c *Catalog) PriceFor(plan enums.Plan) (string, bool) {
	if c == nil {
		return "", false
	}
	switch plan {
	case enums.PlanPlus:
		return c.pricePlus, c.pricePlus != ""
	case enums.PlanPro:
		return c.pricePro, c.pricePro != ""
	default:
		return "", false
	}
}

// PlanForPrices derives the plan from a subscription's price ids. The
// highest tier wins when multiple prices are present; unrecognized
// prices resolve to free.
func (c *Catalog) PlanForPrices(priceIDs []string) enums.Plan {
	if c == nil {
		return enums.PlanFree
	}
	plan := enums.PlanFree
	for _, id := range priceIDs {
		switch {
		case c.pricePro != "" && id == c.pricePro:
			return enums.PlanPro
		case c.pricePlus != "" && id == c.pricePlus:
			plan = enums.PlanPlus
		}
	}
	return plan
}
