package enums

import "fmt"

// Plan is the subscription tier controlling the monthly correction quota.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPlus Plan = "plus"
	PlanPro  Plan = "pro"
)

var validPlans = []Plan{
	PlanFree,
	PlanPlus,
	PlanPro,
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Plan.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlan converts raw input into a Plan.
func ParsePlan(value string) (Plan, error) {
	for _, candidate := range validPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan %q", value)
}
