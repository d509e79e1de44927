package tenant

import "fmt"

// UnlimitedQuota is the sentinel for tiers without a monthly cap. It must be
// checked before any numeric comparison against usage.
const UnlimitedQuota int64 = -1

// Limits is the immutable entitlement pair for a tier.
type Limits struct {
	MonthlyQuota int64   // pages per month, -1 = unlimited
	PricePerPage float64 // USD charged to the tenant per page
}

// Policy maps every tier to its limits. It must be total over the Tier
// enumeration; a missing entry is a programming error.
type Policy map[Tier]Limits

// DefaultPolicy is the operator pricing table. Enterprise is unlimited and
// cheapest per page because enterprise tenants are expected to bring their
// own provider credentials.
func DefaultPolicy() Policy {
	return Policy{
		TierFree:       {MonthlyQuota: 10, PricePerPage: 0.0},
		TierBasic:      {MonthlyQuota: 500, PricePerPage: 0.05},
		TierPremium:    {MonthlyQuota: 5000, PricePerPage: 0.04},
		TierEnterprise: {MonthlyQuota: UnlimitedQuota, PricePerPage: 0.03},
	}
}

// Limits returns the entry for tier and panics if the policy is not total.
func (p Policy) Limits(tier Tier) Limits {
	limits, ok := p[tier]
	if !ok {
		panic(fmt.Sprintf("entitlement policy has no entry for tier %q", tier))
	}
	return limits
}
