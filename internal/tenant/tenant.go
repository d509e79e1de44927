// Package tenant holds the entitlement state of a customer: subscription
// tier, monthly page quota and the usage counter, plus any provider
// credentials the tenant brings themselves.
package tenant

import (
	"errors"
	"fmt"
)

// ErrNotFound means no record exists for the tenant id. Malformed persisted
// state deliberately reads as not-found as well (fail closed).
var ErrNotFound = errors.New("tenant not found")

// QuotaExceededError means the tenant has consumed its monthly quota and no
// custom credential was available to bypass it.
type QuotaExceededError struct {
	TenantID string
	Used     int64
	Quota    int64
}

func (e QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: tenant=%s used=%d quota=%d", e.TenantID, e.Used, e.Quota)
}

// Tier is the closed set of subscription tiers.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

// ParseTier maps a stored tier string onto the closed enumeration.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierBasic, TierPremium, TierEnterprise:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown subscription tier %q", s)
}

// Record is the mutable per-tenant entitlement state. MonthlyQuota is copied
// from the policy at creation and may diverge from it afterwards, so existing
// tenants are not silently re-priced when the policy changes.
type Record struct {
	TenantID          string
	Tier              Tier
	MonthlyQuota      int64 // -1 = unlimited
	CurrentUsage      int64
	PreferredProvider string
	CustomCredentials map[string]string // provider name -> tenant-owned key
}

// Profile is the write-once identity metadata, kept apart from the
// fast-changing counters in Record.
type Profile struct {
	SchemaVersion int    `json:"schema_version"`
	Email         string `json:"email"`
	CreatedAt     int64  `json:"created_at"`
	Tier          Tier   `json:"subscription_tier"`
}

// NewRecord builds a fresh record from the policy defaults for the tier.
func NewRecord(tenantID string, tier Tier, policy Policy) *Record {
	limits := policy.Limits(tier)
	return &Record{
		TenantID:          tenantID,
		Tier:              tier,
		MonthlyQuota:      limits.MonthlyQuota,
		CurrentUsage:      0,
		PreferredProvider: "openai",
		CustomCredentials: map[string]string{},
	}
}
