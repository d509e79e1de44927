// Package credential decides which upstream provider key a request may use.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/vnmchuo/pdf-gateway/internal/tenant"
)

// ErrNotConfigured means the operator has no key for the requested provider.
// This is a misconfiguration, not a tenant fault.
var ErrNotConfigured = errors.New("no credential configured for provider")

// Resolver picks a credential with the precedence
// tenant-owned > premium-elevated operator key > base operator key.
type Resolver struct {
	tenants      *tenant.RecordStore
	operatorKeys map[string]string // provider name (plus "_premium" variants) -> key
}

func NewResolver(tenants *tenant.RecordStore, operatorKeys map[string]string) *Resolver {
	return &Resolver{tenants: tenants, operatorKeys: operatorKeys}
}

// Resolve returns the credential the tenant should call provider with.
//
// A tenant-owned key bypasses the quota gate entirely: the tenant pays the
// provider directly, so there is nothing to meter against their plan. Only
// the premium tier is handed the "_premium" operator keys; enterprise tenants
// are expected to bring their own keys instead.
func (r *Resolver) Resolve(ctx context.Context, tenantID, provider string) (string, error) {
	rec, err := r.tenants.Load(ctx, tenantID)
	if err != nil {
		return "", err
	}

	if key := rec.CustomCredentials[provider]; key != "" {
		return key, nil
	}

	if !tenant.HasRemainingQuota(rec) {
		return "", tenant.QuotaExceededError{
			TenantID: tenantID,
			Used:     rec.CurrentUsage,
			Quota:    rec.MonthlyQuota,
		}
	}

	if rec.Tier == tenant.TierPremium {
		if key := r.operatorKeys[provider+"_premium"]; key != "" {
			return key, nil
		}
	}
	if key := r.operatorKeys[provider]; key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotConfigured, provider)
}
