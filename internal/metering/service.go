// Package metering orchestrates credential resolution, quota enforcement and
// usage recording. It is the only surface the HTTP layer talks to.
package metering

import (
	"context"
	"errors"
	"time"

	"github.com/vnmchuo/pdf-gateway/internal/credential"
	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
	"github.com/vnmchuo/pdf-gateway/internal/ledger"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
)

type Service struct {
	tenants  *tenant.RecordStore
	policy   tenant.Policy
	resolver *credential.Resolver
	ledger   *ledger.Ledger
	now      func() time.Time
}

func NewService(tenants *tenant.RecordStore, policy tenant.Policy, resolver *credential.Resolver, l *ledger.Ledger) *Service {
	return &Service{
		tenants:  tenants,
		policy:   policy,
		resolver: resolver,
		ledger:   l,
		now:      time.Now,
	}
}

// UsageStats is the read-only reporting view of a tenant's entitlement state.
type UsageStats struct {
	CurrentUsage      int64       `json:"current_usage"`
	MonthlyQuota      int64       `json:"monthly_quota"`
	QuotaRemaining    int64       `json:"quota_remaining"` // -1 if unlimited
	Tier              tenant.Tier `json:"subscription_tier"`
	PreferredProvider string      `json:"preferred_provider"`
}

// ResolveCredential returns the provider key the tenant's next call should
// use. Callers invoke this before the upstream call and RecordUsage after it
// completed.
func (s *Service) ResolveCredential(ctx context.Context, tenantID, provider string) (string, error) {
	key, err := s.resolver.Resolve(ctx, tenantID, provider)
	resolutionsTotal.WithLabelValues(provider, outcomeLabel(err)).Inc()
	return key, err
}

// RecordUsage charges the tenant for pages actually consumed via provider.
func (s *Service) RecordUsage(ctx context.Context, tenantID string, pages int64, provider string) (*ledger.BillingEvent, error) {
	event, err := s.ledger.Record(ctx, tenantID, pages, provider)
	if err != nil {
		return nil, err
	}
	pagesRecordedTotal.WithLabelValues(provider).Add(float64(pages))
	revenueRecordedTotal.WithLabelValues(provider).Add(event.AmountCharged)
	providerCostRecordedTotal.WithLabelValues(provider).Add(event.ProviderCost)
	return event, nil
}

// GetUsageStats reports the tenant's current usage against its quota.
func (s *Service) GetUsageStats(ctx context.Context, tenantID string) (*UsageStats, error) {
	rec, err := s.tenants.Load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	remaining := rec.MonthlyQuota - rec.CurrentUsage
	if rec.MonthlyQuota == tenant.UnlimitedQuota {
		remaining = tenant.UnlimitedQuota
	}
	return &UsageStats{
		CurrentUsage:      rec.CurrentUsage,
		MonthlyQuota:      rec.MonthlyQuota,
		QuotaRemaining:    remaining,
		Tier:              rec.Tier,
		PreferredProvider: rec.PreferredProvider,
	}, nil
}

// CreateTenant builds a record from the policy defaults and persists it along
// with the identity profile. Calling it twice for the same id overwrites
// usage state; single-creation semantics are the caller's responsibility.
func (s *Service) CreateTenant(ctx context.Context, tenantID, email string, tier tenant.Tier) (*tenant.Record, error) {
	rec := tenant.NewRecord(tenantID, tier, s.policy)
	if err := s.tenants.Save(ctx, rec); err != nil {
		return nil, err
	}
	profile := &tenant.Profile{
		SchemaVersion: 1,
		Email:         email,
		CreatedAt:     s.now().Unix(),
		Tier:          tier,
	}
	if err := s.tenants.SaveProfile(ctx, tenantID, profile); err != nil {
		return nil, err
	}
	return rec, nil
}

// DailyRevenue reports the rollup for a UTC calendar day.
func (s *Service) DailyRevenue(ctx context.Context, day time.Time) (float64, error) {
	return s.ledger.DailyRevenue(ctx, day)
}

func outcomeLabel(err error) string {
	var quotaErr tenant.QuotaExceededError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tenant.ErrNotFound):
		return "tenant_not_found"
	case errors.As(err, &quotaErr):
		return "quota_exceeded"
	case errors.Is(err, credential.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, kvstore.ErrUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
