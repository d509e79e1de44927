package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/vnmchuo/pdf-gateway/internal/kvstore"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
)

var testOperatorKeys = map[string]string{
	"openai":            "sk-master-openai",
	"anthropic":         "sk-master-anthropic",
	"openai_premium":    "sk-premium-openai",
	"anthropic_premium": "sk-premium-anthropic",
}

func setupResolver(t *testing.T, operatorKeys map[string]string) (*Resolver, *tenant.RecordStore) {
	t.Helper()
	tenants := tenant.NewRecordStore(kvstore.NewMemory())
	return NewResolver(tenants, operatorKeys), tenants
}

func saveRecord(t *testing.T, tenants *tenant.RecordStore, rec *tenant.Record) {
	t.Helper()
	if err := tenants.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}

func TestResolveUnknownTenant(t *testing.T) {
	r, _ := setupResolver(t, testOperatorKeys)

	_, err := r.Resolve(context.Background(), "nobody", "openai")
	if !errors.Is(err, tenant.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveCustomKeyWins(t *testing.T) {
	r, tenants := setupResolver(t, testOperatorKeys)
	rec := tenant.NewRecord("t1", tenant.TierEnterprise, tenant.DefaultPolicy())
	rec.CustomCredentials["openai"] = "sk-tenant-owned"
	saveRecord(t, tenants, rec)

	key, err := r.Resolve(context.Background(), "t1", "openai")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if key != "sk-tenant-owned" {
		t.Errorf("key = %q, want the tenant-owned key", key)
	}
}

func TestResolveCustomKeyBypassesQuota(t *testing.T) {
	r, tenants := setupResolver(t, testOperatorKeys)
	rec := tenant.NewRecord("t1", tenant.TierFree, tenant.DefaultPolicy())
	rec.CurrentUsage = rec.MonthlyQuota + 100 // well past the cap
	rec.CustomCredentials["openai"] = "sk-tenant-owned"
	saveRecord(t, tenants, rec)

	key, err := r.Resolve(context.Background(), "t1", "openai")
	if err != nil {
		t.Fatalf("Resolve should bypass quota with a custom key: %v", err)
	}
	if key != "sk-tenant-owned" {
		t.Errorf("key = %q, want the tenant-owned key", key)
	}
}

func TestResolveQuotaExceeded(t *testing.T) {
	r, tenants := setupResolver(t, testOperatorKeys)
	rec := tenant.NewRecord("t2", tenant.TierFree, tenant.DefaultPolicy())
	rec.CurrentUsage = 10 // quota for free is 10
	saveRecord(t, tenants, rec)

	_, err := r.Resolve(context.Background(), "t2", "openai")
	var quotaErr tenant.QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if quotaErr.Used != 10 || quotaErr.Quota != 10 {
		t.Errorf("QuotaExceededError = %+v, want used=10 quota=10", quotaErr)
	}
}

func TestResolveUnlimitedTierNeverExceeds(t *testing.T) {
	r, tenants := setupResolver(t, testOperatorKeys)
	rec := tenant.NewRecord("t3", tenant.TierEnterprise, tenant.DefaultPolicy())
	rec.CurrentUsage = 1000000
	saveRecord(t, tenants, rec)

	key, err := r.Resolve(context.Background(), "t3", "openai")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if key != "sk-master-openai" {
		t.Errorf("key = %q, want base operator key", key)
	}
}

func TestResolvePremiumPrefersElevatedKey(t *testing.T) {
	r, tenants := setupResolver(t, testOperatorKeys)
	saveRecord(t, tenants, tenant.NewRecord("t1", tenant.TierPremium, tenant.DefaultPolicy()))

	key, err := r.Resolve(context.Background(), "t1", "openai")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if key != "sk-premium-openai" {
		t.Errorf("key = %q, want the premium operator key", key)
	}
}

func TestResolvePremiumFallsBackToBaseKey(t *testing.T) {
	// No premium variant configured for anthropic
	keys := map[string]string{
		"openai":    "sk-master-openai",
		"anthropic": "sk-master-anthropic",
	}
	r, tenants := setupResolver(t, keys)
	saveRecord(t, tenants, tenant.NewRecord("t1", tenant.TierPremium, tenant.DefaultPolicy()))

	key, err := r.Resolve(context.Background(), "t1", "anthropic")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if key != "sk-master-anthropic" {
		t.Errorf("key = %q, want the base operator key", key)
	}
}

func TestResolveNonPremiumNeverGetsElevatedKey(t *testing.T) {
	r, tenants := setupResolver(t, testOperatorKeys)
	for _, tier := range []tenant.Tier{tenant.TierFree, tenant.TierBasic, tenant.TierEnterprise} {
		saveRecord(t, tenants, tenant.NewRecord("t-"+string(tier), tier, tenant.DefaultPolicy()))

		key, err := r.Resolve(context.Background(), "t-"+string(tier), "openai")
		if err != nil {
			t.Fatalf("Resolve failed for %s: %v", tier, err)
		}
		if key != "sk-master-openai" {
			t.Errorf("tier %s got key %q, want the base operator key", tier, key)
		}
	}
}

func TestResolveNoCredentialConfigured(t *testing.T) {
	r, tenants := setupResolver(t, map[string]string{})
	saveRecord(t, tenants, tenant.NewRecord("t1", tenant.TierBasic, tenant.DefaultPolicy()))

	_, err := r.Resolve(context.Background(), "t1", "openai")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
