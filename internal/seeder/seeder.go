package seeder

import (
	"context"
	"log"

	"github.com/vnmchuo/pdf-gateway/internal/auth"
	"github.com/vnmchuo/pdf-gateway/internal/metering"
	"github.com/vnmchuo/pdf-gateway/internal/tenant"
)

const (
	TestAPIKey   = "test-api-key-12345"
	TestTenantID = "00000000-0000-0000-0000-000000000001"
	TestEmail    = "demo@example.com"
)

// SeedTestTenant provisions a basic-tier demo tenant and an API key for it.
// Dev-only; guarded by RUN_SEED in main.
func SeedTestTenant(ctx context.Context, keys auth.Store, m *metering.Service) {
	if _, err := m.CreateTenant(ctx, TestTenantID, TestEmail, tenant.TierBasic); err != nil {
		log.Printf("[Seeder] failed to create demo tenant: %v", err)
		return
	}

	apiKey := &auth.APIKey{
		TenantID: TestTenantID,
		KeyHash:  auth.HashKey(TestAPIKey),
		Active:   true,
	}
	if err := keys.Create(ctx, apiKey); err != nil {
		log.Printf("[Seeder] API key may already exist, skipping: %v", err)
		return
	}
	log.Printf("[Seeder] Demo tenant and API key created")
	log.Printf("[Seeder] Key: %s", TestAPIKey)
	log.Printf("[Seeder] TenantID: %s", TestTenantID)
}
